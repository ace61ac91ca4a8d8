package store

import (
	"time"

	"github.com/google/uuid"
)

// PopularLimit is the number of messages returned by GetPopularMessages.
const PopularLimit = 10

// A User is a lightweight reference to a user. Two users are the same user if
// their names are equal.
type User struct {
	Name      string
	CreatedAt time.Time
}

// A Message is a persisted message. Messages are immutable once saved.
type Message struct {
	ID        uuid.UUID
	Author    User
	Text      string
	CreatedAt time.Time
}

// NewMessage returns a message with a fresh id, authored now by the given user.
func NewMessage(author, text string) Message {
	return Message{
		ID:        uuid.New(),
		Author:    User{Name: author},
		Text:      text,
		CreatedAt: Timestamp(time.Now()),
	}
}

// Timestamp normalizes t to the precision every backend can store.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// A Like is the engagement edge between a message and a user.
type Like struct {
	MessageID uuid.UUID
	UserName  string
	CreatedAt time.Time
}

// NewLike returns a like of the message by the user, created now.
func NewLike(messageID uuid.UUID, userName string) Like {
	return Like{
		MessageID: messageID,
		UserName:  userName,
		CreatedAt: Timestamp(time.Now()),
	}
}

// A UserMessage is a message as shown in the feed of a user.
type UserMessage struct {
	Message
	LikeCount int
	Liked     bool
}

// A PopularMessage is a message ranked by its number of likes.
type PopularMessage struct {
	Message
	LikeCount int
}
