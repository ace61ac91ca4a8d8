package api

import (
	"time"

	"github.com/edgeee/tweets/store"
)

// A Message is a message as returned by the API.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
	LikeCount int       `json:"like_count"`
}

// A UserMessage is a message in the feed of its author.
type UserMessage struct {
	Message
	Liked bool `json:"liked"`
}

// A User is a user as returned by the API.
type User struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessage(m store.Message, likes int) Message {
	return Message{
		ID:        m.ID.String(),
		Text:      m.Text,
		UserName:  m.Author.Name,
		CreatedAt: m.CreatedAt,
		LikeCount: likes,
	}
}

func newUserMessage(m store.UserMessage) UserMessage {
	return UserMessage{
		Message: newMessage(m.Message, m.LikeCount),
		Liked:   m.Liked,
	}
}

func newUser(u store.User) User {
	return User{
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
