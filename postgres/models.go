package postgres

import (
	"fmt"
	"time"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// A message represents a message in the database.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID         string    `bun:",pk,type:uuid"`
	AuthorName string    `bun:",notnull"`
	Text       string    `bun:",notnull"`
	CreatedAt  time.Time `bun:",notnull"`
}

// A like is a row of the likes table. The primary key enforces one like per
// message and user.
type like struct {
	bun.BaseModel `bun:"table:likes,alias:l"`

	MessageID string    `bun:",pk,type:uuid"`
	UserName  string    `bun:",pk"`
	CreatedAt time.Time `bun:",notnull"`
}

// messageRow is a message joined with its like counts.
type messageRow struct {
	ID         string
	AuthorName string
	Text       string
	CreatedAt  time.Time
	LikeCount  int
	LikedCount int
}

func newMessage(msg store.Message) *message {
	return &message{
		ID:         msg.ID.String(),
		AuthorName: msg.Author.Name,
		Text:       msg.Text,
		CreatedAt:  store.Timestamp(msg.CreatedAt),
	}
}

func newLike(l store.Like) *like {
	return &like{
		MessageID: l.MessageID.String(),
		UserName:  l.UserName,
		CreatedAt: store.Timestamp(l.CreatedAt),
	}
}

func (r messageRow) StoreMessage() (store.Message, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return store.Message{}, fmt.Errorf("parse id %q: %w", r.ID, err)
	}
	return store.Message{
		ID:        id,
		Author:    store.User{Name: r.AuthorName},
		Text:      r.Text,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

func (r messageRow) UserMessage() (store.UserMessage, error) {
	msg, err := r.StoreMessage()
	if err != nil {
		return store.UserMessage{}, err
	}
	return store.UserMessage{
		Message:   msg,
		LikeCount: r.LikeCount,
		Liked:     r.LikedCount > 0,
	}, nil
}

func (r messageRow) PopularMessage() (store.PopularMessage, error) {
	msg, err := r.StoreMessage()
	if err != nil {
		return store.PopularMessage{}, err
	}
	return store.PopularMessage{
		Message:   msg,
		LikeCount: r.LikeCount,
	}, nil
}
