package redis

import (
	"fmt"
	"slices"
	"time"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
)

// A message represents a message in the database. The whole message,
// including its likes, is stored as a single msgpack value.
type message struct {
	ID        string    `msgpack:"id"`
	Author    string    `msgpack:"author"`
	Text      string    `msgpack:"text"`
	CreatedAt time.Time `msgpack:"created_at"`
	Likes     []like    `msgpack:"likes,omitempty"`
}

// like is a like embedded in its message.
type like struct {
	UserName  string    `msgpack:"user_name"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// A user represents a user in the database.
type user struct {
	Name      string    `redis:"name"`
	CreatedAt time.Time `redis:"created_at"`
}

func newMessage(msg store.Message) *message {
	return &message{
		ID:        msg.ID.String(),
		Author:    msg.Author.Name,
		Text:      msg.Text,
		CreatedAt: store.Timestamp(msg.CreatedAt),
	}
}

func newLike(l store.Like) like {
	return like{
		UserName:  l.UserName,
		CreatedAt: store.Timestamp(l.CreatedAt),
	}
}

// liked reports whether userName is among the likers. A nil and an empty
// likes slice are the same state.
func (m *message) liked(userName string) bool {
	return m.likeIndex(userName) >= 0
}

func (m *message) likeIndex(userName string) int {
	return slices.IndexFunc(m.Likes, func(l like) bool {
		return l.UserName == userName
	})
}

func (m *message) StoreMessage() (store.Message, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return store.Message{}, fmt.Errorf("parse id %q: %w", m.ID, err)
	}
	return store.Message{
		ID:        id,
		Author:    store.User{Name: m.Author},
		Text:      m.Text,
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

func (u user) StoreUser() store.User {
	return store.User{
		Name:      u.Name,
		CreatedAt: u.CreatedAt.UTC(),
	}
}
