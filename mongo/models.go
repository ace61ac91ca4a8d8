package mongo

import (
	"fmt"
	"slices"
	"time"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
)

// A messageDocument represents a message in the messages collection. Likes
// are embedded; a document whose likes field is missing or null has no likes.
type messageDocument struct {
	ID         string         `bson:"_id"`
	UserName   string         `bson:"userName"`
	Text       string         `bson:"text"`
	CreateDate time.Time      `bson:"createDate"`
	Likes      []likeDocument `bson:"likes,omitempty"`
}

type likeDocument struct {
	UserName   string    `bson:"userName"`
	CreateDate time.Time `bson:"createDate"`
}

// popularDocument is a result of the popularity pipeline.
type popularDocument struct {
	Message   messageDocument `bson:",inline"`
	LikeCount int             `bson:"likeCount"`
}

func newMessageDocument(msg store.Message) *messageDocument {
	return &messageDocument{
		ID:         msg.ID.String(),
		UserName:   msg.Author.Name,
		Text:       msg.Text,
		CreateDate: store.Timestamp(msg.CreatedAt),
	}
}

func newLikeDocument(l store.Like) likeDocument {
	return likeDocument{
		UserName:   l.UserName,
		CreateDate: store.Timestamp(l.CreatedAt),
	}
}

func (d *messageDocument) liked(userName string) bool {
	return slices.ContainsFunc(d.Likes, func(l likeDocument) bool {
		return l.UserName == userName
	})
}

func (d *messageDocument) StoreMessage() (store.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return store.Message{}, fmt.Errorf("parse id %q: %w", d.ID, err)
	}
	return store.Message{
		ID:        id,
		Author:    store.User{Name: d.UserName},
		Text:      d.Text,
		CreatedAt: d.CreateDate.UTC(),
	}, nil
}
