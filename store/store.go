// Package store defines the engagement store: message persistence, likes and
// the two read views built on top of them. Backends live in their own
// packages and are selected when the application is composed.
package store

import (
	"context"

	"github.com/google/uuid"
)

// A MessageStore persists messages. Messages are append-only.
type MessageStore interface {
	// Save inserts msg. It returns ErrDuplicateID if a message with the same
	// id already exists.
	Save(ctx context.Context, msg Message) error
}

// An EngagementIndex tracks which users liked which messages. At most one
// like exists per (message, user) pair.
type EngagementIndex interface {
	// Like records that userName likes the message. Liking twice is a no-op.
	// It returns ErrNotFound if the message does not exist.
	Like(ctx context.Context, messageID uuid.UUID, userName string) error
	// Unlike removes the like of userName. Unliking a message that was not
	// liked, or that does not exist, is a no-op.
	Unlike(ctx context.Context, messageID uuid.UUID, userName string) error
	CountLikes(ctx context.Context, messageID uuid.UUID) (int, error)
	HasLiked(ctx context.Context, messageID uuid.UUID, userName string) (bool, error)
}

// A QueryEngine computes the read views.
type QueryEngine interface {
	// GetMessages returns the messages authored by userName, newest first,
	// with their like counts and whether userName liked each of them.
	GetMessages(ctx context.Context, userName string) ([]UserMessage, error)
	// GetPopularMessages returns at most PopularLimit messages ordered by like
	// count, then by creation time, most recent first.
	GetPopularMessages(ctx context.Context) ([]PopularMessage, error)
}

// An EngagementStore is implemented by every backend.
type EngagementStore interface {
	MessageStore
	EngagementIndex
	QueryEngine
}

// A UserDirectory maps user names to user records. The engagement store never
// consults it.
type UserDirectory interface {
	SaveUser(ctx context.Context, u User) error
	// GetUser returns ErrNotFound if no user has that name.
	GetUser(ctx context.Context, name string) (User, error)
}
