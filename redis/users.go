package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeee/tweets/store"
)

func userKey(name string) string {
	return fmt.Sprintf("%s:%s", userPrefix, name)
}

// SaveUser stores the user under users:NAME, replacing any previous record.
func (r *Redis) SaveUser(ctx context.Context, u store.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if err := r.cli.HSet(ctx, userKey(u.Name), &user{
		Name:      u.Name,
		CreatedAt: store.Timestamp(createdAt),
	}).Err(); err != nil {
		return store.Unavailable("save user", fmt.Errorf("hset: %w", err))
	}
	return nil
}

// GetUser returns the user with the given name.
func (r *Redis) GetUser(ctx context.Context, name string) (store.User, error) {
	cmd := r.cli.HGetAll(ctx, userKey(name))
	vals, err := cmd.Result()
	if err != nil {
		return store.User{}, store.Unavailable("get user", fmt.Errorf("hgetall: %w", err))
	}
	if len(vals) == 0 {
		return store.User{}, store.Errorf("get user", store.ErrNotFound, nil)
	}

	var u user
	if err := cmd.Scan(&u); err != nil {
		return store.User{}, store.Unavailable("get user", fmt.Errorf("scan: %w", err))
	}
	return u.StoreUser(), nil
}
