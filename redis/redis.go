// Package redis implements the engagement store on Redis used as a plain
// key-value store. Each message is one value holding its likes, and popularity
// is computed by scanning every message, so it is only suitable for small
// catalogs.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Redis provides storage in Redis.
type Redis struct {
	cli *redis.Client
}

var (
	_ store.EngagementStore = (*Redis)(nil)
	_ store.UserDirectory   = (*Redis)(nil)
)

// Connect connects to the Redis server and pings the server to ensure the
// connection is working. addr is either host:port or a redis:// URL.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		var err error
		if opts, err = redis.ParseURL(addr); err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, store.Unavailable("connect", fmt.Errorf("ping redis: %w", err))
	}
	return New(cli), nil
}

// New returns a store using cli.
func New(cli *redis.Client) *Redis {
	return &Redis{
		cli: cli,
	}
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.cli.Close()
}

const (
	messagePrefix = "messages"
	userPrefix    = "users"

	// maxRetries bounds optimistic transactions that keep losing to
	// concurrent writers of the same message.
	maxRetries = 32
	// scanBatch is the number of messages fetched per MGET.
	scanBatch = 256
)

func messageKey(id string) string {
	return fmt.Sprintf("%s:%s", messagePrefix, id)
}

// feedKey is the sorted set of the messages authored by userName.
func feedKey(userName string) string {
	return fmt.Sprintf("%s:%s:%s", userPrefix, userName, messagePrefix)
}

// Save stores the message with messages:MESSAGE_ID as the key and adds its id
// to the catalog and to the feed of its author.
func (r *Redis) Save(ctx context.Context, msg store.Message) error {
	m := newMessage(msg)
	b, err := msgpack.Marshal(m)
	if err != nil {
		return store.Unavailable("save", fmt.Errorf("marshal: %w", err))
	}

	key := messageKey(m.ID)
	score := float64(m.CreatedAt.UnixMilli())
	err = r.cli.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("exists: %w", err)
		}
		if n > 0 {
			return store.Errorf("save", store.ErrDuplicateID, nil)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.ZAdd(ctx, messagePrefix, redis.Z{Score: score, Member: m.ID})
			pipe.ZAdd(ctx, feedKey(m.Author), redis.Z{Score: score, Member: m.ID})
			return nil
		})
		return err
	}, key)

	// Another client created the key between WATCH and EXEC.
	if errors.Is(err, redis.TxFailedErr) {
		return store.Errorf("save", store.ErrDuplicateID, err)
	}
	return store.Unavailable("save", err)
}

// Like appends a like to the message unless the user already liked it.
func (r *Redis) Like(ctx context.Context, messageID uuid.UUID, userName string) error {
	return r.update(ctx, "like", messageID, func(m *message) bool {
		if m.liked(userName) {
			return false
		}
		m.Likes = append(m.Likes, newLike(store.NewLike(messageID, userName)))
		return true
	})
}

// Unlike removes the like of the user, if any.
func (r *Redis) Unlike(ctx context.Context, messageID uuid.UUID, userName string) error {
	err := r.update(ctx, "unlike", messageID, func(m *message) bool {
		i := m.likeIndex(userName)
		if i < 0 {
			return false
		}
		m.Likes = append(m.Likes[:i], m.Likes[i+1:]...)
		return true
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

// update replaces the message with the result of fn under optimistic locking.
// fn returns false to leave the message untouched.
func (r *Redis) update(ctx context.Context, op string, messageID uuid.UUID, fn func(*message) bool) error {
	key := messageKey(messageID.String())
	for range maxRetries {
		err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
			m, err := getMessage(ctx, tx, key)
			if err != nil {
				return err
			}
			if m == nil {
				return store.Errorf(op, store.ErrNotFound, nil)
			}
			if !fn(m) {
				return nil
			}

			b, err := msgpack.Marshal(m)
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, b, 0)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return store.Unavailable(op, err)
	}
	return store.Errorf(op, store.ErrConflictRetryExhausted, redis.TxFailedErr)
}

// getter is implemented by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getMessage returns the message stored under key, or nil if there is none.
func getMessage(ctx context.Context, c getter, key string) (*message, error) {
	b, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	var m message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &m, nil
}

// CountLikes returns the number of likes of the message.
func (r *Redis) CountLikes(ctx context.Context, messageID uuid.UUID) (int, error) {
	m, err := r.message(ctx, "count likes", messageID)
	if err != nil {
		return 0, err
	}
	return len(m.Likes), nil
}

// HasLiked reports whether the user likes the message.
func (r *Redis) HasLiked(ctx context.Context, messageID uuid.UUID, userName string) (bool, error) {
	m, err := r.message(ctx, "has liked", messageID)
	if err != nil {
		return false, err
	}
	return m.liked(userName), nil
}

func (r *Redis) message(ctx context.Context, op string, messageID uuid.UUID) (*message, error) {
	m, err := getMessage(ctx, r.cli, messageKey(messageID.String()))
	if err != nil {
		return nil, store.Unavailable(op, err)
	}
	if m == nil {
		return nil, store.Errorf(op, store.ErrNotFound, nil)
	}
	return m, nil
}

// GetMessages returns the messages of the user, newest first.
func (r *Redis) GetMessages(ctx context.Context, userName string) ([]store.UserMessage, error) {
	ids, err := r.cli.ZRevRange(ctx, feedKey(userName), 0, -1).Result()
	if err != nil {
		return nil, store.Unavailable("get messages", fmt.Errorf("zrevrange: %w", err))
	}
	msgs, err := r.loadMessages(ctx, ids)
	if err != nil {
		return nil, store.Unavailable("get messages", err)
	}

	out := make([]store.UserMessage, 0, len(msgs))
	for _, m := range msgs {
		sm, err := m.StoreMessage()
		if err != nil {
			return nil, store.Unavailable("get messages", err)
		}
		out = append(out, store.UserMessage{
			Message:   sm,
			LikeCount: len(m.Likes),
			Liked:     m.liked(userName),
		})
	}
	store.SortFeed(out)
	return out, nil
}

// GetPopularMessages reads every message in the catalog, counts its likes and
// keeps the most liked ones.
func (r *Redis) GetPopularMessages(ctx context.Context) ([]store.PopularMessage, error) {
	ids, err := r.cli.ZRange(ctx, messagePrefix, 0, -1).Result()
	if err != nil {
		return nil, store.Unavailable("get popular messages", fmt.Errorf("zrange: %w", err))
	}
	msgs, err := r.loadMessages(ctx, ids)
	if err != nil {
		return nil, store.Unavailable("get popular messages", err)
	}

	out := make([]store.PopularMessage, 0, len(msgs))
	for _, m := range msgs {
		sm, err := m.StoreMessage()
		if err != nil {
			return nil, store.Unavailable("get popular messages", err)
		}
		out = append(out, store.PopularMessage{
			Message:   sm,
			LikeCount: len(m.Likes),
		})
	}
	return store.RankPopular(out, store.PopularLimit), nil
}

// loadMessages fetches the messages with the given ids. Ids without a value
// are skipped.
func (r *Redis) loadMessages(ctx context.Context, ids []string) ([]*message, error) {
	out := make([]*message, 0, len(ids))
	for start := 0; start < len(ids); start += scanBatch {
		end := min(start+scanBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, messageKey(id))
		}

		vals, err := r.cli.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("mget: %w", err)
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var m message
			if err := msgpack.Unmarshal([]byte(s), &m); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", keys[i], err)
			}
			out = append(out, &m)
		}
	}
	return out, nil
}
