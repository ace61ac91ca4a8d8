// Package postgres implements the engagement store on a relational database.
// Likes are rows of their own table, keyed by message and user.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

var _ store.EngagementStore = (*Postgres)(nil)

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, store.Unavailable("connect", fmt.Errorf("ping database: %w", err))
	}
	return New(bun.NewDB(sqlDB, pgdialect.New())), nil
}

// New returns a store backed by db. Queries only use SQL that PostgreSQL and
// SQLite both understand.
func New(db *bun.DB) *Postgres {
	return &Postgres{bun: db}
}

// Close closes the database.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// Migrate creates the tables if they do not exist.
func (pg *Postgres) Migrate(ctx context.Context) error {
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*message)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create messages: %w", err)
		}
		if _, err := tx.NewCreateTable().
			Model((*like)(nil)).
			IfNotExists().
			ForeignKey(`("message_id") REFERENCES "messages" ("id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return fmt.Errorf("create likes: %w", err)
		}
		if _, err := tx.NewCreateIndex().
			Model((*message)(nil)).
			Index("messages_author_name_created_at_idx").
			Column("author_name", "created_at").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		return nil
	})
	return store.Unavailable("migrate", err)
}

// Save inserts a message into the database.
func (pg *Postgres) Save(ctx context.Context, msg store.Message) error {
	res, err := pg.bun.NewInsert().
		Model(newMessage(msg)).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return store.Unavailable("save", fmt.Errorf("insert: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("save", fmt.Errorf("rows affected: %w", err))
	}
	if n == 0 {
		return store.Errorf("save", store.ErrDuplicateID, nil)
	}
	return nil
}

// Like inserts a like unless the user already liked the message.
func (pg *Postgres) Like(ctx context.Context, messageID uuid.UUID, userName string) error {
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*message)(nil)).
			Where("m.id = ?", messageID.String()).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("exists: %w", err)
		}
		if !exists {
			return store.Errorf("like", store.ErrNotFound, nil)
		}

		if _, err := tx.NewInsert().
			Model(newLike(store.NewLike(messageID, userName))).
			On("CONFLICT (message_id, user_name) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	return store.Unavailable("like", err)
}

// Unlike deletes the like of the user, if any.
func (pg *Postgres) Unlike(ctx context.Context, messageID uuid.UUID, userName string) error {
	_, err := pg.bun.NewDelete().
		Model((*like)(nil)).
		Where("l.message_id = ?", messageID.String()).
		Where("l.user_name = ?", userName).
		Exec(ctx)
	if err != nil {
		return store.Unavailable("unlike", fmt.Errorf("delete: %w", err))
	}
	return nil
}

// CountLikes returns the number of likes of the message.
func (pg *Postgres) CountLikes(ctx context.Context, messageID uuid.UUID) (int, error) {
	count, _, err := pg.engagement(ctx, "count likes", messageID, "")
	return count, err
}

// HasLiked reports whether the user likes the message.
func (pg *Postgres) HasLiked(ctx context.Context, messageID uuid.UUID, userName string) (bool, error) {
	_, liked, err := pg.engagement(ctx, "has liked", messageID, userName)
	return liked, err
}

// engagement reads the like count of a message and whether userName is one of
// the likers in a single statement.
func (pg *Postgres) engagement(ctx context.Context, op string, messageID uuid.UUID, userName string) (int, bool, error) {
	var count, liked int
	err := pg.bun.NewSelect().
		Model((*message)(nil)).
		ColumnExpr("(SELECT COUNT(*) FROM likes AS l WHERE l.message_id = m.id) AS like_count").
		ColumnExpr("(SELECT COUNT(*) FROM likes AS l WHERE l.message_id = m.id AND l.user_name = ?) AS liked_count", userName).
		Where("m.id = ?", messageID.String()).
		Scan(ctx, &count, &liked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, store.Errorf(op, store.ErrNotFound, nil)
	}
	if err != nil {
		return 0, false, store.Unavailable(op, fmt.Errorf("scan: %w", err))
	}
	return count, liked > 0, nil
}

// GetMessages returns the messages of the user, newest first.
func (pg *Postgres) GetMessages(ctx context.Context, userName string) ([]store.UserMessage, error) {
	var rows []messageRow
	err := pg.bun.NewSelect().
		Model((*message)(nil)).
		ColumnExpr("m.id, m.author_name, m.text, m.created_at").
		ColumnExpr("(SELECT COUNT(*) FROM likes AS l WHERE l.message_id = m.id) AS like_count").
		ColumnExpr("(SELECT COUNT(*) FROM likes AS l WHERE l.message_id = m.id AND l.user_name = ?) AS liked_count", userName).
		Where("m.author_name = ?", userName).
		OrderExpr("m.created_at DESC, m.id DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, store.Unavailable("get messages", fmt.Errorf("scan: %w", err))
	}

	out := make([]store.UserMessage, len(rows))
	for i, r := range rows {
		if out[i], err = r.UserMessage(); err != nil {
			return nil, store.Unavailable("get messages", err)
		}
	}
	return out, nil
}

// GetPopularMessages returns the most liked messages. The outer join keeps
// messages without likes.
func (pg *Postgres) GetPopularMessages(ctx context.Context) ([]store.PopularMessage, error) {
	var rows []messageRow
	err := pg.bun.NewSelect().
		Model((*message)(nil)).
		ColumnExpr("m.id, m.author_name, m.text, m.created_at").
		ColumnExpr("COUNT(l.user_name) AS like_count").
		Join("LEFT JOIN likes AS l ON l.message_id = m.id").
		GroupExpr("m.id, m.author_name, m.text, m.created_at").
		OrderExpr("like_count DESC, m.created_at DESC, m.id DESC").
		Limit(store.PopularLimit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, store.Unavailable("get popular messages", fmt.Errorf("scan: %w", err))
	}

	out := make([]store.PopularMessage, len(rows))
	for i, r := range rows {
		if out[i], err = r.PopularMessage(); err != nil {
			return nil, store.Unavailable("get popular messages", err)
		}
	}
	return out, nil
}
