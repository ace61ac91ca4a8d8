// Package metrics instruments an engagement store with Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/edgeee/tweets/store"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store records the latency and the errors of every call to the wrapped store.
type Store struct {
	next    store.EngagementStore
	backend string

	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

var _ store.EngagementStore = (*Store)(nil)

// NewStore wraps next. Metrics are registered with reg and labelled with
// backend.
func NewStore(next store.EngagementStore, backend string, reg prometheus.Registerer) *Store {
	f := promauto.With(reg)
	return &Store{
		next:    next,
		backend: backend,
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tweets_store_operation_duration_seconds",
			Help:    "Duration of engagement store operations in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tweets_store_operation_errors_total",
			Help: "Total number of failed engagement store operations by error kind",
		}, []string{"backend", "operation", "kind"}),
	}
}

// kindLabel returns the label value for the kind of err.
func kindLabel(err error) string {
	switch store.Kind(err) {
	case store.ErrStorageUnavailable:
		return "storage_unavailable"
	case store.ErrDuplicateID:
		return "duplicate_id"
	case store.ErrNotFound:
		return "not_found"
	case store.ErrConflictRetryExhausted:
		return "conflict_retry_exhausted"
	default:
		return "unknown"
	}
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.duration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		s.errors.WithLabelValues(s.backend, op, kindLabel(err)).Inc()
	}
}

func (s *Store) Save(ctx context.Context, msg store.Message) (err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	return s.next.Save(ctx, msg)
}

func (s *Store) Like(ctx context.Context, messageID uuid.UUID, userName string) (err error) {
	defer func(start time.Time) { s.observe("like", start, err) }(time.Now())
	return s.next.Like(ctx, messageID, userName)
}

func (s *Store) Unlike(ctx context.Context, messageID uuid.UUID, userName string) (err error) {
	defer func(start time.Time) { s.observe("unlike", start, err) }(time.Now())
	return s.next.Unlike(ctx, messageID, userName)
}

func (s *Store) CountLikes(ctx context.Context, messageID uuid.UUID) (n int, err error) {
	defer func(start time.Time) { s.observe("count_likes", start, err) }(time.Now())
	return s.next.CountLikes(ctx, messageID)
}

func (s *Store) HasLiked(ctx context.Context, messageID uuid.UUID, userName string) (liked bool, err error) {
	defer func(start time.Time) { s.observe("has_liked", start, err) }(time.Now())
	return s.next.HasLiked(ctx, messageID, userName)
}

func (s *Store) GetMessages(ctx context.Context, userName string) (msgs []store.UserMessage, err error) {
	defer func(start time.Time) { s.observe("get_messages", start, err) }(time.Now())
	return s.next.GetMessages(ctx, userName)
}

func (s *Store) GetPopularMessages(ctx context.Context) (msgs []store.PopularMessage, err error) {
	defer func(start time.Time) { s.observe("get_popular_messages", start, err) }(time.Now())
	return s.next.GetPopularMessages(ctx)
}
