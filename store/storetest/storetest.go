// Package storetest provides a test suite that every store.EngagementStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgeee/tweets/store"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// base is the creation time of the first message saved by a test.
var base = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Run runs the suite. newStore must return an empty store; it is called once
// per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.EngagementStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.EngagementStore)
	}{
		{"RoundTrip", testRoundTrip},
		{"SaveDuplicate", testSaveDuplicate},
		{"LikeIdempotent", testLikeIdempotent},
		{"LikeUnknownMessage", testLikeUnknownMessage},
		{"UnlikeIdempotent", testUnlikeIdempotent},
		{"CountMatchesLikers", testCountMatchesLikers},
		{"CountUnknownMessage", testCountUnknownMessage},
		{"FeedOrder", testFeedOrder},
		{"SubMillisecond", testSubMillisecond},
		{"SameMillisecond", testSameMillisecond},
		{"PopularRanking", testPopularRanking},
		{"PopularZeroLikes", testPopularZeroLikes},
		{"PopularLimit", testPopularLimit},
		{"ConcurrentLikes", testConcurrentLikes},
		{"ConcurrentLikeUnlike", testConcurrentLikeUnlike},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func message(author, text string, minute int) store.Message {
	return store.Message{
		ID:        uuid.New(),
		Author:    store.User{Name: author},
		Text:      text,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func save(t *testing.T, s store.EngagementStore, msgs ...store.Message) {
	t.Helper()
	for _, m := range msgs {
		if err := s.Save(context.Background(), m); err != nil {
			t.Fatalf("Save(%s): %v", m.ID, err)
		}
	}
}

func like(t *testing.T, s store.EngagementStore, m store.Message, users ...string) {
	t.Helper()
	for _, u := range users {
		if err := s.Like(context.Background(), m.ID, u); err != nil {
			t.Fatalf("Like(%s, %s): %v", m.ID, u, err)
		}
	}
}

func checkCount(t *testing.T, s store.EngagementStore, m store.Message, want int) {
	t.Helper()
	got, err := s.CountLikes(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("CountLikes(%s): %v", m.ID, err)
	}
	if got != want {
		t.Errorf("Got %d likes, want %d", got, want)
	}
}

func testRoundTrip(t *testing.T, s store.EngagementStore) {
	msg := message("alice", "hello world", 0)
	save(t, s, msg)

	got, err := s.GetMessages(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	want := []store.UserMessage{{Message: msg}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetMessages mismatch (-want +got):\n%s", diff)
	}
}

func testSaveDuplicate(t *testing.T, s store.EngagementStore) {
	msg := message("alice", "hello", 0)
	save(t, s, msg)

	dup := msg
	dup.Text = "overwritten"
	err := s.Save(context.Background(), dup)
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("Got error %v, want %v", err, store.ErrDuplicateID)
	}

	got, err := s.GetMessages(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("Got %+v, want the original message only", got)
	}
}

func testLikeIdempotent(t *testing.T, s store.EngagementStore) {
	msg := message("alice", "hello", 0)
	save(t, s, msg)
	like(t, s, msg, "bob")
	checkCount(t, s, msg, 1)

	like(t, s, msg, "carol", "carol", "carol")
	checkCount(t, s, msg, 2)
}

func testLikeUnknownMessage(t *testing.T, s store.EngagementStore) {
	err := s.Like(context.Background(), uuid.New(), "bob")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Got error %v, want %v", err, store.ErrNotFound)
	}
}

func testUnlikeIdempotent(t *testing.T, s store.EngagementStore) {
	ctx := context.Background()
	msg := message("alice", "hello", 0)
	save(t, s, msg)

	if err := s.Unlike(ctx, msg.ID, "bob"); err != nil {
		t.Fatalf("Unlike without like: %v", err)
	}
	checkCount(t, s, msg, 0)

	if err := s.Unlike(ctx, uuid.New(), "bob"); err != nil {
		t.Fatalf("Unlike of unknown message: %v", err)
	}

	like(t, s, msg, "bob", "carol")
	for range 2 {
		if err := s.Unlike(ctx, msg.ID, "bob"); err != nil {
			t.Fatal(err)
		}
	}
	checkCount(t, s, msg, 1)
}

func testCountMatchesLikers(t *testing.T, s store.EngagementStore) {
	ctx := context.Background()
	msg := message("alice", "hello", 0)
	save(t, s, msg)

	users := []string{"bob", "carol", "dave", "erin"}
	ops := []struct {
		user string
		like bool
	}{
		{"bob", true}, {"carol", true}, {"bob", true}, {"dave", true},
		{"carol", false}, {"erin", false}, {"carol", true}, {"dave", false},
	}
	for _, op := range ops {
		var err error
		if op.like {
			err = s.Like(ctx, msg.ID, op.user)
		} else {
			err = s.Unlike(ctx, msg.ID, op.user)
		}
		if err != nil {
			t.Fatal(err)
		}

		likers := 0
		for _, u := range users {
			liked, err := s.HasLiked(ctx, msg.ID, u)
			if err != nil {
				t.Fatal(err)
			}
			if liked {
				likers++
			}
		}
		checkCount(t, s, msg, likers)
	}

	for u, want := range map[string]bool{"bob": true, "carol": true, "dave": false, "erin": false} {
		got, err := s.HasLiked(ctx, msg.ID, u)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("HasLiked(%s) = %t, want %t", u, got, want)
		}
	}
}

func testCountUnknownMessage(t *testing.T, s store.EngagementStore) {
	if _, err := s.CountLikes(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Got error %v, want %v", err, store.ErrNotFound)
	}
}

func testFeedOrder(t *testing.T, s store.EngagementStore) {
	first := message("alice", "first", 0)
	second := message("alice", "second", 5)
	third := message("alice", "third", 10)
	other := message("bob", "not alice", 7)
	save(t, s, second, other, third, first)
	like(t, s, second, "alice", "bob")
	like(t, s, third, "bob")

	got, err := s.GetMessages(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	want := []store.UserMessage{
		{Message: third, LikeCount: 1},
		{Message: second, LikeCount: 2, Liked: true},
		{Message: first},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetMessages mismatch (-want +got):\n%s", diff)
	}

	got, err = s.GetMessages(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Got %d messages for unknown user, want 0", len(got))
	}
}

// testSubMillisecond saves messages whose times are finer than the stored
// precision. They must come back normalized, in the same order everywhere.
func testSubMillisecond(t *testing.T, s store.EngagementStore) {
	older := store.Message{
		ID:        uuid.UUID{0xff},
		Author:    store.User{Name: "alice"},
		Text:      "older",
		CreatedAt: base.Add(800 * time.Microsecond),
	}
	newer := store.Message{
		ID:        uuid.UUID{0x01},
		Author:    store.User{Name: "alice"},
		Text:      "newer",
		CreatedAt: base.Add(1200 * time.Microsecond),
	}
	save(t, s, older, newer)

	got, err := s.GetMessages(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	normalized := func(m store.Message) store.Message {
		m.CreatedAt = store.Timestamp(m.CreatedAt)
		return m
	}
	want := []store.UserMessage{
		{Message: normalized(newer)},
		{Message: normalized(older)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetMessages mismatch (-want +got):\n%s", diff)
	}
}

// testSameMillisecond checks that messages stored with equal times are
// ordered by id, descending.
func testSameMillisecond(t *testing.T, s store.EngagementStore) {
	first := store.Message{
		ID:        uuid.UUID{0xff},
		Author:    store.User{Name: "alice"},
		Text:      "first",
		CreatedAt: base.Add(100 * time.Microsecond),
	}
	second := store.Message{
		ID:        uuid.UUID{0x01},
		Author:    store.User{Name: "alice"},
		Text:      "second",
		CreatedAt: base.Add(900 * time.Microsecond),
	}
	save(t, s, second, first)

	got, err := s.GetMessages(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	var ids []uuid.UUID
	for _, m := range got {
		if !m.CreatedAt.Equal(base) {
			t.Errorf("Got created at %v, want %v", m.CreatedAt, base)
		}
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]uuid.UUID{first.ID, second.ID}, ids); diff != "" {
		t.Errorf("GetMessages order mismatch (-want +got):\n%s", diff)
	}
}

func testPopularRanking(t *testing.T, s store.EngagementStore) {
	a := message("alice", "A", 1)
	b := message("bob", "B", 2)
	c := message("carol", "C", 3)
	d := message("dave", "D", 0)
	save(t, s, a, b, c, d)
	like(t, s, a, "u1", "u2")
	like(t, s, b, "u3", "u4")
	like(t, s, d, "u1", "u2", "u3")

	got, err := s.GetPopularMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []store.PopularMessage{
		{Message: d, LikeCount: 3},
		{Message: b, LikeCount: 2},
		{Message: a, LikeCount: 2},
		{Message: c, LikeCount: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetPopularMessages mismatch (-want +got):\n%s", diff)
	}
}

func testPopularZeroLikes(t *testing.T, s store.EngagementStore) {
	msg := message("alice", "lonely", 0)
	save(t, s, msg)

	got, err := s.GetPopularMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []store.PopularMessage{{Message: msg}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetPopularMessages mismatch (-want +got):\n%s", diff)
	}
}

func testPopularLimit(t *testing.T, s store.EngagementStore) {
	var liked []store.Message
	for i := range store.PopularLimit + 2 {
		m := message("alice", fmt.Sprintf("liked %d", i), i)
		save(t, s, m)
		like(t, s, m, "bob")
		liked = append(liked, m)
	}
	save(t, s, message("alice", "unliked and newest", 100))

	got, err := s.GetPopularMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != store.PopularLimit {
		t.Fatalf("Got %d popular messages, want %d", len(got), store.PopularLimit)
	}
	for i, pm := range got {
		want := liked[len(liked)-1-i]
		if pm.ID != want.ID || pm.LikeCount != 1 {
			t.Errorf("Popular[%d] = %s (%d likes), want %s (1 like)", i, pm.Text, pm.LikeCount, want.Text)
		}
	}
}

func testConcurrentLikes(t *testing.T, s store.EngagementStore) {
	msg := message("alice", "hello", 0)
	save(t, s, msg)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Like(context.Background(), msg.ID, "bob")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Like: %v", err)
		}
	}
	checkCount(t, s, msg, 1)
}

func testConcurrentLikeUnlike(t *testing.T, s store.EngagementStore) {
	ctx := context.Background()
	msg := message("alice", "hello", 0)
	save(t, s, msg)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = s.Like(ctx, msg.ID, "bob")
			} else {
				err = s.Unlike(ctx, msg.ID, "bob")
			}
			if err != nil {
				t.Errorf("Like/Unlike: %v", err)
			}
		}()
	}
	wg.Wait()

	liked, err := s.HasLiked(ctx, msg.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	want := 0
	if liked {
		want = 1
	}
	checkCount(t, s, msg, want)
}
