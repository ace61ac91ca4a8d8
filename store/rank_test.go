package store

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func msgAt(id string, minute int) Message {
	return Message{
		ID:        uuid.MustParse(id),
		Author:    User{Name: "testuser"},
		Text:      id,
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func TestRankPopular(t *testing.T) {
	a := msgAt("00000000-0000-0000-0000-00000000000a", 1)
	b := msgAt("00000000-0000-0000-0000-00000000000b", 2)
	c := msgAt("00000000-0000-0000-0000-00000000000c", 3)
	d := msgAt("00000000-0000-0000-0000-00000000000d", 2)

	tests := []struct {
		name string
		in   []PopularMessage
		k    int
		want []PopularMessage
	}{
		{
			name: "Empty",
			k:    PopularLimit,
		},
		{
			name: "TieBrokenByRecency",
			in: []PopularMessage{
				{Message: a, LikeCount: 2},
				{Message: c, LikeCount: 0},
				{Message: b, LikeCount: 2},
			},
			k: PopularLimit,
			want: []PopularMessage{
				{Message: b, LikeCount: 2},
				{Message: a, LikeCount: 2},
				{Message: c, LikeCount: 0},
			},
		},
		{
			name: "SameInstantBrokenByID",
			in: []PopularMessage{
				{Message: b, LikeCount: 1},
				{Message: d, LikeCount: 1},
			},
			k: PopularLimit,
			want: []PopularMessage{
				{Message: d, LikeCount: 1},
				{Message: b, LikeCount: 1},
			},
		},
		{
			name: "Truncated",
			in: []PopularMessage{
				{Message: a, LikeCount: 1},
				{Message: b, LikeCount: 5},
				{Message: c, LikeCount: 3},
			},
			k: 2,
			want: []PopularMessage{
				{Message: b, LikeCount: 5},
				{Message: c, LikeCount: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RankPopular(tt.in, tt.k)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("RankPopular mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSortFeed(t *testing.T) {
	a := msgAt("00000000-0000-0000-0000-00000000000a", 1)
	b := msgAt("00000000-0000-0000-0000-00000000000b", 2)
	d := msgAt("00000000-0000-0000-0000-00000000000d", 2)

	got := []UserMessage{{Message: a}, {Message: b, LikeCount: 1}, {Message: d, Liked: true}}
	SortFeed(got)

	want := []UserMessage{{Message: d, Liked: true}, {Message: b, LikeCount: 1}, {Message: a}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortFeed mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMessage(t *testing.T) {
	m := NewMessage("testuser", "hello")
	if m.ID == uuid.Nil {
		t.Error("Got nil id")
	}
	if m.Author.Name != "testuser" || m.Text != "hello" {
		t.Errorf("Got %+v", m)
	}
	if m.CreatedAt.Location() != time.UTC {
		t.Errorf("Got location %s, want UTC", m.CreatedAt.Location())
	}
	if m.CreatedAt.Nanosecond()%int(time.Millisecond) != 0 {
		t.Errorf("Got sub-millisecond timestamp %s", m.CreatedAt)
	}
}
