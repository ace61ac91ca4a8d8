package store

import (
	"bytes"
	"slices"
)

// SortFeed orders msgs newest first. Messages created at the same instant are
// ordered by id, highest first.
func SortFeed(msgs []UserMessage) {
	slices.SortStableFunc(msgs, func(a, b UserMessage) int {
		return compareRecency(a.Message, b.Message)
	})
}

// RankPopular orders msgs by like count, then by recency, and returns the
// first k. Messages without likes are kept and rank last.
func RankPopular(msgs []PopularMessage, k int) []PopularMessage {
	slices.SortStableFunc(msgs, func(a, b PopularMessage) int {
		if a.LikeCount != b.LikeCount {
			if a.LikeCount > b.LikeCount {
				return -1
			}
			return 1
		}
		return compareRecency(a.Message, b.Message)
	})
	if len(msgs) > k {
		msgs = msgs[:k]
	}
	return msgs
}

func compareRecency(a, b Message) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(b.ID[:], a.ID[:])
}
