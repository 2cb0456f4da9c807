// Package verify holds high-engagement posts back until their engagement
// numbers are confirmed by an authoritative source at epoch finish.
package verify

import (
	"sort"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// Set is the bounded pending-verification holding set, kept sorted
// descending by likes. When a higher-likes post arrives at capacity the
// lowest entry overflows back into the normal scoring path.
type Set struct {
	threshold int
	capacity  int
	posts     []domain.Post
}

// NewSet builds an empty set. threshold is the likes count above which a
// post is held; capacity bounds the set size.
func NewSet(threshold, capacity int) *Set {
	return &Set{threshold: threshold, capacity: capacity}
}

// Restore rebuilds a set from a persisted snapshot.
func Restore(threshold, capacity int, posts []domain.Post) *Set {
	s := NewSet(threshold, capacity)
	s.posts = append(s.posts, posts...)
	sort.SliceStable(s.posts, func(i, j int) bool {
		return s.posts[i].LikesCount > s.posts[j].LikesCount
	})
	if len(s.posts) > capacity {
		s.posts = s.posts[:capacity]
	}
	return s
}

// Offer routes a post through the holding policy. held=false means the post
// must be scored normally right now; a non-nil evicted post was displaced
// from a full set and must likewise be scored normally.
func (s *Set) Offer(post domain.Post) (evicted *domain.Post, held bool) {
	if post.LikesCount <= s.threshold {
		return nil, false
	}
	if len(s.posts) >= s.capacity {
		lowest := s.posts[len(s.posts)-1]
		if post.LikesCount <= lowest.LikesCount {
			// The newcomer is the weakest entry: it overflows immediately.
			return nil, false
		}
		s.posts = s.posts[:len(s.posts)-1]
		evicted = &lowest
	}

	i := sort.Search(len(s.posts), func(i int) bool {
		return s.posts[i].LikesCount < post.LikesCount
	})
	s.posts = append(s.posts, domain.Post{})
	copy(s.posts[i+1:], s.posts[i:])
	s.posts[i] = post
	return evicted, true
}

// Posts returns the held posts in descending-likes order.
func (s *Set) Posts() []domain.Post {
	return s.posts
}

// Len returns the number of held posts.
func (s *Set) Len() int {
	return len(s.posts)
}

// HeldUsers returns the directory indices with at least one held post. A
// user's tally must not be flushed while it can still change at finish.
func (s *Set) HeldUsers() map[uint64]struct{} {
	users := make(map[uint64]struct{}, len(s.posts))
	for _, p := range s.posts {
		users[p.UserIndex] = struct{}{}
	}
	return users
}
