package verify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

func heldPost(id string, user uint64, likes int) domain.Post {
	return domain.Post{ID: id, UserIndex: user, LikesCount: likes, Content: "gm"}
}

func TestOfferThreshold(t *testing.T) {
	s := NewSet(100, 300)

	if _, held := s.Offer(heldPost("a", 1, 100)); held {
		t.Error("likes == threshold must not be held")
	}
	if _, held := s.Offer(heldPost("b", 1, 101)); !held {
		t.Error("likes > threshold must be held")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestOfferKeepsDescendingOrderAndCap(t *testing.T) {
	s := NewSet(100, 3)

	for _, likes := range []int{150, 300, 200} {
		s.Offer(heldPost("p", 1, likes))
	}
	got := s.Posts()
	if got[0].LikesCount != 300 || got[1].LikesCount != 200 || got[2].LikesCount != 150 {
		t.Fatalf("not sorted descending: %v", got)
	}

	// A stronger post displaces the weakest entry.
	evicted, held := s.Offer(heldPost("q", 2, 250))
	if !held {
		t.Fatal("stronger post must be held")
	}
	if evicted == nil || evicted.LikesCount != 150 {
		t.Fatalf("expected eviction of the 150-likes post, got %v", evicted)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want cap 3", s.Len())
	}

	// A weaker post overflows right back to normal scoring.
	evicted, held = s.Offer(heldPost("r", 3, 120))
	if held || evicted != nil {
		t.Error("post weaker than the whole set must not be held")
	}
}

func TestHeldUsers(t *testing.T) {
	s := NewSet(100, 10)
	s.Offer(heldPost("a", 1, 150))
	s.Offer(heldPost("b", 1, 180))
	s.Offer(heldPost("c", 2, 130))

	users := s.HeldUsers()
	if len(users) != 2 {
		t.Fatalf("HeldUsers = %v, want 2 users", users)
	}
	for _, u := range []uint64{1, 2} {
		if _, ok := users[u]; !ok {
			t.Errorf("user %d missing from held set", u)
		}
	}
}

func TestRestoreResorts(t *testing.T) {
	posts := []domain.Post{heldPost("a", 1, 110), heldPost("b", 2, 500), heldPost("c", 3, 200)}
	s := Restore(100, 2, posts)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want cap 2", s.Len())
	}
	if s.Posts()[0].LikesCount != 500 {
		t.Errorf("highest-likes post not first: %v", s.Posts())
	}
}

type fakeLookup struct {
	likes map[string]int
	fail  map[string]bool
}

func (f *fakeLookup) LookupPost(ctx context.Context, id string) (*domain.Post, error) {
	if f.fail[id] {
		return nil, errors.New("lookup failed")
	}
	return &domain.Post{ID: id, LikesCount: f.likes[id], Content: "gm verified"}, nil
}

func TestReverifyOverwritesWithAuthoritativeValues(t *testing.T) {
	lookup := &fakeLookup{
		likes: map[string]int{"a": 90, "b": 400},
		fail:  map[string]bool{"c": true},
	}
	v := NewVerifier(lookup, 2, slog.Default())

	in := []domain.Post{
		heldPost("a", 1, 150),
		heldPost("b", 2, 300),
		heldPost("c", 3, 999),
	}
	out := v.Reverify(context.Background(), in)

	if len(out) != 2 {
		t.Fatalf("got %d posts, want 2 (failed lookup dropped)", len(out))
	}
	if out[0].ID != "a" || out[0].LikesCount != 90 {
		t.Errorf("spoofed count not corrected: %+v", out[0])
	}
	if out[0].Content != "gm verified" {
		t.Errorf("content not overwritten: %q", out[0].Content)
	}
	if out[1].ID != "b" || out[1].LikesCount != 400 {
		t.Errorf("unexpected second post: %+v", out[1])
	}
}
