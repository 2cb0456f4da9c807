package archive

import (
	"testing"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/scoring"
)

func post(id, content string, likes int) domain.Post {
	return domain.Post{ID: id, Content: content, LikesCount: likes}
}

func TestRunningHashDeterminism(t *testing.T) {
	posts := []domain.Post{
		post("1", "gm", 3),
		post("2", "#gm", 10),
		post("3", "$gm fam", 0),
	}

	run := func(order []int) string {
		acc, err := NewAccumulator("", 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, i := range order {
			acc.Add(posts[i], scoring.Simple)
		}
		return acc.HashHex()
	}

	a := run([]int{0, 1, 2})
	b := run([]int{0, 1, 2})
	if a == "" || a != b {
		t.Errorf("same sequence must hash identically: %q vs %q", a, b)
	}

	c := run([]int{1, 0, 2})
	if c == a {
		t.Error("reordering two posts must change the hash")
	}
}

func TestAccumulatorResumesFromPersistedState(t *testing.T) {
	full, _ := NewAccumulator("", 0)
	full.Add(post("1", "gm", 1), scoring.Simple)
	full.Add(post("2", "gm gm", 2), scoring.Simple)

	// Simulate a checkpoint between the two posts.
	first, _ := NewAccumulator("", 0)
	first.Add(post("1", "gm", 1), scoring.Simple)
	first.Flush()

	resumed, err := NewAccumulator(first.HashHex(), first.Uploaded())
	if err != nil {
		t.Fatal(err)
	}
	resumed.Add(post("2", "gm gm", 2), scoring.Simple)

	if resumed.HashHex() != full.HashHex() {
		t.Errorf("resumed hash %q != uninterrupted hash %q", resumed.HashHex(), full.HashHex())
	}
	if resumed.Uploaded() != 1 {
		t.Errorf("Uploaded = %d, want 1", resumed.Uploaded())
	}
}

func TestFlushAdvancesCounterAndEmptiesBuffer(t *testing.T) {
	acc, _ := NewAccumulator("", 5)
	acc.Add(post("a", "gm", 0), scoring.Simple)
	acc.Add(post("b", "gm", 0), scoring.Hashtag)

	if len(acc.Buffered()) != 2 {
		t.Fatalf("Buffered = %d, want 2", len(acc.Buffered()))
	}
	acc.Flush()
	if len(acc.Buffered()) != 0 {
		t.Error("buffer not cleared after flush")
	}
	if acc.Uploaded() != 7 {
		t.Errorf("Uploaded = %d, want 7", acc.Uploaded())
	}
}

func TestNewAccumulatorRejectsBadHex(t *testing.T) {
	if _, err := NewAccumulator("not-hex", 0); err == nil {
		t.Error("expected error for invalid hex digest")
	}
}

func TestCanonicalKeyIncludesLikesAndContent(t *testing.T) {
	a := Record{ID: "1", Likes: 5, Content: "gm"}
	b := Record{ID: "1", Likes: 6, Content: "gm"}
	if a.CanonicalKey() == b.CanonicalKey() {
		t.Error("likes must be part of the canonical key")
	}
}
