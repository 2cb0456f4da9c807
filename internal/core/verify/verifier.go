package verify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// Lookup fetches a single post by its immutable id from the authoritative
// (non-optimized) API.
type Lookup interface {
	LookupPost(ctx context.Context, id string) (*domain.Post, error)
}

// Verifier re-fetches held posts at epoch finish and overwrites their
// engagement counts and content with the authoritative values. A mismatch is
// corrected silently: the authoritative value always wins.
type Verifier struct {
	lookup      Lookup
	concurrency int
	log         *slog.Logger
}

func NewVerifier(lookup Lookup, concurrency int, log *slog.Logger) *Verifier {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Verifier{lookup: lookup, concurrency: concurrency, log: log}
}

// Reverify returns the corrected posts in input order. A post whose
// authoritative fetch fails is dropped: without a confirmed value it is not
// scored at all.
func (v *Verifier) Reverify(ctx context.Context, posts []domain.Post) []domain.Post {
	verified := make([]*domain.Post, len(posts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, p := range posts {
		g.Go(func() error {
			authoritative, err := v.lookup.LookupPost(gctx, p.ID)
			if err != nil {
				v.log.Warn("authoritative re-fetch failed, dropping post",
					"post_id", p.ID, "user_index", p.UserIndex, "error", err)
				return nil
			}
			corrected := p
			corrected.LikesCount = authoritative.LikesCount
			corrected.RepostsCount = authoritative.RepostsCount
			corrected.Content = authoritative.Content
			verified[i] = &corrected
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Post, 0, len(posts))
	for _, p := range verified {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}
