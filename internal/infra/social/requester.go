package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/worker/metrics"
)

// SearchClient is the slice of Client the requester needs.
type SearchClient interface {
	SearchPosts(ctx context.Context, query, cursor string, limit int) (*Page, error)
}

// FetchOutcome collects the results of one fan-out round. Updated holds only
// batches whose fetch succeeded; Failed holds the rest with ErrorCount
// already incremented. Fatal carries the first data-integrity error, which
// must abort the whole invocation.
type FetchOutcome struct {
	Posts   []domain.Post
	Updated []domain.Batch
	Failed  []domain.Batch
	Fatal   error
}

// FetchInBatches issues one paginated request per batch concurrently. Each
// batch catches its own failure so no fetch blocks or cancels its siblings.
// Posts are returned grouped in batch order, which keeps the downstream
// hash/upload order deterministic.
func FetchInBatches(
	ctx context.Context,
	client SearchClient,
	batches []domain.Batch,
	queries map[string]string,
	users *domain.UserIndexMap,
	pageSize int,
	log *slog.Logger,
) *FetchOutcome {
	type slot struct {
		posts []domain.Post
		batch domain.Batch
		err   error
	}
	slots := make([]slot, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		g.Go(func() error {
			posts, batch, err := fetchOne(gctx, client, b, queries[b.Range()], users, pageSize)
			slots[i] = slot{posts: posts, batch: batch, err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := &FetchOutcome{}
	for _, s := range slots {
		if s.err != nil {
			metrics.BatchFetchErrors.Inc()
			log.Warn("batch fetch failed",
				"range", s.batch.Range(), "error_count", s.batch.ErrorCount, "error", s.err)
			out.Failed = append(out.Failed, s.batch)
			if out.Fatal == nil && isIntegrityError(s.err) {
				out.Fatal = s.err
			}
			continue
		}
		out.Posts = append(out.Posts, s.posts...)
		out.Updated = append(out.Updated, s.batch)
	}
	return out
}

func fetchOne(
	ctx context.Context,
	client SearchClient,
	b domain.Batch,
	query string,
	users *domain.UserIndexMap,
	pageSize int,
) ([]domain.Post, domain.Batch, error) {
	if query == "" {
		b.ErrorCount++
		return nil, b, fmt.Errorf("no query for batch %s", b.Range())
	}

	page, err := client.SearchPosts(ctx, query, b.NextCursor, pageSize)
	if err != nil {
		b.ErrorCount++
		return nil, b, err
	}

	var posts []domain.Post
	for _, p := range page.Posts {
		idx, ok := users.IndexOf(p.Handle)
		if !ok {
			// Drift between the directory snapshot and the API response
			// would corrupt the accounting if ignored.
			b.ErrorCount++
			return nil, b, fmt.Errorf("%w: handle %q in batch %s", domain.ErrHandleResolution, p.Handle, b.Range())
		}
		p.UserIndex = idx
		posts = append(posts, p)
	}

	b.NextCursor = page.NextCursor
	b.ErrorCount = 0
	return posts, b, nil
}

func isIntegrityError(err error) bool {
	return errors.Is(err, domain.ErrHandleResolution) || errors.Is(err, domain.ErrMalformedPayload)
}
