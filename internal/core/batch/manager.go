// Package batch reconstructs and expands the set of concurrent pagination
// batches that walk the user directory for one epoch.
package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/state"
)

// Directory resolves the full ordered handle list of the registered-user
// directory, caching partial progress internally.
type Directory interface {
	Handles(ctx context.Context, epoch domain.Epoch) ([]string, error)
}

// Plan is the reconciled work for one invocation: the active batches, their
// deterministic queries keyed by range, and the combined index map.
type Plan struct {
	Batches []domain.Batch
	Queries map[string]string
	Users   *domain.UserIndexMap
}

// Manager carves the directory into batches up to the concurrency limit and
// restores in-flight batches from their cached handle lists.
type Manager struct {
	state            *state.Manager
	dir              Directory
	concurrencyLimit int
	batchSize        int
}

func NewManager(st *state.Manager, dir Directory, concurrencyLimit, batchSize int) *Manager {
	return &Manager{
		state:            st,
		dir:              dir,
		concurrencyLimit: concurrencyLimit,
		batchSize:        batchSize,
	}
}

// GenerateNewBatches drops fully-drained incoming batches, rebuilds the rest
// byte-identically from their cached handle lists and, while under the
// concurrency limit, claims fresh contiguous ranges from the directory. An
// exhausted directory ends expansion early: that is normal end-of-epoch, not
// an error.
func (m *Manager) GenerateNewBatches(ctx context.Context, incoming []domain.Batch) (*Plan, error) {
	plan := &Plan{
		Queries: make(map[string]string),
		Users:   domain.NewUserIndexMap(),
	}

	active := make([]domain.Batch, 0, len(incoming))
	for _, b := range incoming {
		if b.Drained() {
			// Its users were flushed when it drained; the cache is dead.
			if err := m.state.DeleteBatchHandles(ctx, b); err != nil {
				return nil, err
			}
			continue
		}
		active = append(active, b)
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartIndex < active[j].StartIndex
	})

	for _, b := range active {
		handles, err := m.state.BatchHandles(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("restore batch %s: %w", b.Range(), err)
		}
		if err := m.admit(plan, b, handles); err != nil {
			return nil, err
		}
	}

	if len(plan.Batches) >= m.concurrencyLimit {
		return plan, nil
	}

	maxEnd, err := m.state.MaxEndIndex(ctx)
	if err != nil {
		return nil, err
	}
	directory, err := m.dir.Handles(ctx, m.state.Epoch())
	if err != nil {
		return nil, err
	}

	for len(plan.Batches) < m.concurrencyLimit && maxEnd < uint64(len(directory)) {
		end := maxEnd + uint64(m.batchSize)
		if end > uint64(len(directory)) {
			end = uint64(len(directory))
		}
		b := domain.Batch{StartIndex: maxEnd, EndIndex: end}
		handles := directory[maxEnd:end]

		// Cache before the first query so a crashed invocation rebuilds the
		// exact same query from storage.
		if err := m.state.SaveBatchHandles(ctx, b, handles); err != nil {
			return nil, err
		}
		if err := m.admit(plan, b, handles); err != nil {
			return nil, err
		}

		maxEnd = end
		if err := m.state.SaveMaxEndIndex(ctx, maxEnd); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func (m *Manager) admit(plan *Plan, b domain.Batch, handles []string) error {
	if uint64(len(handles)) != b.EndIndex-b.StartIndex {
		return fmt.Errorf("batch %s handle cache has %d entries, want %d",
			b.Range(), len(handles), b.EndIndex-b.StartIndex)
	}
	for i, h := range handles {
		plan.Users.Add(b.StartIndex+uint64(i), h)
	}
	plan.Batches = append(plan.Batches, b)
	plan.Queries[b.Range()] = BuildQuery(handles, m.state.Epoch())
	return nil
}

// BuildQuery renders the multi-author search query for one batch. It is a
// pure function of the handle list and the epoch, so reconstructing a batch
// after a crash yields a byte-identical query.
func BuildQuery(handles []string, epoch domain.Epoch) string {
	terms := make([]string, len(handles))
	for i, h := range handles {
		terms[i] = "from:" + h
	}
	since, until := epoch.Window()
	return fmt.Sprintf("%s since_time:%d until_time:%d",
		strings.Join(terms, " OR "), since.Unix(), until.Unix())
}
