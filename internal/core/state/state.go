// Package state loads and saves the typed per-epoch snapshots that make the
// worker resumable between stateless invocations.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/infra/storage"
)

// Manager binds a Store to one epoch. Every snapshot below is keyed through
// the storage key schema and garbage-collected together by Clear.
type Manager struct {
	store storage.Store
	epoch domain.Epoch
}

func New(store storage.Store, epoch domain.Epoch) *Manager {
	return &Manager{store: store, epoch: epoch}
}

func (m *Manager) Epoch() domain.Epoch {
	return m.epoch
}

func (m *Manager) key(kind storage.KeyKind) string {
	return storage.Key{Kind: kind, Epoch: m.epoch}.String()
}

func (m *Manager) getJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, err := m.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("corrupt state at %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, string(raw))
}

// Tallies returns the accumulated per-user results, empty when the epoch is
// fresh.
func (m *Manager) Tallies(ctx context.Context) (map[uint64]*domain.Result, error) {
	tallies := make(map[uint64]*domain.Result)
	if _, err := m.getJSON(ctx, m.key(storage.KindTallies), &tallies); err != nil {
		return nil, err
	}
	return tallies, nil
}

func (m *Manager) SaveTallies(ctx context.Context, tallies map[uint64]*domain.Result) error {
	return m.setJSON(ctx, m.key(storage.KindTallies), tallies)
}

// hashSnapshot pairs the chained digest with the uploaded-record counter so
// the two can never drift apart.
type hashSnapshot struct {
	Hash     string `json:"hash"`
	Uploaded uint64 `json:"uploaded"`
}

func (m *Manager) RunningHash(ctx context.Context) (hash string, uploaded uint64, err error) {
	var snap hashSnapshot
	if _, err := m.getJSON(ctx, m.key(storage.KindRunningHash), &snap); err != nil {
		return "", 0, err
	}
	return snap.Hash, snap.Uploaded, nil
}

func (m *Manager) SaveRunningHash(ctx context.Context, hash string, uploaded uint64) error {
	return m.setJSON(ctx, m.key(storage.KindRunningHash), hashSnapshot{Hash: hash, Uploaded: uploaded})
}

func (m *Manager) PendingPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if _, err := m.getJSON(ctx, m.key(storage.KindPending), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (m *Manager) SavePendingPosts(ctx context.Context, posts []domain.Post) error {
	return m.setJSON(ctx, m.key(storage.KindPending), posts)
}

// MaxEndIndex is the high-water mark of claimed directory indices. Persisted
// after every batch expansion so a resumed invocation never reassigns a
// range.
func (m *Manager) MaxEndIndex(ctx context.Context) (uint64, error) {
	raw, err := m.store.Get(ctx, m.key(storage.KindMaxEndIndex))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (m *Manager) SaveMaxEndIndex(ctx context.Context, maxEnd uint64) error {
	return m.store.Set(ctx, m.key(storage.KindMaxEndIndex), strconv.FormatUint(maxEnd, 10))
}

// BatchHandles returns the cached handle list of one batch range. The cache
// is written before the batch's first query and deleted once it drains.
func (m *Manager) BatchHandles(ctx context.Context, b domain.Batch) ([]string, error) {
	var handles []string
	found, err := m.getJSON(ctx, storage.BatchKey(m.epoch, b).String(), &handles)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no cached handles for batch %s", b.Range())
	}
	return handles, nil
}

func (m *Manager) SaveBatchHandles(ctx context.Context, b domain.Batch, handles []string) error {
	return m.setJSON(ctx, storage.BatchKey(m.epoch, b).String(), handles)
}

func (m *Manager) DeleteBatchHandles(ctx context.Context, b domain.Batch) error {
	return m.store.Delete(ctx, storage.BatchKey(m.epoch, b).String())
}

// DirectorySnapshot is the partially-resolved user directory cache.
type DirectorySnapshot struct {
	Total    uint64   `json:"total"`
	Resolved uint64   `json:"resolved"`
	Handles  []string `json:"handles"`
}

func (m *Manager) Directory(ctx context.Context) (*DirectorySnapshot, error) {
	var snap DirectorySnapshot
	found, err := m.getJSON(ctx, m.key(storage.KindDirectory), &snap)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

func (m *Manager) SaveDirectory(ctx context.Context, snap *DirectorySnapshot) error {
	return m.setJSON(ctx, m.key(storage.KindDirectory), snap)
}

// Clear deletes every key of the epoch. Called once on the terminal round.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Clear(ctx, storage.EpochPrefix(m.epoch))
}
