package batch

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/state"
	"github.com/gmcoin/mintworker/internal/infra/storage/memory"
)

type staticDirectory struct {
	handles []string
	calls   int
}

func (d *staticDirectory) Handles(ctx context.Context, epoch domain.Epoch) ([]string, error) {
	d.calls++
	return d.handles, nil
}

func makeHandles(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("user%03d", i)
	}
	return out
}

const testEpoch = domain.Epoch(1760486400)

func TestGenerateNewBatchesCarvesContiguousRanges(t *testing.T) {
	st := state.New(memory.NewMemoryStore(), testEpoch)
	dir := &staticDirectory{handles: makeHandles(25)}
	mgr := NewManager(st, dir, 2, 10)

	plan, err := mgr.GenerateNewBatches(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	want := []domain.Batch{
		{StartIndex: 0, EndIndex: 10},
		{StartIndex: 10, EndIndex: 20},
	}
	if !reflect.DeepEqual(plan.Batches, want) {
		t.Fatalf("Batches = %v, want %v", plan.Batches, want)
	}
	if plan.Users.Len() != 20 {
		t.Errorf("Users.Len = %d, want 20", plan.Users.Len())
	}

	maxEnd, err := st.MaxEndIndex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if maxEnd != 20 {
		t.Errorf("MaxEndIndex = %d, want 20", maxEnd)
	}

	// Next round: both batches still active, so only the tail is claimed
	// once a slot opens.
	drained := []domain.Batch{
		{StartIndex: 0, EndIndex: 10},                       // drained
		{StartIndex: 10, EndIndex: 20, NextCursor: "abc"},   // in flight
	}
	plan2, err := mgr.GenerateNewBatches(context.Background(), drained)
	if err != nil {
		t.Fatal(err)
	}
	want2 := []domain.Batch{
		{StartIndex: 10, EndIndex: 20, NextCursor: "abc"},
		{StartIndex: 20, EndIndex: 25},
	}
	if !reflect.DeepEqual(plan2.Batches, want2) {
		t.Fatalf("Batches = %v, want %v", plan2.Batches, want2)
	}
}

func TestGenerateNewBatchesIsByteIdenticalOnReplay(t *testing.T) {
	st := state.New(memory.NewMemoryStore(), testEpoch)
	dir := &staticDirectory{handles: makeHandles(30)}
	mgr := NewManager(st, dir, 3, 10)

	first, err := mgr.GenerateNewBatches(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Same incoming batch list, same cached handles: the rebuilt queries
	// must match byte for byte.
	second, err := mgr.GenerateNewBatches(context.Background(), first.Batches)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Batches, second.Batches) {
		t.Fatalf("batches differ: %v vs %v", first.Batches, second.Batches)
	}
	if !reflect.DeepEqual(first.Queries, second.Queries) {
		t.Fatalf("queries differ:\n%v\n%v", first.Queries, second.Queries)
	}
}

func TestGenerateNewBatchesStopsOnExhaustedDirectory(t *testing.T) {
	st := state.New(memory.NewMemoryStore(), testEpoch)
	dir := &staticDirectory{handles: makeHandles(5)}
	mgr := NewManager(st, dir, 10, 10)

	plan, err := mgr.GenerateNewBatches(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Batches) != 1 {
		t.Fatalf("Batches = %v, want a single short batch", plan.Batches)
	}
	if plan.Batches[0].EndIndex != 5 {
		t.Errorf("EndIndex = %d, want 5", plan.Batches[0].EndIndex)
	}

	// Everything drained: zero batches, normal end of epoch.
	plan2, err := mgr.GenerateNewBatches(context.Background(), []domain.Batch{
		{StartIndex: 0, EndIndex: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan2.Batches) != 0 {
		t.Errorf("Batches = %v, want none", plan2.Batches)
	}
}

func TestDrainedBatchCacheIsDeleted(t *testing.T) {
	store := memory.NewMemoryStore()
	st := state.New(store, testEpoch)
	dir := &staticDirectory{handles: makeHandles(10)}
	mgr := NewManager(st, dir, 1, 10)

	if _, err := mgr.GenerateNewBatches(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	b := domain.Batch{StartIndex: 0, EndIndex: 10}
	if _, err := st.BatchHandles(context.Background(), b); err != nil {
		t.Fatalf("handle cache should exist: %v", err)
	}

	if _, err := mgr.GenerateNewBatches(context.Background(), []domain.Batch{b}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.BatchHandles(context.Background(), b); err == nil {
		t.Error("drained batch handle cache should be deleted")
	}
}

func TestBuildQueryDeterministic(t *testing.T) {
	handles := []string{"alice", "bob"}
	q := BuildQuery(handles, testEpoch)
	want := "from:alice OR from:bob since_time:1760486400 until_time:1760572800"
	if q != want {
		t.Errorf("BuildQuery = %q, want %q", q, want)
	}
}
