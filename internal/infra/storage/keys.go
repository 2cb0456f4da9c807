package storage

import (
	"fmt"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// KeyKind enumerates every kind of state the worker persists. Keys are built
// exclusively through Key so a collision between two kinds is impossible by
// construction.
type KeyKind uint8

const (
	// KindTallies holds the per-user Result map for the epoch.
	KindTallies KeyKind = iota
	// KindRunningHash holds the chained digest and uploaded-record counter.
	KindRunningHash
	// KindPending holds the high-engagement verification holding set.
	KindPending
	// KindMaxEndIndex holds the high-water mark of claimed directory indices.
	KindMaxEndIndex
	// KindBatchHandles holds the cached handle list of one batch range.
	KindBatchHandles
	// KindDirectory holds the partially-resolved id-to-handle directory.
	KindDirectory
)

func (k KeyKind) String() string {
	switch k {
	case KindTallies:
		return "tallies"
	case KindRunningHash:
		return "hash"
	case KindPending:
		return "pending"
	case KindMaxEndIndex:
		return "maxend"
	case KindBatchHandles:
		return "handles"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Key is the typed form of a storage key: kind + epoch + optional range.
type Key struct {
	Kind  KeyKind
	Epoch domain.Epoch
	Start uint64
	End   uint64
}

// BatchKey builds the per-range handle-cache key for one batch.
func BatchKey(epoch domain.Epoch, b domain.Batch) Key {
	return Key{Kind: KindBatchHandles, Epoch: epoch, Start: b.StartIndex, End: b.EndIndex}
}

func (k Key) String() string {
	if k.Kind == KindBatchHandles {
		return fmt.Sprintf("%s%s:%d-%d", EpochPrefix(k.Epoch), k.Kind, k.Start, k.End)
	}
	return EpochPrefix(k.Epoch) + k.Kind.String()
}

// EpochPrefix is the namespace shared by every key of one minting day.
func EpochPrefix(e domain.Epoch) string {
	return fmt.Sprintf("mint:%s:", e)
}
