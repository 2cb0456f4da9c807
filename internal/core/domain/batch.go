package domain

import "fmt"

// Batch covers a contiguous half-open range [StartIndex, EndIndex) of
// user-directory indices together with the opaque pagination cursor of the
// in-flight social API query. An empty cursor means the query is either not
// started this round or fully exhausted.
type Batch struct {
	StartIndex uint64 `json:"startIndex"`
	EndIndex   uint64 `json:"endIndex"`
	NextCursor string `json:"nextCursor"`
	ErrorCount uint8  `json:"errorCount"`
}

// Drained reports whether the batch has been paginated to the end and is not
// waiting on a retry. Drained batches must not re-enter the active set.
func (b Batch) Drained() bool {
	return b.NextCursor == "" && b.ErrorCount == 0
}

// Range returns the canonical "start-end" form used in storage keys and logs.
func (b Batch) Range() string {
	return fmt.Sprintf("%d-%d", b.StartIndex, b.EndIndex)
}

// SameRanges reports whether two batch sets cover exactly the same state.
// Consecutive emissions for one epoch must never compare equal unless the
// epoch has finished, otherwise no progress is observable on-chain.
func SameRanges(a, b []Batch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
