package domain

import (
	"strconv"
	"time"
)

// Epoch identifies one 24h scoring window by its UTC midnight unix timestamp.
// All persisted state for a minting day is namespaced by this value and
// garbage-collected together when the day finishes.
type Epoch uint64

// EpochForDay returns the epoch covering the day that contains t.
func EpochForDay(t time.Time) Epoch {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return Epoch(midnight.Unix())
}

// Time returns the UTC midnight that opens the window.
func (e Epoch) Time() time.Time {
	return time.Unix(int64(e), 0).UTC()
}

// Window returns the half-open [since, until) interval of the scoring day.
func (e Epoch) Window() (since, until time.Time) {
	since = e.Time()
	return since, since.Add(24 * time.Hour)
}

func (e Epoch) String() string {
	return strconv.FormatUint(uint64(e), 10)
}
