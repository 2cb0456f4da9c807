package domain

// UserIndexMap is the bidirectional association between dense directory
// indices (assigned by on-chain registration order) and the external handles
// used to query the social API. Built once per invocation from cached handle
// lists and never mutated mid-batch.
type UserIndexMap struct {
	byHandle map[string]uint64
	byIndex  map[uint64]string
}

func NewUserIndexMap() *UserIndexMap {
	return &UserIndexMap{
		byHandle: make(map[string]uint64),
		byIndex:  make(map[uint64]string),
	}
}

func (m *UserIndexMap) Add(index uint64, handle string) {
	m.byHandle[handle] = index
	m.byIndex[index] = handle
}

// IndexOf resolves a handle back to its directory index. A miss indicates
// drift between the directory snapshot and the API response and is treated
// as a data-integrity error by callers, never silently skipped.
func (m *UserIndexMap) IndexOf(handle string) (uint64, bool) {
	idx, ok := m.byHandle[handle]
	return idx, ok
}

func (m *UserIndexMap) HandleOf(index uint64) (string, bool) {
	h, ok := m.byIndex[index]
	return h, ok
}

func (m *UserIndexMap) Len() int {
	return len(m.byHandle)
}
