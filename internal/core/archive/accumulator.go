// Package archive buffers canonical post records and maintains the chained
// digest that anchors the off-chain computation to the final on-chain
// "finished" event.
package archive

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/scoring"
)

// Record is the canonical archival form of one processed post.
type Record struct {
	ID       string `json:"id"`
	Likes    int    `json:"likes"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// CanonicalKey is the exact byte sequence folded into the running hash. Any
// auditor replaying the archived records in upload order must reproduce the
// same keys.
func (r Record) CanonicalKey() string {
	return r.ID + "|" + strconv.Itoa(r.Likes) + "|" + r.Content
}

// Accumulator chains keccak256 over every record in Add order. The hash and
// the uploaded-record counter are persisted after each successful upload so
// the chain survives stateless re-entries of the epoch.
type Accumulator struct {
	hash     []byte
	buffer   []Record
	uploaded uint64
}

// NewAccumulator restores an accumulator from the persisted hex digest and
// record counter; both are zero at the start of an epoch.
func NewAccumulator(hashHex string, uploaded uint64) (*Accumulator, error) {
	var h []byte
	if hashHex != "" {
		var err error
		h, err = hex.DecodeString(hashHex)
		if err != nil {
			return nil, fmt.Errorf("invalid running hash %q: %w", hashHex, err)
		}
	}
	return &Accumulator{hash: h, uploaded: uploaded}, nil
}

// Add appends the post's record and advances the chained digest. Call order
// must equal upload order exactly: reordering two posts changes the result.
func (a *Accumulator) Add(post domain.Post, category scoring.Category) {
	rec := Record{
		ID:       post.ID,
		Likes:    post.LikesCount,
		Content:  post.Content,
		Category: category.String(),
	}
	a.buffer = append(a.buffer, rec)
	a.hash = crypto.Keccak256(append(a.hash, []byte(rec.CanonicalKey())...))
}

// HashHex returns the current digest as a hex string, empty before any Add.
func (a *Accumulator) HashHex() string {
	return hex.EncodeToString(a.hash)
}

// Buffered returns the records awaiting upload.
func (a *Accumulator) Buffered() []Record {
	return a.buffer
}

// Uploaded returns how many records were confirmed archived so far.
func (a *Accumulator) Uploaded() uint64 {
	return a.uploaded
}

// Flush marks the buffered records as archived. Only call after the upload
// endpoint confirmed success.
func (a *Accumulator) Flush() {
	a.uploaded += uint64(len(a.buffer))
	a.buffer = nil
}
