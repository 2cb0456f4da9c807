// Package archive is the HTTP client of the off-chain record archive.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	core "github.com/gmcoin/mintworker/internal/core/archive"
	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/worker/metrics"
)

// Uploader persists record batches to the archive service.
type Uploader interface {
	// UploadRecords reports true only on an explicit success acknowledgement.
	// Every other outcome, transport errors included, is false: the caller
	// decides whether to abort, the client never escalates.
	UploadRecords(ctx context.Context, records []core.Record, epoch domain.Epoch) bool

	// TriggerIPFSUpload asks the service to pin the epoch's archive. Fire and
	// forget: the minting outcome never depends on it.
	TriggerIPFSUpload(ctx context.Context, epoch domain.Epoch)
}

type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type HTTPUploader struct {
	base   string
	apiKey string
	httpc  *http.Client
	log    *slog.Logger
}

func NewHTTPUploader(cfg Config) *HTTPUploader {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPUploader{
		base:   cfg.BaseURL,
		apiKey: cfg.APIKey,
		httpc:  &http.Client{Timeout: timeout},
		log:    slog.With("component", "archive"),
	}
}

func (u *HTTPUploader) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}
	return u.httpc.Do(req)
}

func (u *HTTPUploader) UploadRecords(ctx context.Context, records []core.Record, epoch domain.Epoch) bool {
	if len(records) == 0 {
		return true
	}

	batchID := uuid.NewString()
	resp, err := u.post(ctx, "/SaveRecords", map[string]any{
		"batchId":             batchID,
		"records":             records,
		"mintingDayTimestamp": uint64(epoch),
	})
	if err != nil {
		metrics.UploadFailures.Inc()
		u.log.Error("record upload failed", "batch_id", batchID, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UploadFailures.Inc()
		u.log.Error("record upload rejected", "batch_id", batchID, "status", resp.StatusCode)
		return false
	}

	var ack struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil || !ack.Success {
		metrics.UploadFailures.Inc()
		u.log.Error("record upload unacknowledged", "batch_id", batchID, "error", err)
		return false
	}

	u.log.Info("records archived", "batch_id", batchID, "count", len(records))
	return true
}

func (u *HTTPUploader) TriggerIPFSUpload(ctx context.Context, epoch domain.Epoch) {
	resp, err := u.post(ctx, "/UploadToIPFS", map[string]any{
		"mintingDayTimestamp": uint64(epoch),
	})
	if err != nil {
		u.log.Warn("ipfs trigger failed", "epoch", fmt.Sprint(epoch), "error", err)
		return
	}
	resp.Body.Close()
	u.log.Info("ipfs upload triggered", "epoch", fmt.Sprint(epoch), "status", resp.StatusCode)
}
