package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// Submitter hands encoded contract calls to whatever executes them. The
// worker never signs transactions itself.
type Submitter interface {
	Submit(ctx context.Context, calls []domain.ContractCall) error
}

// RelaySubmitter POSTs calls to an external relayer that owns the signing
// key. Calls of one invocation are submitted in order; the first failure
// stops the rest.
type RelaySubmitter struct {
	endpoint string
	httpc    *http.Client
	log      *slog.Logger
}

func NewRelaySubmitter(endpoint string, timeout time.Duration) *RelaySubmitter {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RelaySubmitter{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
		log:      slog.With("component", "relay"),
	}
}

func (s *RelaySubmitter) Submit(ctx context.Context, calls []domain.ContractCall) error {
	for _, call := range calls {
		payload, err := json.Marshal(map[string]string{
			"id":     uuid.NewString(),
			"method": call.Method,
			"data":   hexutil.Encode(call.Data),
		})
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpc.Do(req)
		if err != nil {
			return fmt.Errorf("relay %s: %w", call.Method, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("relay %s: status %d", call.Method, resp.StatusCode)
		}
		s.log.Info("call relayed", "method", call.Method, "bytes", len(call.Data))
	}
	return nil
}

// LogSubmitter logs calls instead of relaying them. Used in dry-run mode.
type LogSubmitter struct {
	log *slog.Logger
}

func NewLogSubmitter() *LogSubmitter {
	return &LogSubmitter{log: slog.With("component", "dry-run")}
}

func (s *LogSubmitter) Submit(_ context.Context, calls []domain.ContractCall) error {
	for _, call := range calls {
		s.log.Info("dry-run call", "method", call.Method, "data", hexutil.Encode(call.Data))
	}
	return nil
}
