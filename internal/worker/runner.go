package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/infra/chain"
)

// Invoker runs one minting round per trigger event.
type Invoker interface {
	Invoke(ctx context.Context, ev domain.TriggerEvent) (domain.InvocationResult, error)
}

// LogSource is the slice of the chain client the runner polls.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, address common.Address, topic common.Hash, fromBlock uint64) ([]chain.Log, error)
}

// RunnerConfig holds the polling settings.
type RunnerConfig struct {
	Contract     common.Address
	PollInterval time.Duration
	StartBlock   uint64
}

// Status is the runner state snapshot exposed over the health server.
type Status struct {
	Running     bool      `json:"running"`
	NextBlock   uint64    `json:"nextBlock"`
	LastEpoch   string    `json:"lastEpoch,omitempty"`
	LastOutcome string    `json:"lastOutcome,omitempty"`
	LastRunAt   time.Time `json:"lastRunAt,omitempty"`
}

// Runner polls the contract for MintingBatchProcessed events and feeds each
// one through the invoker. Triggers are processed strictly in log order.
type Runner struct {
	cfg       RunnerConfig
	source    LogSource
	codec     *chain.Codec
	invoker   Invoker
	submitter chain.Submitter
	log       *slog.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	status Status
}

func NewRunner(cfg RunnerConfig, source LogSource, codec *chain.Codec, invoker Invoker, submitter chain.Submitter) *Runner {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 15 * time.Second
	}
	return &Runner{
		cfg:       cfg,
		source:    source,
		codec:     codec,
		invoker:   invoker,
		submitter: submitter,
		log:       slog.With("component", "runner"),
		stop:      make(chan struct{}),
	}
}

// Start begins the polling loop and blocks until Stop or context cancel.
func (r *Runner) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("runner already running")
	}
	defer r.running.Store(false)

	fromBlock := r.cfg.StartBlock
	if fromBlock == 0 {
		head, err := r.source.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("resolve chain head: %w", err)
		}
		fromBlock = head
	}
	r.setStatus(func(s *Status) {
		s.Running = true
		s.NextBlock = fromBlock
	})

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.stop:
			return nil
		case <-ticker.C:
			next, err := r.pollOnce(ctx, fromBlock)
			if err != nil {
				r.log.Error("poll failed", "from_block", fromBlock, "error", err)
				continue
			}
			fromBlock = next
			r.setStatus(func(s *Status) { s.NextBlock = fromBlock })
		}
	}
}

// Stop stops the polling loop. Safe to call more than once.
func (r *Runner) Stop() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}

// Status returns the current runner snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	s.Running = r.running.Load()
	return s
}

func (r *Runner) setStatus(update func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	update(&r.status)
}

// pollOnce processes every trigger since fromBlock and returns the next block
// to resume from. A submit failure stops mid-scan without advancing past the
// failed trigger, so the next poll retries it.
func (r *Runner) pollOnce(ctx context.Context, fromBlock uint64) (uint64, error) {
	logs, err := r.source.FilterLogs(ctx, r.cfg.Contract, r.codec.EventTopic(), fromBlock)
	if err != nil {
		return fromBlock, fmt.Errorf("filter logs: %w", err)
	}

	for _, l := range logs {
		ev, err := r.codec.DecodeTrigger(l.Data)
		if err != nil {
			if errors.Is(err, domain.ErrEventDecode) {
				// A payload the worker cannot read will never become
				// readable. Skip it instead of wedging the loop.
				r.log.Error("undecodable trigger, skipping", "tx", l.TxHash, "error", err)
				fromBlock = uint64(l.BlockNumber) + 1
				continue
			}
			return fromBlock, err
		}

		res, invokeErr := r.invoker.Invoke(ctx, *ev)
		r.setStatus(func(s *Status) {
			s.LastEpoch = ev.MintingDay.String()
			s.LastRunAt = time.Now()
			if res.CanExec {
				s.LastOutcome = "success"
			} else {
				s.LastOutcome = res.Message
			}
		})
		if invokeErr != nil {
			// Nothing was mutated on-chain. Stay on this trigger so the next
			// poll retries the round from its last checkpoint.
			r.log.Error("invocation aborted", "epoch", ev.MintingDay, "message", res.Message, "error", invokeErr)
			return fromBlock, nil
		}

		if res.CanExec {
			if err := r.submitter.Submit(ctx, res.Calls); err != nil {
				return fromBlock, fmt.Errorf("submit calls for epoch %s: %w", ev.MintingDay, err)
			}
		}
		fromBlock = uint64(l.BlockNumber) + 1
	}
	return fromBlock, nil
}
