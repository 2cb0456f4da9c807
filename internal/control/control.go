// Package control wires configuration into a running minting worker.
package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gmcoin/mintworker/internal/core/batch"
	"github.com/gmcoin/mintworker/internal/core/config"
	"github.com/gmcoin/mintworker/internal/core/state"
	infraarchive "github.com/gmcoin/mintworker/internal/infra/archive"
	"github.com/gmcoin/mintworker/internal/infra/chain"
	"github.com/gmcoin/mintworker/internal/infra/social"
	"github.com/gmcoin/mintworker/internal/infra/storage"
	"github.com/gmcoin/mintworker/internal/infra/storage/memory"
	"github.com/gmcoin/mintworker/internal/infra/storage/postgres"
	redisstore "github.com/gmcoin/mintworker/internal/infra/storage/redis"
	"github.com/gmcoin/mintworker/internal/worker"
	"github.com/gmcoin/mintworker/internal/worker/health"
)

// Service is the assembled worker: storage, clients, orchestrator, runner and
// the health server, managed as one lifecycle.
type Service struct {
	cfg          *config.AppConfig
	runner       *worker.Runner
	healthServer *health.Server
	store        storage.Store
	closeStore   func() error
	log          *slog.Logger
}

// OpenStore builds the configured storage backend. The returned closer is
// non-nil for backends holding connections.
func OpenStore(ctx context.Context, cfg *config.AppConfig) (storage.Store, func() error, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Storage.Database, "migrations")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		slog.Info("Using PostgreSQL storage")
		return postgres.NewStore(db), db.Close, nil
	case "redis":
		rs, err := redisstore.NewStore(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
		slog.Info("Using Redis storage")
		return rs, rs.Close, nil
	default:
		slog.Info("Using Memory storage")
		return memory.NewMemoryStore(), nil, nil
	}
}

// NewService builds every component from the configuration.
func NewService(ctx context.Context, cfg *config.AppConfig) (*Service, error) {
	svc := &Service{cfg: cfg, log: slog.Default()}

	store, closer, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc.store = store
	svc.closeStore = closer

	socialClient := social.NewHTTPClient(cfg.Social)
	uploader := infraarchive.NewHTTPUploader(cfg.Archive)

	codec, err := chain.NewCodec(chain.ContractABI)
	if err != nil {
		return nil, err
	}
	client := chain.NewClient(cfg.Chain.RPCURL, cfg.Chain.RPCTimeout)
	contract := common.HexToAddress(cfg.Chain.ContractAddress)

	dirFactory := func(st *state.Manager) batch.Directory {
		return chain.NewConnector(client, codec, contract, socialClient, st)
	}

	orch := worker.NewOrchestrator(store, socialClient, dirFactory, uploader, codec, worker.Options{
		Keyword:           cfg.Worker.Keyword,
		ConcurrencyLimit:  cfg.Worker.ConcurrencyLimit,
		BatchSize:         cfg.Worker.BatchSize,
		PageSize:          cfg.Worker.PageSize,
		VerifyThreshold:   cfg.Worker.VerifyThreshold,
		VerifyCapacity:    cfg.Worker.VerifyCapacity,
		VerifyConcurrency: cfg.Worker.VerifyConcurrency,
		MaxBatchRetries:   cfg.Worker.MaxBatchRetries,
	})

	var submitter chain.Submitter
	if cfg.Worker.DryRun {
		slog.Info("Dry-run mode: contract calls will be logged, not relayed")
		submitter = chain.NewLogSubmitter()
	} else {
		submitter = chain.NewRelaySubmitter(cfg.Chain.RelayerURL, 0)
	}

	svc.runner = worker.NewRunner(worker.RunnerConfig{
		Contract:     contract,
		PollInterval: cfg.Chain.PollInterval,
		StartBlock:   cfg.Chain.StartBlock,
	}, client, codec, orch, submitter)

	svc.healthServer = health.NewServer(svc.runner, cfg.Server.Port)
	return svc, nil
}

// Start starts the runner and the health server.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	if pg, ok := s.store.(*postgres.Store); ok {
		pg.StartMetricsCollector(ctx)
	}

	go func() {
		if err := s.runner.Start(ctx); err != nil {
			s.log.Error("Runner failed", "error", err)
		}
	}()
	return nil
}

// Stop stops the runner and shuts the health server down.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping worker...")

	if err := s.runner.Stop(); err != nil {
		s.log.Warn("Failed to stop runner", "error", err)
	}
	if s.closeStore != nil {
		if err := s.closeStore(); err != nil {
			s.log.Warn("Failed to close storage", "error", err)
		}
	}
	return s.healthServer.Stop(ctx)
}
