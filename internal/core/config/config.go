package config

import (
	"time"

	"github.com/gmcoin/mintworker/internal/infra/archive"
	"github.com/gmcoin/mintworker/internal/infra/social"
	"github.com/gmcoin/mintworker/internal/infra/storage/postgres"
	"github.com/gmcoin/mintworker/internal/infra/storage/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Storage  StorageConfig  `yaml:"storage"`
	Social   social.Config  `yaml:"social"`
	Archive  archive.Config `yaml:"archive"`
	Chain    ChainConfig    `yaml:"chain"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects and configures the epoch-state backend.
type StorageConfig struct {
	Backend  string          `yaml:"backend"` // postgres, redis, memory
	Redis    redis.Config    `yaml:"redis"`
	Database postgres.Config `yaml:"database"`
}

// ChainConfig holds the contract endpoint and the relay settings.
type ChainConfig struct {
	RPCURL          string        `yaml:"rpc_url"`
	ContractAddress string        `yaml:"contract_address"`
	RelayerURL      string        `yaml:"relayer_url"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	StartBlock      uint64        `yaml:"start_block"`
}

// WorkerConfig holds the minting-round tunables.
type WorkerConfig struct {
	Keyword           string `yaml:"keyword"`
	ConcurrencyLimit  int    `yaml:"concurrency_limit"`
	BatchSize         int    `yaml:"batch_size"`
	PageSize          int    `yaml:"page_size"`
	VerifyThreshold   int    `yaml:"verify_threshold"`
	VerifyCapacity    int    `yaml:"verify_capacity"`
	VerifyConcurrency int    `yaml:"verify_concurrency"`
	MaxBatchRetries   uint8  `yaml:"max_batch_retries"`
	DryRun            bool   `yaml:"dry_run"`
}
