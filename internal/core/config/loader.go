package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gmcoin/mintworker/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Chain.PollInterval == 0 {
		cfg.Chain.PollInterval = 15 * time.Second
	}
	if cfg.Chain.RPCTimeout == 0 {
		cfg.Chain.RPCTimeout = 10 * time.Second
	}
	if cfg.Worker.Keyword == "" {
		cfg.Worker.Keyword = "gm"
	}
	if cfg.Worker.ConcurrencyLimit == 0 {
		cfg.Worker.ConcurrencyLimit = 5
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = 50
	}
	if cfg.Worker.PageSize == 0 {
		cfg.Worker.PageSize = 100
	}
	if cfg.Worker.VerifyThreshold == 0 {
		cfg.Worker.VerifyThreshold = 100
	}
	if cfg.Worker.VerifyCapacity == 0 {
		cfg.Worker.VerifyCapacity = 300
	}
	if cfg.Worker.MaxBatchRetries == 0 {
		cfg.Worker.MaxBatchRetries = 3
	}
}

// Validate fails before the first network call: a worker that starts with a
// missing credential would only discover it mid-epoch. Called after any CLI
// flag overrides are applied.
func (cfg *AppConfig) Validate() error {
	required := []struct {
		value string
		name  string
	}{
		{cfg.Social.SearchBaseURL, "social.search_base_url"},
		{cfg.Social.AuthBaseURL, "social.auth_base_url"},
		{cfg.Social.BearerToken, "social.bearer_token"},
		{cfg.Archive.BaseURL, "archive.base_url"},
		{cfg.Chain.RPCURL, "chain.rpc_url"},
		{cfg.Chain.ContractAddress, "chain.contract_address"},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s", domain.ErrMissingConfig, r.name)
		}
	}
	if !cfg.Worker.DryRun && cfg.Chain.RelayerURL == "" {
		return fmt.Errorf("%w: chain.relayer_url (required unless worker.dry_run)", domain.ErrMissingConfig)
	}

	switch cfg.Storage.Backend {
	case "memory":
	case "redis":
		if cfg.Storage.Redis.URL == "" {
			return fmt.Errorf("%w: storage.redis.url", domain.ErrMissingConfig)
		}
	case "postgres":
		if cfg.Storage.Database.URL == "" {
			return fmt.Errorf("%w: storage.database.url", domain.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrMissingConfig, cfg.Storage.Backend)
	}
	return nil
}
