package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gmcoin/mintworker/internal/control"
	"github.com/gmcoin/mintworker/internal/core/config"
	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/state"
)

var resetEpochCmd = &cobra.Command{
	Use:   "reset-epoch [epoch_timestamp]",
	Short: "Delete all persisted state of an epoch so the next trigger restarts it from scratch",
	Args:  cobra.ExactArgs(1),
	Run:   runResetEpoch,
}

func init() {
	rootCmd.AddCommand(resetEpochCmd)
}

func runResetEpoch(cmd *cobra.Command, args []string) {
	ts, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid epoch timestamp: %v\n", err)
		os.Exit(1)
	}
	epoch := domain.Epoch(ts)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, closer, err := control.OpenStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer func() { _ = closer() }()
	}

	if err := state.New(store, epoch).Clear(ctx); err != nil {
		slog.Error("Failed to clear epoch", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully cleared all state for epoch %s\n", epoch)
}
