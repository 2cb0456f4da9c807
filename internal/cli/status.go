package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmcoin/mintworker/internal/control"
	"github.com/gmcoin/mintworker/internal/core/config"
	"github.com/gmcoin/mintworker/internal/core/domain"
	"github.com/gmcoin/mintworker/internal/core/state"
)

var statusEpoch uint64

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted minting progress of an epoch",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().Uint64Var(&statusEpoch, "epoch", 0, "epoch timestamp (default: today, UTC)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	epoch := domain.Epoch(statusEpoch)
	if statusEpoch == 0 {
		epoch = domain.EpochForDay(time.Now())
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

	st := state.New(store, epoch)
	maxEnd, err := st.MaxEndIndex(ctx)
	if err != nil {
		slog.Error("Failed to read progress", "error", err)
		os.Exit(1)
	}
	tallies, err := st.Tallies(ctx)
	if err != nil {
		slog.Error("Failed to read tallies", "error", err)
		os.Exit(1)
	}
	pending, err := st.PendingPosts(ctx)
	if err != nil {
		slog.Error("Failed to read pending set", "error", err)
		os.Exit(1)
	}
	hash, uploaded, err := st.RunningHash(ctx)
	if err != nil {
		slog.Error("Failed to read running hash", "error", err)
		os.Exit(1)
	}
	if hash == "" {
		hash = "-"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "EPOCH\tCLAIMED\tLIVE TALLIES\tPENDING\tUPLOADED\tHASH")
	_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
		epoch, maxEnd, len(tallies), len(pending), uploaded, hash)
	_ = w.Flush()
}
