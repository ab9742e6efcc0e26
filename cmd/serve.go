package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/dashboard"
	"github.com/queuectl/queuectl/internal/metrics"
	"github.com/queuectl/queuectl/internal/reaper"
	"github.com/queuectl/queuectl/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only web dashboard and Prometheus metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if !cmd.Flags().Changed("addr") && proc.DashboardAddr != "" {
			addr = proc.DashboardAddr
		}

		roStore, err := store.OpenReadOnly(proc.DBPath)
		if err != nil {
			return fmt.Errorf("open read-only store: %w", err)
		}
		defer roStore.Close()

		observer, err := metrics.NewPrometheusObserver(nil)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// A standalone `queuectl serve` with no worker process running
		// would otherwise have nothing to rescue jobs a crashed worker
		// left stuck in processing. Run the reaper against the
		// already-open writable store (st) so the queue keeps
		// self-healing even when every worker has died.
		go reaper.New(st, clockwork.NewRealClock(), log.Default(), observer).Run(ctx)

		srv := dashboard.NewServer(addr, roStore)
		fmt.Printf("dashboard listening on %s\n", addr)
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Dashboard listen address")
	rootCmd.AddCommand(serveCmd)
}
