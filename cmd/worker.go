package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/dispatcher"
	"github.com/queuectl/queuectl/internal/metrics"
	"github.com/queuectl/queuectl/internal/workerpool"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run worker loops against the queue",
}

var workerStartCount int

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the worker pool. Ctrl+C to stop gracefully.",
	RunE: func(cmd *cobra.Command, args []string) error {
		count := workerStartCount
		if !cmd.Flags().Changed("count") && proc.WorkerCount > 0 {
			count = proc.WorkerCount
		}
		if count < 1 {
			count = 1
		}

		observer, err := metrics.NewPrometheusObserver(nil)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		disp := dispatcher.New(st)
		pool := workerpool.NewPool(count, st, disp, clockwork.NewRealClock(), log.Default(), observer)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Printf("worker pool started with %d worker(s). Ctrl+C to stop.\n", count)
		pool.Start(ctx)
		<-ctx.Done()
		fmt.Println("\nshutting down...")
		pool.Stop()
		return nil
	},
}

func init() {
	workerStartCmd.Flags().IntVar(&workerStartCount, "count", 1, "Number of worker loops to run")
	workerCmd.AddCommand(workerStartCmd)
	rootCmd.AddCommand(workerCmd)
}
