package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print queue counts and a recent-completion metrics snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now().UTC()
		counts, err := st.CountsByState()
		if err != nil {
			return err
		}
		active, err := st.ActiveWorkerCount(now, 90*time.Second)
		if err != nil {
			return err
		}
		snap, err := st.MetricsSnapshot(now)
		if err != nil {
			return err
		}

		fmt.Printf("pending=%d processing=%d completed=%d failed=%d dead=%d\n",
			counts[engine.StatePending], counts[engine.StateProcessing],
			counts[engine.StateCompleted], counts[engine.StateFailed], counts[engine.StateDead])
		fmt.Printf("active_workers=%d completed_last_min=%d", active, snap.CompletedLastMin)
		if snap.AvgDurationMS != nil {
			fmt.Printf(" avg_duration_ms=%d", *snap.AvgDurationMS)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
