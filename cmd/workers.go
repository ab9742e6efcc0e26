package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Inspect registered workers",
}

var workersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workers and their heartbeat age",
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, err := st.ListWorkers()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, w := range workers {
			status := "running"
			if w.StoppedAt != nil {
				status = "stopped"
			}
			fmt.Printf("%-24s  pid=%-8d  status=%-8s  heartbeat_age=%s\n",
				w.ID, w.PID, status, now.Sub(w.LastHeartbeat).Round(time.Second))
		}
		return nil
	},
}

func init() {
	workersCmd.AddCommand(workersListCmd)
	rootCmd.AddCommand(workersCmd)
}
