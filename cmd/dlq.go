package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/engine"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry jobs in the dead letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs currently in state=dead",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := st.List(engine.StateDead, 100)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			fmt.Printf("%-36s  attempts=%d/%d  %q  err=%q\n",
				j.ID, j.Attempts, j.MaxRetries, j.Command, j.ErrorMessage)
		}
		return nil
	},
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Reset a dead job back to pending with a clean slate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := st.DLQRetry(args[0], time.Now().UTC()); err != nil {
			return err
		}
		fmt.Printf("requeued %s\n", args[0])
		return nil
	},
}

func init() {
	dlqCmd.AddCommand(dlqListCmd, dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
