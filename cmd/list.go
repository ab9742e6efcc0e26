package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/engine"
)

var (
	listState string
	listLimit int
	listJSON  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, optionally filtered by state",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := st.List(engine.State(listState), listLimit)
		if err != nil {
			return err
		}
		if listJSON {
			b, err := json.MarshalIndent(jobs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		for _, j := range jobs {
			fmt.Printf("%-36s  %-10s  prio=%-3d  attempts=%d/%d  %q\n",
				j.ID, j.State, j.Priority, j.Attempts, j.MaxRetries, j.Command)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listState, "state", "", "Filter by state (pending|processing|completed|failed|dead)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Max rows")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "JSON output")
	rootCmd.AddCommand(listCmd)
}
