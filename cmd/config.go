package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set the engine's tuneable configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get one config key, or all of them if key is omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			v, err := st.GetConfigValue(args[0])
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		}
		cfg, err := st.GetConfig()
		if err != nil {
			return err
		}
		fmt.Printf("max-retries=%d\n", cfg.MaxRetries)
		fmt.Printf("backoff-base=%d\n", cfg.BackoffBase)
		fmt.Printf("worker-poll-interval=%g\n", cfg.WorkerPollInterval)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return st.SetConfig(args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
