package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/cliconfig"
	"github.com/queuectl/queuectl/internal/engine"
	"github.com/queuectl/queuectl/internal/store"
)

var (
	dbPath string
	st     *store.Store
	proc   cliconfig.Process
)

var rootCmd = &cobra.Command{
	Use:   "queuectl",
	Short: "A persistent, single-node background job queue.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if st != nil {
			return nil
		}
		proc = cliconfig.Load()
		if dbPath != "" {
			proc.DBPath = dbPath
		}
		s, err := store.Open(proc.DBPath)
		if err != nil {
			return fmt.Errorf("open store at %s: %w", proc.DBPath, err)
		}
		st = s
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if st == nil {
			return nil
		}
		err := st.Close()
		st = nil
		return err
	},
}

// Execute runs the root command; it's the single entry point called from
// main. Exit code follows SPEC_FULL.md §7: 0 on success, 2 for a ClientError,
// 1 for anything else (Fatal/StoreTransient surfaced to the operator).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if engine.IsClientError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite DB (default $QUEUECTL_DB or ./queuectl.db)")
}
