// Package cliconfig binds the process-level settings every queuectl command
// needs before it can open a Store: the database path, default worker
// count, and the dashboard/metrics listen addresses. These are distinct
// from engine.Config, which lives inside the Store and is tuned at runtime
// via `queuectl config set` (SPEC_FULL.md §10.3). Viper wiring generalized
// from a JSON config file search path to QUEUECTL_*-prefixed environment
// variables, since a single-binary job queue has no natural per-project
// config file the way an interactive CLI agent does.
package cliconfig

import (
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "QUEUECTL"

// Process holds the settings resolved once at startup.
type Process struct {
	DBPath        string
	WorkerCount   int
	DashboardAddr string
	MetricsAddr   string
}

// Load reads QUEUECTL_DB, QUEUECTL_WORKERS, QUEUECTL_DASHBOARD_ADDR, and
// QUEUECTL_METRICS_ADDR from the environment, falling back to defaults.
// Cobra flag values, when set, take precedence and are applied by the
// caller after Load returns.
func Load() Process {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "queuectl.db")
	v.SetDefault("workers", 1)
	v.SetDefault("dashboard_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")

	return Process{
		DBPath:        v.GetString("db"),
		WorkerCount:   v.GetInt("workers"),
		DashboardAddr: v.GetString("dashboard_addr"),
		MetricsAddr:   v.GetString("metrics_addr"),
	}
}
