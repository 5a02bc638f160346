// playoutd runs the rundown playout engine.
//
// The serve command starts the HTTP job surface, the studio MQTT bridge and
// the WebSocket timeline feed. The remaining commands operate on the same
// storage for operators and scripts:
//
//	playoutd serve
//	playoutd migrate up
//	playoutd import shows/evening-news.yaml
//	playoutd status evening
//	playoutd jobs --playlist evening
//	playoutd token director
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/playout-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "playoutd",
		Short:         "Broadcast rundown playout engine",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $PLAYOUT_CONFIG or "+defaultConfigPath+")")

	paths := func() string { return getConfigPath(configPath) }

	root.AddCommand(serveCmd(paths))
	root.AddCommand(migrateCmd(paths))
	root.AddCommand(importCmd(paths))
	root.AddCommand(statusCmd(paths))
	root.AddCommand(jobsCmd(paths))
	root.AddCommand(tokenCmd(paths))

	return root
}

// getConfigPath returns the configuration file path: the --config flag,
// then PLAYOUT_CONFIG, then the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("PLAYOUT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
