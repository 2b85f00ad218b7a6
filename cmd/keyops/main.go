package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/cmd/keyops/commands"
	"github.com/systmms/keyops/internal/config"
	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  string
		noColor     bool
		debug       bool
		metricsAddr string
	)

	cfg := &config.Config{}
	metricsServer := &metrics.Server{}

	rootCmd := &cobra.Command{
		Use:   "keyops",
		Short: "Key-ring operations - Manage data-protection key rings in secret stores",
		Long: `keyops lists, stores, and migrates data-protection key documents
kept in managed secret stores such as AWS Secrets Manager, GCP Secret
Manager, and Azure Key Vault.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(debug, noColor)
			cfg.Path = configFile
			cfg.Logger = logger
			metrics.Init()

			if metricsAddr != "" {
				serverCfg := metrics.DefaultServerConfig()
				serverCfg.Enabled = true
				serverCfg.Addr = metricsAddr
				metricsServer = metrics.NewServer(serverCfg)
				if err := metricsServer.Start(); err != nil {
					logger.Warn("Metrics server failed to start: %v", err)
				}
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metricsServer.Stop(ctx)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "keyops.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(
		commands.NewListCommand(cfg),
		commands.NewStoreCommand(cfg),
		commands.NewMigrateCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewStoresCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
