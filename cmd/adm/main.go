// Package main provides the support admin CLI: offline HAR and request tools and a terminal ticket reporter.
package main

import (
	"context"
	"fmt"
	"os"

	"supportapp/cmd/adm/commands"
	"supportapp/internal/config"
	"supportapp/internal/observability"
	"supportapp/internal/version"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	// Set default config file if not already set
	if os.Getenv(config.ConfigFileEnv) == "" {
		defaultPaths := []string{
			"../config.yaml",    // From cmd/adm/
			"../../config.yaml", // From cmd/adm/ (alternative)
			"config.yaml",       // Current directory
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s environment variable: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override log level for admin tool
	cfg.Server.LogLevel = "error"

	// No OTLP export from the admin CLI; errors still go to stderr
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = true
	cfg.OpenTelemetry.Endpoint = ""

	providers, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "support-admin", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := providers.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Error shutting down telemetry providers", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := newRootCommand(cfg, logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Support Ticket Administration Tool",
		Long: `Support Ticket Administration Tool

Inspect and sanitize network logs, debug how request bodies are normalized
and file tickets from the terminal.`,
		SilenceUsage: true,

		Run: func(cmd *cobra.Command, _ []string) {
			// Show help if no subcommand provided
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.HARCommands(logger))
	rootCmd.AddCommand(commands.NormalizeCommand())
	rootCmd.AddCommand(commands.ReportCommand(cfg, logger))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get(cfg.OpenTelemetry.ServiceName))
		},
	})

	return rootCmd
}
