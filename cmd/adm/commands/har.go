// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"fmt"

	"supportapp/internal/har"
	"supportapp/internal/observability"
	contextutils "supportapp/internal/utils"

	"github.com/spf13/cobra"
)

// HARCommands returns the network log commands
func HARCommands(logger *observability.Logger) *cobra.Command {
	harCmd := &cobra.Command{
		Use:   "har",
		Short: "Network log (HAR) commands",
		Long: `Network log (HAR) commands.

Available commands:
  sanitize  - Remove credential headers and cookies from a HAR file
  inspect   - Summarize a HAR file without printing its content`,
	}

	harCmd.AddCommand(harSanitizeCmd(logger))
	harCmd.AddCommand(harInspectCmd(logger))

	return harCmd
}

func harSanitizeCmd(logger *observability.Logger) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "sanitize <file|->",
		Short: "Remove credential headers and cookies from a HAR file",
		Long: `Remove Authorization, Cookie, Set-Cookie and token headers plus all cookies
from every request and response of a HAR file.

A file that is not valid JSON is written back unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			clean, removed, ok := har.SanitizeReport(raw)
			if !ok {
				logger.Warn(ctx, "Input is not a HAR document, leaving it unchanged", map[string]interface{}{"file": args[0]})
			}
			if err := writeOutput(cmd.OutOrStdout(), output, clean); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Removed %d sensitive items, wrote %s\n", removed, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the sanitized log to this file instead of stdout")

	return cmd
}

func harInspectCmd(logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file|->",
		Short: "Summarize a HAR file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			log, err := har.Parse(raw)
			if err != nil {
				logger.Error(context.Background(), "Failed to parse HAR file", err, map[string]interface{}{"file": args[0]})
				return contextutils.WrapError(contextutils.ErrInvalidFormat, "not a HAR document")
			}
			return writeJSON(cmd.OutOrStdout(), har.Summarize(log))
		},
	}
}
