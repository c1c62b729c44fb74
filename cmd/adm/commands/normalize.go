package commands

import (
	"net/http"

	"supportapp/internal/handlers"
	"supportapp/internal/models"
	"supportapp/internal/normalize"

	"github.com/spf13/cobra"
)

type normalizeOutput struct {
	Source  normalize.Source         `json:"source"`
	Request models.NormalizedRequest `json:"request"`
}

// NormalizeCommand prints the canonical request the server would build from a raw body
func NormalizeCommand() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Show how a request body is normalized",
		Long: `Read a raw ticket request body and print the canonical request the server
validates, together with the envelope field the body was found in.

Useful to debug clients that wrap the ticket in bodyRaw, bodyJson or body.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			decoded, source := normalize.Decode(handlers.RequestEnvelope(raw))
			return writeJSON(cmd.OutOrStdout(), normalizeOutput{
				Source:  source,
				Request: normalize.Canonical(decoded, method),
			})
		},
	}

	cmd.Flags().StringVar(&method, "method", http.MethodPost, "HTTP method recorded in the normalized request")

	return cmd
}
