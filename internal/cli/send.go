package cli

import (
	"errors"
	"fmt"
	"strings"

	"agendabot-backend/internal/messaging"

	"github.com/spf13/cobra"
)

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <to> <text...>",
		Short: "Send a text message to a number",
		Long: `Send a text message through the delivery client, with the same retry
and backoff the server uses. A leading "+" on the number is accepted.`,
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			to := args[0]
			text := strings.Join(args[1:], " ")
			return withEnv(cmd.Context(), open, func(env *Env) error {
				err := env.Sender.SendText(cmd.Context(), to, text)
				if err != nil {
					var limited *messaging.RateLimitedError
					if errors.As(err, &limited) {
						return fmt.Errorf("rate limited, retry after %s", limited.RetryAfter)
					}
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"status": "sent",
						"to":     messaging.NormalizeRecipient(to),
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", messaging.NormalizeRecipient(to))
				return nil
			})
		},
	}

	return cmd
}
