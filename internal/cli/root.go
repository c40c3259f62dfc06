// Package cli implements botctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"agendabot-backend/internal/messaging"
	"agendabot-backend/internal/models"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// UserReader is the read side of the user directory.
type UserReader interface {
	ListIDs(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, uid string) (*models.User, error)
}

// Env is what a command needs from the running configuration.
type Env struct {
	Users  UserReader
	Sender messaging.Sender
	Close  func() error
}

// Opener builds an Env. It is called lazily so --help works without config.
type Opener func(ctx context.Context) (*Env, error)

// NewRootCommand creates the root command for botctl.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "botctl",
		Short: "Operate the agenda assistant",
		Long:  "Inspect registered users and send messages through the configured WhatsApp gateway.",
		// main prints the error once
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSendCommand(opts, open))
	cmd.AddCommand(NewUsersCommand(opts, open))
	cmd.AddCommand(NewStateCommand(opts, open))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withEnv opens the environment, runs fn, and always closes it.
func withEnv(ctx context.Context, open Opener, fn func(*Env) error) error {
	env, err := open(ctx)
	if err != nil {
		return err
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(env)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
