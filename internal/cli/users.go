package cli

import (
	"fmt"
	"text/tabwriter"

	"agendabot-backend/internal/models"

	"github.com/spf13/cobra"
)

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "users",
		Short:        "List registered users",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				ids, err := env.Users.ListIDs(cmd.Context())
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}

				users := make([]*models.User, 0, len(ids))
				for _, id := range ids {
					u, err := env.Users.FindByID(cmd.Context(), id)
					if err != nil {
						return fmt.Errorf("load user %s: %w", id, err)
					}
					if u != nil {
						users = append(users, u)
					}
				}

				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), users)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tONBOARDED\tCALENDAR\tTIMEZONE")
				for _, u := range users {
					name := "-"
					if u.Profile != nil && u.Profile.Name != "" {
						name = u.Profile.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n",
						u.ID, name, u.Profile.Complete(), u.CalendarLinked, u.Settings.Timezone)
				}
				return tw.Flush()
			})
		},
	}

	return cmd
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions, open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "state <uid>",
		Short:        "Show everything stored for one user",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), open, func(env *Env) error {
				u, err := env.Users.FindByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("user %s not found", args[0])
				}

				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), u)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "id:          %s\n", u.ID)
				if u.Profile != nil {
					fmt.Fprintf(out, "name:        %s\n", u.Profile.Name)
					fmt.Fprintf(out, "email:       %s\n", u.Profile.Email)
					fmt.Fprintf(out, "phone:       %s\n", u.Profile.Phone)
				}
				fmt.Fprintf(out, "timezone:    %s\n", u.Settings.Timezone)
				fmt.Fprintf(out, "calendar:    %s\n", u.Settings.CalendarID)
				fmt.Fprintf(out, "linked:      %t\n", u.CalendarLinked)
				fmt.Fprintf(out, "onboarding:  %s\n", u.Onboarding.Step)
				return nil
			})
		},
	}

	return cmd
}
