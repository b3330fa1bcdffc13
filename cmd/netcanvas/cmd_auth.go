package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HerbHall/netcanvas/internal/auth"
	"github.com/HerbHall/netcanvas/internal/prefs"
	"github.com/HerbHall/netcanvas/internal/ui"
)

func (c *cli) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored lab credential",
	}
	cmd.AddCommand(c.authSetTokenCmd(), c.authStatusCmd(), c.authClearCmd())
	return cmd
}

func (c *cli) authSetTokenCmd() *cobra.Command {
	var id prefs.Identity
	cmd := &cobra.Command{
		Use:   "set-token <token>",
		Short: "Store the bearer token issued by the lab service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}
			a, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			if auth.TokenExpired(token, a.Clock.Now()) {
				return fmt.Errorf("token has already expired")
			}
			if err := a.Prefs.SetCredentials(cmd.Context(), token, id); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			ui.Success(cmd.OutOrStdout(), "Token stored")
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Username, "user", "", "user name the token belongs to")
	cmd.Flags().StringVar(&id.UserID, "user-id", "", "user id the token belongs to")
	cmd.Flags().StringVar(&id.UserType, "user-type", "", "user type the token belongs to")
	return cmd
}

func (c *cli) authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a usable token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tok, err := a.Prefs.Token(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case tok == "":
				ui.Failure(out, "Not logged in")
				return nil
			case auth.TokenExpired(tok, a.Clock.Now()):
				ui.Failure(out, "Stored token has expired")
				return nil
			}
			id, err := a.Prefs.Identity(cmd.Context())
			if err != nil {
				return err
			}
			who := id.Username
			if who == "" {
				who = "unknown user"
			}
			ui.Success(out, "Logged in as %s", who)
			return nil
		},
	}
}

func (c *cli) authClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored token and identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Prefs.ClearCredentials(cmd.Context()); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Credentials cleared")
			return nil
		},
	}
}
