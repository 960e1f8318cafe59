package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justyntemme/aladinkr/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <client>",
		Short: "Issue an API token for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.JWTSecret == "" {
				return errors.New("server.jwt_secret is not configured")
			}

			issuer, err := auth.NewIssuer(a.cfg.Server.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := issuer.GenerateToken(args[0])
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")

	return cmd
}
