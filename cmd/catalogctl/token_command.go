package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coachcatalog/api/internal/auth"
	"coachcatalog/api/internal/config"
)

// newTokenCommand issues a development bearer token signed with JWT_SECRET.
func newTokenCommand() *cobra.Command {
	var claims auth.Claims
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			claims.ExpiresAt = time.Now().Add(ttl)
			token, err := auth.IssueToken(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&claims.CoachID, "coach", "", "Coach id (token subject)")
	cmd.Flags().StringVar(&claims.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&claims.Role, "role", "coach", "Role: viewer, assistant, coach or admin")
	cmd.Flags().StringVar(&claims.Plan, "plan", "", "Plan name; empty uses DEFAULT_PLAN")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}
