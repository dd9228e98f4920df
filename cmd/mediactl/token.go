package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipehub/internal/config"
	jwtsvc "recipehub/internal/pkg/jwt"
)

// newTokenCommand issues a bearer token for local testing. It refuses to run
// in production environments.
func newTokenCommand() *cobra.Command {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if config.IsProdLike(cfg.AppEnv) {
				return fmt.Errorf("refusing to issue tokens in %s", cfg.AppEnv)
			}
			if userID <= 0 {
				return fmt.Errorf("--user must be positive")
			}
			token, err := jwtsvc.New(cfg.JWTSecret, ttl).GenerateToken(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id")
	cmd.Flags().StringVar(&role, "role", "client", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
