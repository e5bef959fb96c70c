package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DeepChandMishra/Skincare/internal/config"
	"github.com/DeepChandMishra/Skincare/internal/platform/auth"
)

// tokenCmd mints a signed token for local testing against a server that
// runs with AUTH_SIGNING_KEY set.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("token command is disabled when ENV=production")
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is required")
			}

			actor, err := auth.ParseActor(sub, role)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, actor, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "Actor id (uuid)")
	cmd.Flags().String("role", "patient", "Actor role: patient or doctor")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("sub")
	return cmd
}
