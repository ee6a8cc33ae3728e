package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/inkwell-api/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an owner",
		Long:  `Sign an access token with the configured JWT secret. Intended for local testing and support.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("owner")
			lifetime, _ := cmd.Flags().GetDuration("lifetime")

			owner, err := uuid.Parse(raw)
			if err != nil || owner == uuid.Nil {
				return fmt.Errorf("invalid owner ID %q", raw)
			}

			s, err := env.session(cmd)
			if err != nil {
				return err
			}

			svc, err := auth.NewJWTService(s.cfg.Auth)
			if err != nil {
				return err
			}

			var token string
			if lifetime > 0 {
				token, err = svc.GenerateTokenWithLifetime(cmd.Context(), owner, lifetime)
			} else {
				token, err = svc.GenerateToken(cmd.Context(), owner)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().String("owner", "", "Owner ID (UUID)")
	cmd.Flags().Duration("lifetime", 0, "Token lifetime, defaults to the configured lifetime")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
