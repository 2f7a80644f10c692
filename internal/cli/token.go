package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coopdesk/backoffice/internal/application/auth"
	"github.com/coopdesk/backoffice/internal/config"
	"github.com/coopdesk/backoffice/internal/env"
	"github.com/coopdesk/backoffice/internal/infrastructure/keygen"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue API bearer tokens",
	}
	cmd.AddCommand(newTokenIssueCommand(), newTokenSecretCommand())
	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token with the server's BACKOFFICE_JWT_* settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var authCfg config.AuthConfig
			if err := env.Load(&authCfg); err != nil {
				return err
			}
			authenticator, err := auth.NewAuthenticator(auth.Config{
				Secret:   []byte(authCfg.JWTSecret),
				Issuer:   authCfg.Issuer,
				TokenTTL: authCfg.TokenTTL,
				Leeway:   authCfg.Leeway,
			})
			if err != nil {
				return err
			}

			token, err := authenticator.Issue(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. the clerk's login")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "lifetime (default BACKOFFICE_JWT_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newTokenSecretCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random value for BACKOFFICE_JWT_SECRET",
		Long: `Secret prints a fresh signing secret on stdout and its fingerprint on
stderr. The server logs the same fingerprint at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := keygen.GenerateSecret(size)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "fingerprint %s\n", keygen.Fingerprint([]byte(secret)))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		},
	}

	cmd.Flags().IntVar(&size, "bytes", keygen.DefaultSecretBytes, "random bytes of entropy")
	return cmd
}
