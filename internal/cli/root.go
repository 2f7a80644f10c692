// Package cli implements the backofficectl command line client.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/coopdesk/backoffice/internal/config"
	"github.com/coopdesk/backoffice/internal/fetch"
	"github.com/coopdesk/backoffice/internal/infrastructure/observability"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	apiURL   string
	token    string
	timeout  time.Duration
	logLevel string

	logger *slog.Logger
}

// NewRootCommand builds the backofficectl command tree. Flag defaults come
// from the BACKOFFICE_* client environment.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	defaults, err := config.LoadClientConfig()
	if err != nil {
		defaults = &config.ClientConfig{}
	}

	root := &cobra.Command{
		Use:   "backofficectl",
		Short: "Query and export the cooperative member directory",
		Long: `backofficectl talks to the backoffice API: it lists and exports members
with the same filters, sorting and saved views as the web tables, and
carries a few operator helpers for seeding data and issuing tokens.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := observability.ParseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = observability.NewLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api-url", defaults.APIURL, "backoffice API base URL (env BACKOFFICE_API_URL)")
	flags.StringVar(&opts.token, "token", defaults.Token, "bearer token (env BACKOFFICE_TOKEN)")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "per-command timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newMembersCommand(opts),
		newViewsCommand(opts),
		newQueryCommand(),
		newDBCommand(),
		newTokenCommand(),
	)
	return root
}

// Execute runs the command tree with the given context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *globalOptions) client() (*fetch.Client, error) {
	if o.apiURL == "" {
		return nil, errors.New("--api-url is required")
	}
	return fetch.NewClient(o.apiURL, fetch.WithToken(o.token), fetch.WithLogger(o.logger))
}

// commandContext applies the --timeout flag to the command's context.
func (o *globalOptions) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}
