package main

import (
	"github.com/jrsteele09/grandgaze/apiclient"
	"github.com/jrsteele09/grandgaze/internal/config"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/internal/logging"
	"github.com/jrsteele09/grandgaze/internal/observability"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/jrsteele09/grandgaze/session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// cli holds what every subcommand shares. The config is loaded once before any command runs.
type cli struct {
	config config.Config
}

// app is one process' wiring: a single session manager over the persisted token.
type app struct {
	config  config.Config
	store   *tokenstore.FileStore
	client  *apiclient.Client
	session *session.Manager
	metrics *observability.Metrics
}

// NewRootCmd creates the root command for the GrandGaze CLI.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "grandgaze",
		Short: "GrandGaze - procurement opportunities for institutions",
		Long: `GrandGaze lists requests for proposals, quotations and invitations
published by institutions. Run "grandgaze serve" for the web front-end or use
the subcommands to manage your session and posts from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			logging.Setup(cfg.GetEnv(), cfg.GetLogLevel())
			c.config = cfg
			return nil
		},
	}

	cmd.AddCommand(c.newServeCmd())
	cmd.AddCommand(c.newLoginCmd())
	cmd.AddCommand(c.newLogoutCmd())
	cmd.AddCommand(c.newWhoamiCmd())
	cmd.AddCommand(c.newRegisterCmd())
	cmd.AddCommand(c.newProfileCmd())
	cmd.AddCommand(c.newPostsCmd())

	return cmd
}

// newApp wires the token store, API client and session manager. Metrics are only collected
// for the long-running front-end.
func (c *cli) newApp(withMetrics bool) (*app, error) {
	store, err := tokenstore.NewFileStore(c.config.GetTokenFile())
	if err != nil {
		return nil, err
	}

	a := &app{config: c.config, store: store}
	clientOpts := []apiclient.Option{apiclient.WithTimeout(c.config.GetAPITimeout())}
	sessionOpts := []session.Option{
		session.WithResolveTimeout(c.config.GetResolveTimeout()),
		session.WithLogoutTimeout(c.config.GetLogoutTimeout()),
		session.WithResolveRetries(c.config.GetResolveRetries(), 0),
	}
	if withMetrics {
		a.metrics = observability.NewMetrics()
		clientOpts = append(clientOpts, apiclient.WithTransport(a.metrics.InstrumentRoundTripper(nil)))
		sessionOpts = append(sessionOpts, session.WithObserver(a.metrics))
	}

	a.client, err = apiclient.New(c.config.GetAPIURL(), store, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] api client")
	}
	a.session, err = session.New(a.client, store, sessionOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] session manager")
	}
	return a, nil
}

// userError turns a failure into the message shown on the terminal. The full chain goes to the log.
func userError(action string, err error) error {
	log.Debug().Err(err).Str("action", action).Msg("command failed")
	msg := apperrors.UserMessage(err)
	if msg == "" {
		msg = action + " failed"
	}
	return errors.New(msg)
}
