// Command mockapi serves the in-memory marketplace API for local development.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/grandgaze/institutions"
	"github.com/jrsteele09/grandgaze/internal/config"
	"github.com/jrsteele09/grandgaze/internal/logging"
	"github.com/jrsteele09/grandgaze/mockapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	demoEmail    = "demo@grandgaze.local"
	demoPassword = "demo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:          "mockapi",
		Short:        "Serve the in-memory marketplace API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.New()
			if err != nil {
				return err
			}
			logging.Setup(c.GetEnv(), c.GetLogLevel())
			return serve(cmd.Context(), c, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "create a demo institution ("+demoEmail+" / "+demoPassword+")")
	return cmd
}

func serve(ctx context.Context, c config.Config, seed bool) error {
	api, err := mockapi.New(c.GetMockAPISecret())
	if err != nil {
		return err
	}
	if seed {
		if err := seedDemo(api.Store()); err != nil {
			return err
		}
		log.Info().Str("email", demoEmail).Msg("Seeded demo institution")
	}

	server := &http.Server{
		Addr:              c.GetMockAPIPort(),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("prefix", mockapi.PathPrefix).Msg("Mock API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "server.ListenAndServe")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Wrap(server.Shutdown(shutdownCtx), "server.Shutdown")
}

func seedDemo(store *mockapi.Store) error {
	hash, err := mockapi.HashPassword(demoPassword)
	if err != nil {
		return err
	}
	_, err = store.CreateAccount(institutions.Institution{
		Name:        "GrandGaze Demo College",
		Email:       demoEmail,
		Sector:      "Education",
		Description: "A demo institution for local development",
	}, hash)
	return err
}
