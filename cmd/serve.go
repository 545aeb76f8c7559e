package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/antonovme52/vaibim-main/internal/app"
	"github.com/antonovme52/vaibim-main/internal/auth"
	"github.com/antonovme52/vaibim-main/internal/config"
	"github.com/antonovme52/vaibim-main/internal/telemetry"
	"github.com/antonovme52/vaibim-main/internal/users"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

const (
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the account and chat relay HTTP server.

The server stops gracefully on SIGINT or SIGTERM, letting in-flight requests
finish for up to five seconds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.SecretGenerated {
		log.Warn().Msg("SECRET_KEY is not set, using a random key; sessions will not survive a restart")
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("LLM_API_KEY is not set, every chat request will fail")
	}

	shutdownTracing, err := telemetry.Init(telemetry.Options{
		ServiceName: "vaibim",
		Version:     version,
		Stdout:      cfg.TraceStdout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	userStore, err := users.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer userStore.Close()

	sessions := auth.NewStore(cfg.SessionTTL)
	go sessions.Run(ctx, sweepInterval)

	chain, err := newChain(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure model chain: %w", err)
	}
	for _, m := range chain.Candidates() {
		log.Info().Str("provider", cfg.Provider).Str("model", m.ID).Int("priority", m.Priority).Msg("model enabled")
	}

	application := app.NewApp(cfg, userStore, sessions, chain)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("database", cfg.DatabasePath).
			Str("api_key", utils.MaskToken(cfg.APIKey)).
			Msg("starting server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}
