// Command credcored serves the credcore HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/httpapi"
	"github.com/MrEthical07/credcore/internal/appconfig"
	"github.com/MrEthical07/credcore/metrics/export/prometheus"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
)

const (
	appName         = "credcore"
	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	envFile := os.Getenv("CREDCORE_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	settings, err := appconfig.Load(flag.NewFlagSet("credcored", flag.ContinueOnError), args, envFile)
	if err != nil {
		return err
	}
	logger, err := appconfig.NewLogger(os.Stderr, settings.LogLevel)
	if err != nil {
		return err
	}

	figure.NewFigure(appName, "cybermedium", true).Print()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, settings, logger)
}

func serve(ctx context.Context, settings appconfig.Settings, logger zerolog.Logger) error {
	b, err := openBackend(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error().Err(err).Msg("close storage")
		}
	}()

	builder := credcore.New().
		WithConfig(settings.EngineConfig()).
		WithRefreshStore(b.store).
		WithUserDirectory(b.users)
	if settings.Audit {
		builder = builder.WithAuditSink(credcore.NewZerologSink(logger.With().Str("component", "audit").Logger()))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := seedDevUser(b, settings, engine.HashPassword); err != nil {
		return err
	}

	opts := httpapi.Options{
		Auth:              engine,
		Logger:            logger,
		CookieSecure:      settings.CookieSecure,
		CORSOrigins:       settings.CORSOrigins,
		TrustProxyHeaders: settings.TrustProxy,
		Health:            b.health,
	}
	if settings.Metrics {
		opts.Metrics = prometheus.NewPrometheusExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              settings.Addr,
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", settings.Addr).
			Str("store", settings.Store).
			Bool("metrics", settings.Metrics).
			Bool("audit", settings.Audit).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
