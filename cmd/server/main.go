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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jacksonlee411/payroll-engine/internal/config"
	"github.com/jacksonlee411/payroll-engine/internal/server"
	"github.com/jacksonlee411/payroll-engine/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{})
		boot.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("serve")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
		log.Info().Msg("stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "payroll-engine",
		Version:     cfg.ServiceVersion,
	})
}

// newServer wires the store selected by cfg into the HTTP handler. The returned
// cleanup closes the database pool, if any.
func newServer(ctx context.Context, cfg config.Config, log zerolog.Logger) (*http.Server, func(), error) {
	cleanup := func() {}
	opts := server.HandlerOptions{
		AllowlistPath:   cfg.AllowlistPath,
		AuthzModelPath:  cfg.AuthzModelPath,
		AuthzPolicyPath: cfg.AuthzPolicyPath,
		Workers:         cfg.Workers,
		Log:             log,
	}
	if cfg.Store == config.StorePostgres {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err != nil {
			pool.Close()
			return nil, cleanup, fmt.Errorf("ping postgres: %w", err)
		}
		opts.Pool = pool
		cleanup = pool.Close
	} else {
		log.Warn().Msg("using in-memory store; data is lost on restart")
	}

	h, err := server.NewHandlerWithOptions(opts)
	if err != nil {
		cleanup()
		return nil, func() {}, fmt.Errorf("build handler: %w", err)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}, cleanup, nil
}
