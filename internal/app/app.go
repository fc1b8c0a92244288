// Package app wires configuration into stores and services for the
// command entry points.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/logging"
)

// ErrNoSource is returned when neither a database nor a data directory is configured.
var ErrNoSource = errors.New("no data source configured: set database.postgres_dsn (DB_URL) or database.local_data_dir (LOCAL_DATA_DIR)")

// Bootstrap loads .env, the configuration and the logger.
func Bootstrap(configPath string) (*config.Config, *zap.Logger, error) {
	// .env is optional; existing variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// SignalContext returns a context canceled on SIGINT or SIGTERM. A second
// signal, or a shutdown longer than timeout, exits the process. Call the
// returned func once shutdown completes.
func SignalContext(log *zap.Logger, timeout time.Duration) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutdown_signal_received", zap.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			log.Warn("second_signal_forcing_exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(timeout):
			log.Warn("graceful_shutdown_timed_out", zap.Duration("timeout", timeout))
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}
