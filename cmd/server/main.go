// Package main runs the forecast HTTP service: /health, /status, /metrics
// and POST /predict over the newest model bundle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"station-forecast-lab/internal/app"
	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/predictor"
	"station-forecast-lab/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORECAST_CONFIG"), "Path to YAML config file (optional)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if *port > 0 {
		cfg.Server.Port = *port
	}

	ctx, stop := app.SignalContext(log, cfg.Server.ShutdownTimeout)
	err = run(ctx, cfg, log)
	stop()

	if err != nil && err != context.Canceled {
		log.Fatal("server_error", zap.Error(err))
	}
	log.Info("shutdown_complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	respCache, closeCache := app.OpenCache(ctx, cfg, log)
	defer closeCache()

	opts := server.Options{Cache: respCache, Logger: log}

	// A failed model load still serves /health and /status so the
	// failure is visible to the orchestrator.
	pred, cleanup, err := initPredictor(ctx, cfg, log)
	if err != nil {
		log.Error("predictor_initialization_failed", zap.Error(err))
		opts.InitErr = err
	} else {
		defer cleanup()
		opts.Predictor = pred
	}

	log.Info("server_starting", zap.Int("port", cfg.Server.Port))
	return server.New(opts).Run(ctx, cfg.Server.Addr())
}

func initPredictor(ctx context.Context, cfg *config.Config, log *zap.Logger) (*predictor.Predictor, func(), error) {
	stores, closeStores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	objects, err := app.OpenObjectStore(ctx, cfg)
	if err != nil {
		closeStores()
		return nil, nil, fmt.Errorf("open object store: %w", err)
	}

	predictions, closePredictions, err := app.OpenPredictionStore(ctx, cfg, log)
	if err != nil {
		// the prediction log is optional
		log.Warn("prediction_store_unavailable", zap.Error(err))
		predictions, closePredictions = nil, func() {}
	}

	pred, err := app.LoadPredictor(ctx, cfg, stores.Source, objects, predictions, log)
	if err != nil {
		closePredictions()
		closeStores()
		return nil, nil, fmt.Errorf("load predictor: %w", err)
	}

	return pred, func() {
		closePredictions()
		closeStores()
	}, nil
}
