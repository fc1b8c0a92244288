// Package main polls the GBFS station feeds and appends availability
// snapshots to PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"station-forecast-lab/internal/app"
	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/gbfs"
	"station-forecast-lab/internal/observability"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORECAST_CONFIG"), "Path to YAML config file (optional)")
	once := flag.Bool("once", false, "Ingest a single snapshot and exit")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			log.Info("metrics_server_starting", zap.String("addr", *metricsAddr))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics_server_error", zap.Error(err))
			}
		}()
	}

	ctx, stop := app.SignalContext(log, cfg.Server.ShutdownTimeout)
	err = run(ctx, cfg, log, *once)
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("ingest_failed", zap.Error(err))
	}
	log.Info("shutdown_complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, once bool) error {
	if cfg.Database.PostgresDSN == "" {
		return errors.New("ingest requires database.postgres_dsn (DB_URL)")
	}
	stores, cleanup, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	client := gbfs.NewClient(cfg.GBFS.StationInfoURL, cfg.GBFS.StationStatusURL,
		gbfs.WithTimeout(cfg.GBFS.Timeout))

	ingester, err := gbfs.NewIngester(gbfs.IngesterOptions{
		Fetcher:      client,
		Stations:     stores.Stations,
		Availability: stores.Availability,
		Progress:     stores.Progress,
		Interval:     cfg.GBFS.Interval,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	if once {
		_, err := ingester.Ingest(ctx)
		return err
	}
	return ingester.Run(ctx)
}
