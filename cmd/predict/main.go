// Package main runs one inference pass over the latest snapshot and prints
// the predictions as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"station-forecast-lab/internal/app"
	"station-forecast-lab/internal/config"
)

// output is one printed prediction.
type output struct {
	StationID        string  `json:"station_id"`
	Prediction       string  `json:"prediction"`
	PredictionTime   string  `json:"prediction_time"`
	ConfidenceGreen  float64 `json:"confidence_green"`
	ConfidenceYellow float64 `json:"confidence_yellow"`
	ConfidenceRed    float64 `json:"confidence_red"`
}

func main() {
	configPath := flag.String("config", os.Getenv("FORECAST_CONFIG"), "Path to YAML config file (optional)")
	latest := flag.Bool("latest", false, "Predict from each station's newest row only, without the lookback window")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := app.SignalContext(log, cfg.Server.ShutdownTimeout)
	err = run(ctx, cfg, log, *latest)
	stop()

	if err != nil {
		log.Fatal("inference_failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, latest bool) error {
	stores, cleanup, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	objects, err := app.OpenObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	predictions, closePredictions, err := app.OpenPredictionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closePredictions()

	pred, err := app.LoadPredictor(ctx, cfg, stores.Source, objects, predictions, log)
	if err != nil {
		return fmt.Errorf("load predictor: %w", err)
	}

	infer := pred.RunInference
	if latest {
		infer = pred.PredictLatest
	}
	result, err := infer(ctx)
	if err != nil {
		return err
	}

	out := make([]output, 0, len(result))
	for _, p := range result {
		out = append(out, output{
			StationID:        p.StationID,
			Prediction:       p.AvailabilityPrediction,
			PredictionTime:   p.PredictionTime.Format(time.RFC3339),
			ConfidenceGreen:  p.ConfidenceGreen,
			ConfidenceYellow: p.ConfidenceYellow,
			ConfidenceRed:    p.ConfidenceRed,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
