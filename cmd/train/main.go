// Package main runs one training job: load history, fit the preprocessing
// pipeline and the classifier, save the bundle, optionally upload it and
// write the training report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"station-forecast-lab/internal/app"
	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/reporting"
	"station-forecast-lab/internal/training"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORECAST_CONFIG"), "Path to YAML config file (optional)")
	daysBack := flag.Int("days-back", 0, "Days of history to train on (overrides config)")
	noTune := flag.Bool("no-tune", false, "Skip the hyperparameter grid search")
	noReport := flag.Bool("no-report", false, "Skip writing the training report")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if *daysBack > 0 {
		cfg.Training.DaysBack = *daysBack
	}
	if *noTune {
		cfg.Training.Tune = false
	}

	ctx, stop := app.SignalContext(log, cfg.Server.ShutdownTimeout)
	err = run(ctx, cfg, log, !*noReport)
	stop()

	if err != nil {
		log.Fatal("training_failed", zap.Error(err))
	}
	log.Info("training_complete")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, writeReport bool) error {
	stores, cleanup, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	objects, err := app.OpenObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}

	pre, err := app.NewPreprocessor(cfg, stores.Source, log)
	if err != nil {
		return fmt.Errorf("create preprocessor: %w", err)
	}

	trainer := training.NewTrainer(pre, training.Options{
		DaysBack:    cfg.Training.DaysBack,
		TestSize:    cfg.Training.TestSize,
		Tune:        cfg.Training.Tune,
		Parallelism: cfg.Training.Parallelism,
		BasePath:    cfg.Model.BasePath,
		Prefix:      cfg.Model.Prefix,
		Bucket:      cfg.Model.Bucket,
		Store:       objects,
		Logger:      log,
	})

	res, err := trainer.Train(ctx)
	if err != nil {
		return err
	}
	log.Info("training_summary",
		zap.String("run_id", res.RunID),
		zap.String("model_dir", res.ModelDir),
		zap.Float64("test_accuracy", res.Evaluation.Accuracy),
		zap.Float64("cv_accuracy_mean", res.CVMean),
		zap.Duration("duration", res.Duration.Round(time.Millisecond)),
	)

	if !writeReport {
		return nil
	}
	mdPath, csvPath, err := reporting.NewGenerator(training.TopImportancesLogged).
		WriteFiles(cfg.Training.ReportDir, res)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info("report_written", zap.String("markdown", mdPath), zap.String("csv", csvPath))
	return nil
}
