package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"station-forecast-lab/internal/artifact"
	"station-forecast-lab/internal/config"
	"station-forecast-lab/internal/predictor"
	"station-forecast-lab/internal/preprocess"
	"station-forecast-lab/internal/storage"
)

// NewPreprocessor builds a preprocessor over source using the configured
// selector size and inference window.
func NewPreprocessor(cfg *config.Config, source storage.TimeSeriesSource, log *zap.Logger) (*preprocess.Preprocessor, error) {
	return preprocess.New(source, preprocess.Options{
		NFeatures:       cfg.Model.NFeatures,
		InferenceWindow: cfg.Inference.Window(),
		Logger:          log,
	})
}

// LoadPredictor resolves the newest bundle, locally or from the object
// store, and builds a predictor on it.
func LoadPredictor(ctx context.Context, cfg *config.Config, source storage.TimeSeriesSource,
	objects artifact.ObjectStore, predictions storage.PredictionStore, log *zap.Logger) (*predictor.Predictor, error) {
	loader := artifact.NewLoader(artifact.LoaderOptions{
		BasePath: cfg.Model.BasePath,
		Prefix:   cfg.Model.Prefix,
		Bucket:   cfg.Model.Bucket,
		Store:    objects,
		Logger:   log,
	})
	bundle, dir, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	pre, err := NewPreprocessor(cfg, source, log)
	if err != nil {
		return nil, fmt.Errorf("create preprocessor: %w", err)
	}
	return predictor.New(bundle, pre, predictor.Options{
		Store:  predictions,
		Dir:    dir,
		Logger: log,
	})
}
