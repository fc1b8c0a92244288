// Package predictor runs inference with a loaded bundle: it transforms the
// recent snapshot with the fitted pipeline and emits one prediction per
// station at the forecast horizon.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"station-forecast-lab/internal/artifact"
	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/frame"
	"station-forecast-lab/internal/model"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/preprocess"
	"station-forecast-lab/internal/storage"
)

// ErrNoBundle is returned when the predictor is built without a model.
var ErrNoBundle = errors.New("predictor requires a loaded bundle")

// Preprocessor is the inference side of preprocess.Preprocessor.
type Preprocessor interface {
	ProcessInferenceData(ctx context.Context, state *preprocess.FittedPipelineState, snapshots ...[]*domain.AvailabilityRecord) (*frame.Frame, error)
	LatestSnapshot(ctx context.Context) ([]*domain.AvailabilityRecord, error)
}

// Options configures a Predictor.
type Options struct {
	Store  storage.PredictionStore // nil skips persisting predictions
	Dir    string                  // bundle directory, reported by Info
	Logger *zap.Logger
	Clock  func() time.Time
}

// Predictor is safe for concurrent use; the bundle is read-only.
type Predictor struct {
	bundle *artifact.Bundle
	pre    Preprocessor
	store  storage.PredictionStore
	dir    string
	log    *zap.Logger
	now    func() time.Time
}

// Info describes the loaded model.
type Info struct {
	Dir          string    `json:"model_dir"`
	RunID        string    `json:"run_id"`
	TrainedAt    time.Time `json:"trained_at"`
	FeatureCount int       `json:"feature_count"`
	Version      string    `json:"version"`
}

// New creates a Predictor.
func New(bundle *artifact.Bundle, pre Preprocessor, opts Options) (*Predictor, error) {
	if bundle == nil || bundle.Model == nil || bundle.Pipeline == nil {
		return nil, ErrNoBundle
	}
	if pre == nil {
		return nil, errors.New("predictor requires a preprocessor")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	log := opts.Logger.Named("predictor")
	log.Info("model_loaded",
		zap.Int("features", len(bundle.FeatureColumns)),
		zap.Time("trained_at", bundle.Metadata.TrainedAt),
		zap.String("path", opts.Dir),
	)
	return &Predictor{
		bundle: bundle,
		pre:    pre,
		store:  opts.Store,
		dir:    opts.Dir,
		log:    log,
		now:    opts.Clock,
	}, nil
}

// Info returns the loaded model description.
func (p *Predictor) Info() Info {
	return Info{
		Dir:          p.dir,
		RunID:        p.bundle.Metadata.RunID,
		TrainedAt:    p.bundle.Metadata.TrainedAt,
		FeatureCount: len(p.bundle.FeatureColumns),
		Version:      p.bundle.Metadata.Version,
	}
}

// RunInference predicts from the recent window of the configured source.
func (p *Predictor) RunInference(ctx context.Context) ([]*domain.Prediction, error) {
	return p.predict(ctx)
}

// PredictSnapshot predicts from caller-supplied rows instead of the source.
func (p *Predictor) PredictSnapshot(ctx context.Context, rows []*domain.AvailabilityRecord) ([]*domain.Prediction, error) {
	return p.predict(ctx, rows)
}

// PredictLatest predicts from the newest row of each station only. Lag and
// rolling features fall back to the current values, as for a single
// snapshot.
func (p *Predictor) PredictLatest(ctx context.Context) ([]*domain.Prediction, error) {
	rows, err := p.pre.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("latest snapshot: %w", preprocess.ErrNoData)
	}
	return p.predict(ctx, rows)
}

func (p *Predictor) predict(ctx context.Context, snapshots ...[]*domain.AvailabilityRecord) (preds []*domain.Prediction, err error) {
	defer func() {
		if err != nil {
			p.log.Error("inference_failed", zap.Error(err))
		}
	}()

	f, err := p.pre.ProcessInferenceData(ctx, p.bundle.Pipeline, snapshots...)
	if err != nil {
		return nil, fmt.Errorf("preprocess inference data: %w", err)
	}
	if f.Len() == 0 {
		return nil, fmt.Errorf("inference: %w", preprocess.ErrNoData)
	}

	X, err := p.matrix(f)
	if err != nil {
		return nil, err
	}
	proba, err := p.bundle.Model.PredictProba(X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	runID := uuid.NewString()
	now := p.now().UTC()
	horizon := time.Duration(domain.HorizonHours) * time.Hour
	preds = make([]*domain.Prediction, f.Len())
	counts := make(map[string]int, domain.NumClasses)
	for i, probs := range proba {
		class := domain.AvailabilityClass(model.Argmax(probs))
		preds[i] = &domain.Prediction{
			RunID:                      runID,
			StationID:                  f.StationID[i],
			PredictedAvailabilityClass: class,
			AvailabilityPrediction:     class.String(),
			ConfidenceGreen:            probs[domain.ClassGreen],
			ConfidenceYellow:           probs[domain.ClassYellow],
			ConfidenceRed:              probs[domain.ClassRed],
			PredictionTime:             now.Add(horizon),
			HorizonHours:               domain.HorizonHours,
			CreatedAt:                  now,
		}
		counts[class.String()]++
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].StationID < preds[j].StationID })

	observability.RecordPredictions(counts)
	p.log.Info("prediction_distribution",
		zap.String("run_id", runID),
		zap.Int("green", counts["green"]),
		zap.Int("yellow", counts["yellow"]),
		zap.Int("red", counts["red"]),
	)

	if p.store != nil {
		if err := p.store.InsertBulk(ctx, preds); err != nil {
			// predictions are still served
			p.log.Warn("prediction_store_write_failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	p.log.Info("inference_complete", zap.Int("predictions", len(preds)))
	return preds, nil
}

// matrix orders the frame's columns as the model was trained. Columns the
// transform did not produce are filled with 0.
func (p *Predictor) matrix(f *frame.Frame) ([][]float64, error) {
	columns := p.bundle.FeatureColumns
	projected, missing := f.Project(columns)
	if len(missing) > 0 {
		p.log.Warn("missing_feature_columns_filled_with_zero",
			zap.Int("count", len(missing)),
			zap.Strings("columns", missing),
		)
		observability.RecordFeatureMismatch()
		for _, name := range missing {
			projected.SetFloats(name, make([]float64, projected.Len()))
		}
	}
	X, err := projected.Matrix(columns)
	if err != nil {
		return nil, fmt.Errorf("inference matrix: %w", err)
	}
	return X, nil
}
