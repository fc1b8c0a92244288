// Package preprocess turns raw availability rows into model-ready feature
// matrices.
//
// Fit flow: base data (station merge, ordering, future labels) → feature
// engineering → cleaning → robust scaling → ANOVA F selection. Transform
// replays the same flow against a FittedPipelineState without learning
// anything.
package preprocess

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/features"
	"station-forecast-lab/internal/frame"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/selection"
	"station-forecast-lab/internal/storage"
)

// Defaults.
const (
	DefaultNFeatures       = 30
	DefaultInferenceWindow = 2 * time.Hour
)

// nonFeatureColumns are raw metadata columns never offered to the model:
// the report epoch and the station name code.
var nonFeatureColumns = []string{frame.ColLastReported, frame.ColName}

// Preprocessor orchestrates the feature pipeline.
type Preprocessor struct {
	source   storage.TimeSeriesSource
	engine   *features.Engine
	scaler   *selection.FeatureScaler
	selector *selection.FeatureSelector
	analyzer *selection.FeatureAnalyzer
	log      *zap.Logger
	now      func() time.Time

	nFeatures       int
	inferenceWindow time.Duration

	mu     sync.Mutex
	fitted bool
}

// Options for creating a Preprocessor.
type Options struct {
	NFeatures       int              // selector k, DefaultNFeatures when zero
	InferenceWindow time.Duration    // lookback of ProcessInferenceData, DefaultInferenceWindow when zero
	Logger          *zap.Logger      // nil disables logging
	Clock           func() time.Time // time.Now when nil
}

// New creates a Preprocessor reading from source.
func New(source storage.TimeSeriesSource, opts Options) (*Preprocessor, error) {
	if source == nil {
		return nil, ErrNoSource
	}
	if opts.NFeatures <= 0 {
		opts.NFeatures = DefaultNFeatures
	}
	if opts.InferenceWindow <= 0 {
		opts.InferenceWindow = DefaultInferenceWindow
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	log := opts.Logger.Named("preprocess")
	return &Preprocessor{
		source:          source,
		engine:          features.NewEngine(log),
		scaler:          selection.NewFeatureScaler(log),
		selector:        selection.NewFeatureSelector(opts.NFeatures, log),
		analyzer:        selection.NewFeatureAnalyzer(log),
		log:             log,
		now:             opts.Clock,
		nFeatures:       opts.NFeatures,
		inferenceWindow: opts.InferenceWindow,
	}, nil
}

// FitTransform fits the pipeline on rows and returns the training matrix
// with the fitted state. It succeeds at most once per Preprocessor.
func (p *Preprocessor) FitTransform(ctx context.Context, rows []*domain.AvailabilityRecord) (*frame.Frame, *FittedPipelineState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fitted {
		return nil, nil, ErrAlreadyFitted
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("fit: %w", ErrNoData)
	}
	observability.RecordRowsProcessed(ModeTraining.String(), len(rows))

	engineered, err := p.engineer(ctx, rows, ModeTraining)
	if err != nil {
		return nil, nil, err
	}
	if engineered.Len() == 0 {
		return nil, nil, fmt.Errorf("fit: no rows with a future target: %w", ErrNoData)
	}

	start := time.Now()
	cleaning := fitCleaning(engineered)
	cleaned := cleaning.apply(engineered)
	observability.RecordStage("clean", time.Since(start))

	start = time.Now()
	scalerState, scaled, err := p.scaler.FitAndApply(cleaned)
	if err != nil {
		return nil, nil, fmt.Errorf("fit scaler: %w", err)
	}
	observability.RecordStage("scale", time.Since(start))

	start = time.Now()
	labels, _ := scaled.Labels()
	selectorState, selected, err := p.selector.FitAndApply(scaled, labels)
	if err != nil {
		return nil, nil, fmt.Errorf("fit selector: %w", err)
	}
	observability.RecordStage("select", time.Since(start))

	state := &FittedPipelineState{
		Cleaning:       cleaning,
		Scaler:         scalerState,
		Selector:       selectorState,
		FeatureColumns: selected.Names(),
		NFeatures:      p.nFeatures,
		FittedAt:       p.now().UTC(),
	}
	p.fitted = true

	p.log.Info("preprocessing_fit_transform_complete",
		zap.Int("rows", selected.Len()),
		zap.Int("features", len(state.FeatureColumns)),
	)
	return selected, state, nil
}

// Transform replays a fitted pipeline. ModeInference skips label alignment;
// ModeReplay aligns labels and drops rows without one. Transform never
// modifies state.
func (p *Preprocessor) Transform(ctx context.Context, state *FittedPipelineState, rows []*domain.AvailabilityRecord, mode Mode) (*frame.Frame, error) {
	if state == nil {
		return nil, ErrNotFitted
	}
	if mode == ModeTraining {
		mode = ModeReplay
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transform: %w", ErrNoData)
	}
	observability.RecordRowsProcessed(mode.String(), len(rows))

	engineered, err := p.engineer(ctx, rows, mode)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cleaned := state.Cleaning.apply(engineered)
	observability.RecordStage("clean", time.Since(start))

	start = time.Now()
	scaled, err := p.scaler.Apply(state.Scaler, cleaned)
	if err != nil {
		return nil, fmt.Errorf("apply scaler: %w", err)
	}
	observability.RecordStage("scale", time.Since(start))

	selected, err := p.selector.Apply(state.Selector, scaled)
	if err != nil {
		return nil, fmt.Errorf("apply selector: %w", err)
	}
	if len(selected.Names()) != len(state.FeatureColumns) {
		observability.RecordFeatureMismatch()
	}

	p.log.Info("preprocessing_transform_complete",
		zap.String("mode", mode.String()),
		zap.Int("rows", selected.Len()),
		zap.Int("features", len(selected.Names())),
	)
	return selected, nil
}

// engineer runs base preparation and feature engineering, then removes raw
// metadata columns that are not model inputs.
func (p *Preprocessor) engineer(ctx context.Context, rows []*domain.AvailabilityRecord, mode Mode) (*frame.Frame, error) {
	start := time.Now()
	base, err := p.prepareBase(ctx, rows, mode)
	if err != nil {
		return nil, fmt.Errorf("prepare base data: %w", err)
	}
	observability.RecordStage("base", time.Since(start))

	start = time.Now()
	engineered, err := p.engine.Apply(base)
	if err != nil {
		return nil, err
	}
	engineered.Drop(nonFeatureColumns...)
	observability.RecordStage("features", time.Since(start))
	return engineered, nil
}

// ProcessTrainingData loads daysBack days of history and fits the pipeline.
func (p *Preprocessor) ProcessTrainingData(ctx context.Context, daysBack int) (*frame.Frame, *FittedPipelineState, error) {
	since := p.now().Add(-time.Duration(daysBack) * 24 * time.Hour)
	p.log.Info("loading_training_data", zap.Int("days_back", daysBack))

	rows, err := p.source.TrainingRows(ctx, since)
	if err != nil {
		return nil, nil, fmt.Errorf("load training rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("load training rows since %s: %w", since.Format(time.RFC3339), ErrNoData)
	}
	p.log.Info("loaded_training_data",
		zap.Int("rows", len(rows)),
		zap.Int("stations", countStations(rows)),
	)

	out, state, err := p.FitTransform(ctx, rows)
	if err != nil {
		return nil, nil, err
	}
	p.log.Info("processed_training_data",
		zap.Int("rows", out.Len()),
		zap.Int("columns", len(out.Names())),
	)
	return out, state, nil
}

// ProcessInferenceData transforms recent snapshots and keeps the most
// recent row of each station. When no snapshots are given the last
// inference window is loaded from the source.
func (p *Preprocessor) ProcessInferenceData(ctx context.Context, state *FittedPipelineState, snapshots ...[]*domain.AvailabilityRecord) (*frame.Frame, error) {
	if state == nil {
		return nil, ErrNotFitted
	}

	var rows []*domain.AvailabilityRecord
	for _, s := range snapshots {
		rows = append(rows, s...)
	}
	if len(snapshots) == 0 {
		p.log.Info("loading_recent_data_from_source", zap.Duration("window", p.inferenceWindow))
		recent, err := p.source.RecentRows(ctx, p.now().Add(-p.inferenceWindow))
		if err != nil {
			return nil, fmt.Errorf("load recent rows: %w", err)
		}
		rows = recent
	}
	if len(rows) == 0 {
		p.log.Error("no_recent_data_available")
		return nil, fmt.Errorf("inference: %w", ErrNoData)
	}

	out, err := p.Transform(ctx, state, rows, ModeInference)
	if err != nil {
		return nil, err
	}
	latest := latestPerStation(out)

	p.log.Info("preprocessed_inference",
		zap.Int("stations", latest.Len()),
		zap.Int("features", len(latest.Names())),
	)
	return latest, nil
}

// LatestSnapshot returns the newest row of each station seen within the
// inference window. Stations silent for longer are left out.
func (p *Preprocessor) LatestSnapshot(ctx context.Context) ([]*domain.AvailabilityRecord, error) {
	since := p.now().Add(-p.inferenceWindow)
	rows, err := p.source.LatestPerStation(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	p.log.Info("loaded_latest_snapshot",
		zap.Time("since", since),
		zap.Int("stations", len(rows)),
	)
	return rows, nil
}

// FeatureAnalysis ranks the columns of a labeled frame for reports.
func (p *Preprocessor) FeatureAnalysis(f *frame.Frame) selection.Analysis {
	return p.analyzer.Analyze(f)
}

// latestPerStation keeps the last row of each station. f must already be
// ordered by (station_id, recorded_at).
func latestPerStation(f *frame.Frame) *frame.Frame {
	var idx []int
	for i := 0; i < f.Len(); i++ {
		if i+1 == f.Len() || f.StationID[i+1] != f.StationID[i] {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}

func countStations(rows []*domain.AvailabilityRecord) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.StationID] = struct{}{}
	}
	return len(seen)
}
