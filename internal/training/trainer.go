// Package training fits the availability classifier: temporal split,
// optional grid search with expanding-window CV, final fit with early
// stopping, evaluation and bundle export.
package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"station-forecast-lab/internal/artifact"
	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/frame"
	"station-forecast-lab/internal/model"
	"station-forecast-lab/internal/observability"
	"station-forecast-lab/internal/preprocess"
	"station-forecast-lab/internal/selection"
)

// Defaults.
const (
	DefaultDaysBack      = 30
	DefaultCVSplits      = 5
	EarlyStoppingRounds  = 20
	TopImportancesLogged = 10
)

// ErrInsufficientData is returned when the split leaves an empty side.
var ErrInsufficientData = errors.New("not enough labeled rows to train")

// Preprocessor is the part of preprocess.Preprocessor the trainer uses.
type Preprocessor interface {
	ProcessTrainingData(ctx context.Context, daysBack int) (*frame.Frame, *preprocess.FittedPipelineState, error)
	FeatureAnalysis(f *frame.Frame) selection.Analysis
}

// Options configures a Trainer.
type Options struct {
	DaysBack    int            // history loaded for training, DefaultDaysBack when zero
	TestSize    float64        // newest fraction held out, DefaultTestSize when zero
	Tune        bool           // run the grid search
	Grid        []model.Params // DefaultGrid when nil
	Parallelism int            // concurrent grid candidates, GOMAXPROCS when zero
	CVSplits    int            // folds of the CV summary, DefaultCVSplits when zero

	BasePath string               // bundle parent directory
	Prefix   string               // bundle dir prefix, artifact.DefaultPrefix when empty
	Bucket   string               // upload target; empty skips the upload
	Store    artifact.ObjectStore // nil skips the upload
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Trainer runs one training job per Train call.
type Trainer struct {
	pre  Preprocessor
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

// CandidateResult is one grid search candidate and its CV accuracy.
type CandidateResult struct {
	Params     model.Params `json:"params"`
	CVAccuracy float64      `json:"cv_accuracy"`
	Folds      int          `json:"folds"`
}

// Result is the outcome of a training run.
type Result struct {
	RunID     string    `json:"run_id"`
	TrainedAt time.Time `json:"trained_at"`
	ModelDir  string    `json:"model_dir"`
	Uploaded  bool      `json:"uploaded"`

	TrainSamples int `json:"train_samples"`
	TestSamples  int `json:"test_samples"`

	Params        model.Params      `json:"params"`
	BestParams    *model.Params     `json:"best_params"` // nil when not tuned
	Candidates    []CandidateResult `json:"candidates,omitempty"`
	BestIteration int               `json:"best_iteration"`

	Evaluation Evaluation `json:"evaluation"`
	CVScores   []float64  `json:"cv_scores"`
	CVMean     float64    `json:"cv_accuracy_mean"`
	CVStd      float64    `json:"cv_accuracy_std"`

	Importances     []FeatureImportance `json:"model_feature_importance"`
	FeatureAnalysis selection.Analysis  `json:"preprocessing_analysis"`
	FeatureColumns  []string            `json:"feature_columns"`

	Duration time.Duration `json:"duration"`
}

// TopImportances returns at most n of the highest importances.
func (r *Result) TopImportances(n int) []FeatureImportance {
	if n > len(r.Importances) {
		n = len(r.Importances)
	}
	return r.Importances[:n]
}

// NewTrainer creates a Trainer.
func NewTrainer(pre Preprocessor, opts Options) *Trainer {
	if opts.DaysBack <= 0 {
		opts.DaysBack = DefaultDaysBack
	}
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		opts.TestSize = DefaultTestSize
	}
	if opts.Grid == nil {
		opts.Grid = DefaultGrid()
	}
	if opts.CVSplits <= 0 {
		opts.CVSplits = DefaultCVSplits
	}
	if opts.Prefix == "" {
		opts.Prefix = artifact.DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Trainer{
		pre:  pre,
		opts: opts,
		log:  opts.Logger.Named("training"),
		now:  opts.Clock,
	}
}

// Train runs the full job and saves the bundle under BasePath.
func (t *Trainer) Train(ctx context.Context) (res *Result, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			t.log.Error("training_failed", zap.Error(err))
		}
		observability.RecordTrainingRun(status, time.Since(start).Seconds())
	}()

	runID := uuid.NewString()
	t.log.Info("training_started",
		zap.String("run_id", runID),
		zap.Int("days_back", t.opts.DaysBack),
		zap.Bool("tune_hyperparams", t.opts.Tune),
	)

	f, state, err := t.pre.ProcessTrainingData(ctx, t.opts.DaysBack)
	if err != nil {
		return nil, fmt.Errorf("process training data: %w", err)
	}
	analysis := t.pre.FeatureAnalysis(f)

	X, y, err := trainingMatrix(f, state.FeatureColumns)
	if err != nil {
		return nil, err
	}

	split := splitIndex(len(X), t.opts.TestSize)
	if split == 0 || split == len(X) {
		return nil, fmt.Errorf("%w: %d rows", ErrInsufficientData, len(X))
	}
	trainX, testX := X[:split], X[split:]
	trainY, testY := y[:split], y[split:]
	t.log.Info("temporal_split",
		zap.Int("train_rows", len(trainX)),
		zap.Int("test_rows", len(testX)),
		zap.Int("features", len(state.FeatureColumns)),
		zap.Float64("test_size", t.opts.TestSize),
	)

	res = &Result{
		RunID:           runID,
		TrainSamples:    len(trainX),
		TestSamples:     len(testX),
		FeatureAnalysis: analysis,
		FeatureColumns:  state.FeatureColumns,
	}

	params := untunedParams()
	if t.opts.Tune {
		best, scores, err := searchGrid(ctx, t.opts.Grid, trainX, trainY, t.opts.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("grid search: %w", err)
		}
		for _, s := range scores {
			res.Candidates = append(res.Candidates, CandidateResult{Params: s.params, CVAccuracy: s.mean, Folds: s.folds})
		}
		params = best
		res.BestParams = &best
		t.log.Info("best_temporal_cv_params", zap.Stringer("params", best))
	}
	params.EarlyStoppingRounds = EarlyStoppingRounds
	res.Params = params

	clf := model.NewClassifier(params, domain.NumClasses)
	t.log.Info("fitting_model", zap.Int("train_rows", len(trainX)), zap.Int("test_rows", len(testX)))
	if err := clf.Fit(trainX, trainY, &model.EvalSet{X: testX, Y: testY}); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	res.BestIteration = clf.BestIteration

	pred, err := clf.Predict(testX)
	if err != nil {
		return nil, fmt.Errorf("predict test split: %w", err)
	}
	res.Evaluation = evaluate(testY, pred)

	res.CVScores, err = t.cvSummary(ctx, params, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("cv summary: %w", err)
	}
	res.CVMean, res.CVStd = meanStd(res.CVScores)

	res.Importances = rankImportances(state.FeatureColumns, clf.FeatureImportances())
	for i, fi := range res.TopImportances(TopImportancesLogged) {
		t.log.Info("model_feature_importance",
			zap.Int("rank", i+1),
			zap.String("feature", fi.Feature),
			zap.Float64("importance", fi.Importance),
		)
	}

	res.TrainedAt = t.now().UTC()
	res.ModelDir = filepath.Join(t.opts.BasePath, artifact.DirName(t.opts.Prefix, res.TrainedAt))
	bundle := &artifact.Bundle{
		Model:          clf,
		Pipeline:       state,
		FeatureColumns: state.FeatureColumns,
		LabelEncoders:  state.LabelEncoders(),
		Metadata:       artifact.NewMetadata(runID, res.TrainedAt, len(state.FeatureColumns), state.NFeatures, res.BestParams),
	}
	if err := artifact.Save(res.ModelDir, bundle); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	t.log.Info("model_saved", zap.String("path", res.ModelDir))

	if t.opts.Store != nil && t.opts.Bucket != "" {
		if err := artifact.UploadBundle(ctx, t.opts.Store, t.opts.Bucket, res.ModelDir); err != nil {
			// the local bundle is still usable
			t.log.Warn("model_upload_failed", zap.String("bucket", t.opts.Bucket), zap.Error(err))
		} else {
			res.Uploaded = true
			t.log.Info("model_uploaded", zap.String("bucket", t.opts.Bucket))
		}
	}

	res.Duration = time.Since(start)
	observability.RecordTrainingScores(res.Evaluation.Accuracy, res.CVMean, len(state.FeatureColumns))
	t.log.Info("training_completed",
		zap.String("run_id", runID),
		zap.Float64("test_accuracy", res.Evaluation.Accuracy),
		zap.Float64("cv_accuracy_mean", res.CVMean),
		zap.Float64("cv_accuracy_std", res.CVStd),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

// cvSummary scores params on expanding folds of the training split, each
// fold early-stopping on its own validation window.
func (t *Trainer) cvSummary(ctx context.Context, params model.Params, X [][]float64, y []int) ([]float64, error) {
	var scores []float64
	for _, f := range temporalFolds(len(X), t.opts.CVSplits) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		valX, valY := X[f.trainEnd:f.valEnd], y[f.trainEnd:f.valEnd]
		clf := model.NewClassifier(params, domain.NumClasses)
		if err := clf.Fit(X[:f.trainEnd], y[:f.trainEnd], &model.EvalSet{X: valX, Y: valY}); err != nil {
			return nil, err
		}
		acc, err := clf.Score(valX, valY)
		if err != nil {
			return nil, err
		}
		scores = append(scores, acc)
	}
	return scores, nil
}

// untunedParams are used when the grid search is skipped.
func untunedParams() model.Params {
	p := model.DefaultParams()
	p.MaxDepth = 6
	p.LearningRate = 0.1
	p.NEstimators = 200
	return p
}

// trainingMatrix extracts the model inputs and labels in chronological order.
func trainingMatrix(f *frame.Frame, columns []string) ([][]float64, []int, error) {
	labels, ok := f.Labels()
	if !ok {
		return nil, nil, fmt.Errorf("training frame: %w", selection.ErrPlaceholderLabels)
	}
	X, err := f.Matrix(columns)
	if err != nil {
		return nil, nil, fmt.Errorf("training matrix: %w", err)
	}
	order := chronological(f.RecordedAt, f.StationID)
	outX := make([][]float64, len(order))
	outY := make([]int, len(order))
	for j, i := range order {
		outX[j] = X[i]
		outY[j] = labels[i]
	}
	return outX, outY, nil
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}
