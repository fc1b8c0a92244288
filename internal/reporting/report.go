// Package reporting renders training run reports.
package reporting

import (
	"time"

	"station-forecast-lab/internal/model"
	"station-forecast-lab/internal/selection"
	"station-forecast-lab/internal/training"
)

// Report represents a training run report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	TrainedAt   time.Time
	ModelDir    string
	Uploaded    bool
	Duration    time.Duration

	// Data Summary
	DataSummary DataSummary

	// Model parameters; Tuned is false when the grid search was skipped
	Params     model.Params
	Tuned      bool
	Candidates []training.CandidateResult

	// Test split evaluation
	Evaluation training.Evaluation

	// Temporal cross validation
	CV CVSummary

	// Ranked by descending importance
	Importances []training.FeatureImportance

	// ANOVA ranking over all engineered columns
	FeatureAnalysis selection.Analysis
}

// DataSummary contains sample counts of the run.
type DataSummary struct {
	TrainSamples  int
	TestSamples   int
	FeatureCount  int
	TotalFeatures int // before selection
	BestIteration int
}

// CVSummary contains the per-fold scores and their spread.
type CVSummary struct {
	Scores []float64
	Mean   float64
	Std    float64
}
