package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"station-forecast-lab/internal/training"
)

// Output file names.
const (
	MarkdownFile   = "training_report.md"
	ImportanceFile = "feature_importance.csv"
)

// Generator produces reports from training results.
type Generator struct {
	topFeatures int
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator that lists at most
// topFeatures importances. Zero lists all of them.
func NewGenerator(topFeatures int) *Generator {
	return &Generator{
		topFeatures: topFeatures,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report from a finished training run.
func (g *Generator) Generate(res *training.Result) (*Report, error) {
	if res == nil {
		return nil, errors.New("training result is nil")
	}

	importances := res.Importances
	if g.topFeatures > 0 {
		importances = res.TopImportances(g.topFeatures)
	}

	return &Report{
		GeneratedAt: g.now(),
		RunID:       res.RunID,
		TrainedAt:   res.TrainedAt,
		ModelDir:    res.ModelDir,
		Uploaded:    res.Uploaded,
		Duration:    res.Duration,
		DataSummary: DataSummary{
			TrainSamples:  res.TrainSamples,
			TestSamples:   res.TestSamples,
			FeatureCount:  len(res.FeatureColumns),
			TotalFeatures: res.FeatureAnalysis.TotalFeatures,
			BestIteration: res.BestIteration,
		},
		Params:     res.Params,
		Tuned:      res.BestParams != nil,
		Candidates: res.Candidates,
		Evaluation: res.Evaluation,
		CV: CVSummary{
			Scores: res.CVScores,
			Mean:   res.CVMean,
			Std:    res.CVStd,
		},
		Importances:     importances,
		FeatureAnalysis: res.FeatureAnalysis,
	}, nil
}

// WriteFiles writes the markdown report and the importance CSV into dir and
// returns their paths. The CSV always carries every importance of res.
func (g *Generator) WriteFiles(dir string, res *training.Result) (string, string, error) {
	report, err := g.Generate(res)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	mdPath := filepath.Join(dir, MarkdownFile)
	if err := os.WriteFile(mdPath, []byte(RenderMarkdown(report)), 0o644); err != nil {
		return "", "", fmt.Errorf("write markdown report: %w", err)
	}

	csvPath := filepath.Join(dir, ImportanceFile)
	if err := os.WriteFile(csvPath, []byte(RenderImportanceCSV(res.Importances)), 0o644); err != nil {
		return "", "", fmt.Errorf("write importance csv: %w", err)
	}
	return mdPath, csvPath, nil
}
