package reporting

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"station-forecast-lab/internal/model"
	"station-forecast-lab/internal/selection"
	"station-forecast-lab/internal/training"
)

var fixedTime = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func sampleResult() *training.Result {
	params := model.DefaultParams()
	return &training.Result{
		RunID:         "run-1",
		TrainedAt:     fixedTime.Add(-time.Minute),
		ModelDir:      "models/gbt_model_20240603T115900",
		TrainSamples:  80,
		TestSamples:   20,
		Params:        params,
		BestParams:    &params,
		BestIteration: 41,
		Candidates: []training.CandidateResult{
			{Params: params, CVAccuracy: 0.71, Folds: 3},
		},
		Evaluation: training.Evaluation{
			Accuracy: 0.75,
			PerClass: []training.ClassMetrics{
				{Class: "green", Precision: 0.8, Recall: 0.9, F1: 0.847, Support: 10},
				{Class: "yellow", Precision: 0.5, Recall: 0.4, F1: 0.444, Support: 5},
				{Class: "red", Precision: 0.8, Recall: 0.8, F1: 0.8, Support: 5},
			},
			ConfusionMatrix: [][]int{{9, 1, 0}, {2, 2, 1}, {0, 1, 4}},
		},
		CVScores: []float64{0.7, 0.72, 0.74},
		CVMean:   0.72,
		CVStd:    0.0163,
		Importances: []training.FeatureImportance{
			{Feature: "availability_ratio", Importance: 0.5},
			{Feature: "hour", Importance: 0.3},
			{Feature: "lat", Importance: 0.2},
		},
		FeatureAnalysis: selection.Analysis{
			Ranked: []selection.ColumnScore{
				{Column: "availability_ratio", Score: 120.5},
				{Column: "is_installed", Score: math.NaN()},
			},
			TotalFeatures: 2,
		},
		FeatureColumns: []string{"availability_ratio", "hour", "lat"},
		Duration:       1500 * time.Millisecond,
	}
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(2).WithClock(func() time.Time { return fixedTime })

	report, err := g.Generate(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, fixedTime, report.GeneratedAt)
	assert.True(t, report.Tuned)
	assert.Equal(t, 3, report.DataSummary.FeatureCount)
	assert.Equal(t, 2, report.DataSummary.TotalFeatures)
	require.Len(t, report.Importances, 2)
	assert.Equal(t, "availability_ratio", report.Importances[0].Feature)
}

func TestGenerator_NilResult(t *testing.T) {
	_, err := NewGenerator(0).Generate(nil)
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	res := sampleResult()
	res.BestParams = nil
	report, err := NewGenerator(0).WithClock(func() time.Time { return fixedTime }).Generate(res)
	require.NoError(t, err)

	md := RenderMarkdown(report)

	assert.True(t, strings.HasPrefix(md, "# Training Report\n"))
	assert.Contains(t, md, "Generated: 2024-06-03T12:00:00Z")
	assert.Contains(t, md, "Duration: 1.5s")
	assert.Contains(t, md, "| Train Samples | 80 |")
	assert.Contains(t, md, "Default parameters (grid search skipped).")
	assert.Contains(t, md, "| 0.7100 | 3 |")
	assert.Contains(t, md, "| yellow | 0.5000 | 0.4000 | 0.4440 | 5 |")
	assert.Contains(t, md, "| | green | yellow | red |")
	assert.Contains(t, md, "| yellow | 2 | 2 | 1 |")
	assert.Contains(t, md, "| 3 | 0.7400 |")
	assert.Contains(t, md, "Mean: 0.7200 (+/- 0.0326)")
	assert.Contains(t, md, "| 3 | lat | 0.200000 |")
	assert.Contains(t, md, "| is_installed | n/a |")
}

func TestRenderMarkdown_EmptySections(t *testing.T) {
	md := RenderMarkdown(&Report{GeneratedAt: fixedTime})

	assert.Contains(t, md, "Not enough samples for cross validation.")
	assert.Contains(t, md, "No feature importances available.")
	assert.Contains(t, md, "No feature analysis available.")
	assert.NotContains(t, md, "Confusion Matrix")
	assert.NotContains(t, md, "Grid Candidates")
}

func TestRenderImportanceCSV(t *testing.T) {
	csv := RenderImportanceCSV(sampleResult().Importances)

	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "rank,feature,importance", lines[0])
	assert.Equal(t, "1,availability_ratio,0.500000", lines[1])
	assert.Equal(t, "3,lat,0.200000", lines[3])
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	g := NewGenerator(1).WithClock(func() time.Time { return fixedTime })

	mdPath, csvPath, err := g.WriteFiles(dir, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, MarkdownFile), mdPath)

	md, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "| 1 | availability_ratio | 0.500000 |")
	assert.NotContains(t, string(md), "| 2 | hour |")

	csv, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(csv), "3,lat,0.200000", "csv keeps every importance")
}
