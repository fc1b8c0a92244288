package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"

	"station-forecast-lab/internal/domain"
)

// maxAnalysisRows caps the ANOVA table.
const maxAnalysisRows = 20

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Training Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Trained: %s | Duration: %s\n\n",
		r.RunID, r.TrainedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Train Samples | %d |\n", r.DataSummary.TrainSamples))
	sb.WriteString(fmt.Sprintf("| Test Samples | %d |\n", r.DataSummary.TestSamples))
	sb.WriteString(fmt.Sprintf("| Selected Features | %d |\n", r.DataSummary.FeatureCount))
	sb.WriteString(fmt.Sprintf("| Engineered Features | %d |\n", r.DataSummary.TotalFeatures))
	sb.WriteString(fmt.Sprintf("| Best Iteration | %d |\n", r.DataSummary.BestIteration))
	sb.WriteString(fmt.Sprintf("| Model Directory | %s |\n", r.ModelDir))
	sb.WriteString(fmt.Sprintf("| Uploaded | %t |\n", r.Uploaded))
	sb.WriteString("\n")

	// Parameters
	sb.WriteString("## Model Parameters\n\n")
	if r.Tuned {
		sb.WriteString("Selected by temporal cross validation grid search.\n\n")
	} else {
		sb.WriteString("Default parameters (grid search skipped).\n\n")
	}
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| max_depth | %d |\n", r.Params.MaxDepth))
	sb.WriteString(fmt.Sprintf("| learning_rate | %g |\n", r.Params.LearningRate))
	sb.WriteString(fmt.Sprintf("| n_estimators | %d |\n", r.Params.NEstimators))
	sb.WriteString(fmt.Sprintf("| subsample | %g |\n", r.Params.Subsample))
	sb.WriteString(fmt.Sprintf("| colsample_bytree | %g |\n", r.Params.ColsampleByTree))
	sb.WriteString("\n")

	if len(r.Candidates) > 0 {
		sb.WriteString("### Grid Candidates\n\n")
		sb.WriteString("| max_depth | learning_rate | n_estimators | CV Accuracy | Folds |\n")
		sb.WriteString("|-----------|---------------|--------------|-------------|-------|\n")
		for _, c := range r.Candidates {
			sb.WriteString(fmt.Sprintf("| %d | %g | %d | %.4f | %d |\n",
				c.Params.MaxDepth, c.Params.LearningRate, c.Params.NEstimators, c.CVAccuracy, c.Folds))
		}
		sb.WriteString("\n")
	}

	// Evaluation
	ev := r.Evaluation
	sb.WriteString("## Test Evaluation\n\n")
	sb.WriteString(fmt.Sprintf("Accuracy: %.4f | Macro F1: %.4f | Weighted F1: %.4f\n\n",
		ev.Accuracy, ev.MacroF1, ev.WeightedF1))
	if len(ev.PerClass) > 0 {
		sb.WriteString("| Class | Precision | Recall | F1 | Support |\n")
		sb.WriteString("|-------|-----------|--------|----|---------|\n")
		for _, m := range ev.PerClass {
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f | %d |\n",
				m.Class, m.Precision, m.Recall, m.F1, m.Support))
		}
		sb.WriteString("\n")
	}

	if len(ev.ConfusionMatrix) > 0 {
		sb.WriteString("### Confusion Matrix\n\n")
		sb.WriteString("Rows are true classes, columns are predicted classes.\n\n")
		sb.WriteString("| |")
		for c := range ev.ConfusionMatrix {
			sb.WriteString(fmt.Sprintf(" %s |", domain.AvailabilityClass(c)))
		}
		sb.WriteString("\n|---|")
		for range ev.ConfusionMatrix {
			sb.WriteString("---|")
		}
		sb.WriteString("\n")
		for t, row := range ev.ConfusionMatrix {
			sb.WriteString(fmt.Sprintf("| %s |", domain.AvailabilityClass(t)))
			for _, n := range row {
				sb.WriteString(fmt.Sprintf(" %d |", n))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	// Cross validation
	sb.WriteString("## Temporal Cross Validation\n\n")
	if len(r.CV.Scores) > 0 {
		sb.WriteString("| Fold | Accuracy |\n")
		sb.WriteString("|------|----------|\n")
		for i, s := range r.CV.Scores {
			sb.WriteString(fmt.Sprintf("| %d | %.4f |\n", i+1, s))
		}
		sb.WriteString(fmt.Sprintf("\nMean: %.4f (+/- %.4f)\n\n", r.CV.Mean, 2*r.CV.Std))
	} else {
		sb.WriteString("Not enough samples for cross validation.\n\n")
	}

	// Importances
	sb.WriteString("## Feature Importance\n\n")
	if len(r.Importances) > 0 {
		sb.WriteString("| Rank | Feature | Importance |\n")
		sb.WriteString("|------|---------|------------|\n")
		for i, fi := range r.Importances {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.6f |\n", i+1, fi.Feature, fi.Importance))
		}
	} else {
		sb.WriteString("No feature importances available.\n")
	}
	sb.WriteString("\n")

	// Analysis
	sb.WriteString("## Feature Analysis (ANOVA F)\n\n")
	if len(r.FeatureAnalysis.Ranked) > 0 {
		sb.WriteString(fmt.Sprintf("Columns scored: %d\n\n", r.FeatureAnalysis.TotalFeatures))
		sb.WriteString("| Feature | F Score |\n")
		sb.WriteString("|---------|---------|\n")
		for i, s := range r.FeatureAnalysis.Ranked {
			if i == maxAnalysisRows {
				break
			}
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", s.Column, formatScore(s.Score)))
		}
	} else {
		sb.WriteString("No feature analysis available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatScore(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4f", v)
}
