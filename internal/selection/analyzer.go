package selection

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"station-forecast-lab/internal/frame"
)

// Analysis ranks every column of a labeled frame by ANOVA F.
type Analysis struct {
	Ranked        []ColumnScore `json:"feature_importance"`
	TotalFeatures int           `json:"total_features"`
}

// FeatureAnalyzer produces diagnostic rankings for reports.
type FeatureAnalyzer struct {
	log *zap.Logger
}

// NewFeatureAnalyzer creates an analyzer.
func NewFeatureAnalyzer(log *zap.Logger) *FeatureAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeatureAnalyzer{log: log}
}

// Analyze scores all columns of f against its labeled rows. Categorical
// columns are coded by sorted value, all-missing columns are dropped and
// rows with any remaining missing value are skipped. Frames without labels
// yield an empty analysis.
func (a *FeatureAnalyzer) Analyze(f *frame.Frame) Analysis {
	if f.TargetMode != frame.TargetLabeled {
		return Analysis{}
	}

	var names []string
	var cols [][]float64
	for _, c := range f.Columns() {
		v := c.Floats
		if c.Kind == frame.Categorical {
			v = categoryCodes(c.Strings)
		}
		if allNaN(v) {
			continue
		}
		names = append(names, c.Name)
		cols = append(cols, v)
	}

	var rows []int
	for i := 0; i < f.Len(); i++ {
		if f.TargetValid != nil && !f.TargetValid[i] {
			continue
		}
		complete := true
		for _, v := range cols {
			if math.IsNaN(v[i]) {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, i)
		}
	}
	if len(names) == 0 || len(rows) == 0 {
		return Analysis{}
	}

	y := make([]int, len(rows))
	for j, i := range rows {
		y[j] = f.Target[i]
	}
	sub := make([][]float64, len(cols))
	for k, v := range cols {
		sub[k] = make([]float64, len(rows))
		for j, i := range rows {
			sub[k][j] = v[i]
		}
	}

	scores := fClassif(sub, y)
	ranked := make([]ColumnScore, len(names))
	for j, name := range names {
		ranked[j] = ColumnScore{Column: name, Score: scores[j]}
	}
	sortScoresDesc(ranked)

	a.log.Info("feature_analysis",
		zap.String("by", "ANOVA_F"),
		zap.Int("total", len(names)),
		zap.String("top", formatTop(ranked, topLogged)),
	)
	return Analysis{Ranked: ranked, TotalFeatures: len(names)}
}

// categoryCodes maps values to their index in the sorted distinct set.
// Empty strings are missing.
func categoryCodes(values []string) []float64 {
	distinct := make(map[string]struct{})
	for _, v := range values {
		if v != "" {
			distinct[v] = struct{}{}
		}
	}
	vocab := make([]string, 0, len(distinct))
	for v := range distinct {
		vocab = append(vocab, v)
	}
	sort.Strings(vocab)
	code := make(map[string]float64, len(vocab))
	for i, v := range vocab {
		code[v] = float64(i)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		if c, ok := code[v]; ok {
			out[i] = c
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

func allNaN(v []float64) bool {
	for _, x := range v {
		if !math.IsNaN(x) {
			return false
		}
	}
	return true
}
