package selection

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"station-forecast-lab/internal/frame"
)

// topLogged is how many ranked scores the fit log line carries.
const topLogged = 5

// SelectorState is the fitted column subset.
type SelectorState struct {
	K        int           `json:"k"`
	Columns  []string      `json:"columns"` // selected, in input column order
	Scores   []ColumnScore `json:"scores"`  // selected, by descending score
	Features int           `json:"n_candidates"`
}

// FeatureSelector keeps the k numeric columns with the highest ANOVA F
// statistic against the target.
type FeatureSelector struct {
	k   int
	log *zap.Logger
}

// NewFeatureSelector creates a selector keeping at most k columns.
func NewFeatureSelector(k int, log *zap.Logger) *FeatureSelector {
	if log == nil {
		log = zap.NewNop()
	}
	return &FeatureSelector{k: k, log: log}
}

// FitAndApply scores every numeric column of f against labels and returns
// the fitted state with f projected to the selected columns.
func (s *FeatureSelector) FitAndApply(f *frame.Frame, labels []int) (*SelectorState, *frame.Frame, error) {
	if f.TargetMode == frame.TargetPlaceholder {
		return nil, nil, fmt.Errorf("selector: %w", ErrPlaceholderLabels)
	}
	if len(labels) != f.Len() {
		return nil, nil, fmt.Errorf("selector: %w: %d labels for %d rows", ErrLabelMismatch, len(labels), f.Len())
	}

	names := f.NamesOfKind(frame.Numeric)
	cols := make([][]float64, len(names))
	for j, name := range names {
		cols[j], _ = f.Floats(name)
	}
	scores := fClassif(cols, labels)

	k := s.k
	if k > len(names) {
		k = len(names)
	}
	if k < 0 {
		k = 0
	}
	ranked := rankForSelection(scores)
	chosen := make(map[int]struct{}, k)
	for _, j := range ranked[len(ranked)-k:] {
		chosen[j] = struct{}{}
	}

	state := &SelectorState{K: k, Features: len(names)}
	for j, name := range names {
		if _, ok := chosen[j]; ok {
			state.Columns = append(state.Columns, name)
			state.Scores = append(state.Scores, ColumnScore{Column: name, Score: scores[j]})
		}
	}
	sortScoresDesc(state.Scores)

	s.log.Info("feature_selection",
		zap.String("by", "ANOVA_F"),
		zap.Int("selected", len(state.Columns)),
		zap.Int("total", len(names)),
		zap.String("top", formatTop(state.Scores, topLogged)),
	)
	s.log.Debug("feature_selection_ranked", zap.Any("scores", state.Scores))

	out, _ := f.Project(state.Columns)
	return state, out, nil
}

// Apply projects f to the selected columns. Selected columns absent from f
// are logged and omitted.
func (s *FeatureSelector) Apply(state *SelectorState, f *frame.Frame) (*frame.Frame, error) {
	if state == nil {
		return nil, fmt.Errorf("selector: %w", ErrNotFitted)
	}
	out, missing := f.Project(state.Columns)
	if len(missing) > 0 {
		s.log.Warn("feature_mismatch",
			zap.Strings("missing", missing),
			zap.Int("available", len(state.Columns)-len(missing)),
		)
	}
	return out, nil
}

func formatTop(scores []ColumnScore, n int) string {
	if n > len(scores) {
		n = len(scores)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%s=%.3f", scores[i].Column, scores[i].Score)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
