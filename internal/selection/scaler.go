package selection

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"station-forecast-lab/internal/frame"
)

// ScaleExcluded lists columns the scaler never touches. The key columns are
// not frame columns but are listed so callers can share one exclusion set.
var ScaleExcluded = []string{
	frame.ColTarget,
	frame.ColStationID,
	"dow_hour_interaction",
	frame.ColRecordedAt,
}

// ScalerState holds per-column robust statistics.
type ScalerState struct {
	Columns []string  `json:"columns"`
	Center  []float64 `json:"center"` // median
	Scale   []float64 `json:"scale"`  // interquartile range, 1 when zero
}

// FeatureScaler applies median/IQR scaling to numeric columns.
type FeatureScaler struct {
	exclude map[string]struct{}
	log     *zap.Logger
}

// NewFeatureScaler creates a scaler using ScaleExcluded.
func NewFeatureScaler(log *zap.Logger) *FeatureScaler {
	if log == nil {
		log = zap.NewNop()
	}
	ex := make(map[string]struct{}, len(ScaleExcluded))
	for _, c := range ScaleExcluded {
		ex[c] = struct{}{}
	}
	return &FeatureScaler{exclude: ex, log: log}
}

func (s *FeatureScaler) columns(f *frame.Frame) []string {
	var cols []string
	for _, name := range f.NamesOfKind(frame.Numeric) {
		if _, skip := s.exclude[name]; !skip {
			cols = append(cols, name)
		}
	}
	return cols
}

// FitAndApply fits per-column statistics on f and returns them with the
// scaled frame.
func (s *FeatureScaler) FitAndApply(f *frame.Frame) (*ScalerState, *frame.Frame, error) {
	cols := s.columns(f)
	state := &ScalerState{
		Columns: cols,
		Center:  make([]float64, len(cols)),
		Scale:   make([]float64, len(cols)),
	}
	for j, name := range cols {
		v, _ := f.Floats(name)
		q25, median, q75 := quartiles(v)
		// all-missing columns pass through unchanged
		if math.IsNaN(median) {
			median = 0
		}
		state.Center[j] = median
		scale := q75 - q25
		if scale == 0 || math.IsNaN(scale) {
			scale = 1
		}
		state.Scale[j] = scale
	}

	out, err := s.Apply(state, f)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("feature_scaling", zap.Int("applied_to", len(cols)))
	return state, out, nil
}

// Apply scales f with fitted state. The numeric column set of f, minus the
// exclusions, must equal the fitted set.
func (s *FeatureScaler) Apply(state *ScalerState, f *frame.Frame) (*frame.Frame, error) {
	if state == nil {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}
	if extra, missing := diffColumns(state.Columns, s.columns(f)); len(extra) > 0 || len(missing) > 0 {
		return nil, fmt.Errorf("scaler: %w: unexpected=[%s] missing=[%s]",
			ErrColumnMismatch, strings.Join(extra, ","), strings.Join(missing, ","))
	}

	out := f.Clone()
	for j, name := range state.Columns {
		v, _ := f.Floats(name)
		scaled := make([]float64, len(v))
		for i, x := range v {
			scaled[i] = (x - state.Center[j]) / state.Scale[j]
		}
		out.SetFloats(name, scaled)
	}
	return out, nil
}

// diffColumns returns columns present only in got and only in want.
func diffColumns(want, got []string) (extra, missing []string) {
	w := make(map[string]struct{}, len(want))
	for _, c := range want {
		w[c] = struct{}{}
	}
	g := make(map[string]struct{}, len(got))
	for _, c := range got {
		g[c] = struct{}{}
		if _, ok := w[c]; !ok {
			extra = append(extra, c)
		}
	}
	for _, c := range want {
		if _, ok := g[c]; !ok {
			missing = append(missing, c)
		}
	}
	return extra, missing
}

// quartiles returns the 25th, 50th and 75th percentiles with linear
// interpolation, ignoring NaN. All NaN yields NaN.
func quartiles(v []float64) (q25, q50, q75 float64) {
	sorted := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			sorted = append(sorted, x)
		}
	}
	if len(sorted) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	sort.Float64s(sorted)
	return percentile(sorted, 25), percentile(sorted, 50), percentile(sorted, 75)
}

// percentile expects sorted input.
func percentile(sorted []float64, p float64) float64 {
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
