package preprocess

import (
	"math"
	"sort"

	"station-forecast-lab/internal/frame"
)

// unknownCategory fills categorical columns that had no value at fit time.
const unknownCategory = "unknown"

// unseenCode is the code of a categorical value absent from the vocabulary.
const unseenCode = -1

// CleaningState holds imputation values and categorical vocabularies.
// Columns with no observed value at fit time have no median entry and stay
// missing.
type CleaningState struct {
	Medians      map[string]float64  `json:"medians"`
	Modes        map[string]string   `json:"modes"`
	Vocabularies map[string][]string `json:"vocabularies"` // sorted distinct values
}

// fitCleaning learns medians of numeric columns, modes of categorical
// columns and the sorted vocabulary of each categorical column after filling.
func fitCleaning(f *frame.Frame) *CleaningState {
	st := &CleaningState{
		Medians:      make(map[string]float64),
		Modes:        make(map[string]string),
		Vocabularies: make(map[string][]string),
	}
	for _, c := range f.Columns() {
		switch c.Kind {
		case frame.Numeric:
			if m, ok := median(c.Floats); ok {
				st.Medians[c.Name] = m
			}
		case frame.Categorical:
			mode := mostFrequent(c.Strings)
			st.Modes[c.Name] = mode
			seen := map[string]struct{}{mode: {}}
			for _, v := range c.Strings {
				if v != "" {
					seen[v] = struct{}{}
				}
			}
			vocab := make([]string, 0, len(seen))
			for v := range seen {
				vocab = append(vocab, v)
			}
			sort.Strings(vocab)
			st.Vocabularies[c.Name] = vocab
		}
	}
	return st
}

// apply returns a copy of f with missing values filled and every categorical
// column replaced by numeric codes.
func (st *CleaningState) apply(f *frame.Frame) *frame.Frame {
	out := f.Clone()
	for _, c := range f.Columns() {
		switch c.Kind {
		case frame.Numeric:
			m, ok := st.Medians[c.Name]
			if !ok || !hasNaN(c.Floats) {
				continue
			}
			filled := make([]float64, len(c.Floats))
			for i, v := range c.Floats {
				if math.IsNaN(v) {
					v = m
				}
				filled[i] = v
			}
			out.SetFloats(c.Name, filled)
		case frame.Categorical:
			mode, ok := st.Modes[c.Name]
			if !ok {
				mode = unknownCategory
			}
			codes := make(map[string]float64, len(st.Vocabularies[c.Name]))
			for i, v := range st.Vocabularies[c.Name] {
				codes[v] = float64(i)
			}
			coded := make([]float64, len(c.Strings))
			for i, v := range c.Strings {
				if v == "" {
					v = mode
				}
				code, known := codes[v]
				if !known {
					code = unseenCode
				}
				coded[i] = code
			}
			out.SetFloats(c.Name, coded)
		}
	}
	return out
}

// median ignores NaN. ok is false when every value is missing.
func median(v []float64) (float64, bool) {
	vals := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid], true
	}
	return (vals[mid-1] + vals[mid]) / 2, true
}

// mostFrequent returns the most common non-empty value, the smallest on
// ties, or unknownCategory when every value is empty.
func mostFrequent(v []string) string {
	counts := make(map[string]int)
	for _, s := range v {
		if s != "" {
			counts[s]++
		}
	}
	best, bestN := unknownCategory, 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return best
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
