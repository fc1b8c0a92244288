package selection

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ColumnScore is the ANOVA F statistic of one column.
type ColumnScore struct {
	Column string  `json:"column"`
	Score  float64 `json:"score"`
}

// MarshalJSON writes NaN as null and infinities as "+Inf" / "-Inf", which
// plain JSON numbers cannot hold.
func (c ColumnScore) MarshalJSON() ([]byte, error) {
	var score any = c.Score
	switch {
	case math.IsNaN(c.Score):
		score = nil
	case math.IsInf(c.Score, 0):
		score = strconv.FormatFloat(c.Score, 'g', -1, 64)
	}
	return json.Marshal(struct {
		Column string `json:"column"`
		Score  any    `json:"score"`
	}{c.Column, score})
}

// UnmarshalJSON reverses MarshalJSON.
func (c *ColumnScore) UnmarshalJSON(b []byte) error {
	var raw struct {
		Column string          `json:"column"`
		Score  json.RawMessage `json:"score"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c.Column = raw.Column
	switch {
	case len(raw.Score) == 0 || string(raw.Score) == "null":
		c.Score = math.NaN()
	case raw.Score[0] == '"':
		var s string
		if err := json.Unmarshal(raw.Score, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("score of %s: %w", raw.Column, err)
		}
		c.Score = v
	default:
		if err := json.Unmarshal(raw.Score, &c.Score); err != nil {
			return err
		}
	}
	return nil
}

// fClassif computes the one-way ANOVA F statistic of each column against
// the class labels. Degenerate columns yield NaN (no variance at all) or
// +Inf (no variance within classes).
func fClassif(cols [][]float64, y []int) []float64 {
	classIdx := make(map[int]int)
	for _, c := range y {
		if _, ok := classIdx[c]; !ok {
			classIdx[c] = len(classIdx)
		}
	}
	k := len(classIdx)
	n := len(y)

	scores := make([]float64, len(cols))
	groups := make([][]float64, k)
	for j, x := range cols {
		for g := range groups {
			groups[g] = groups[g][:0]
		}
		for i, v := range x {
			g := classIdx[y[i]]
			groups[g] = append(groups[g], v)
		}
		grand := stat.Mean(x, nil)

		ssBetween, ssWithin := 0.0, 0.0
		for _, vals := range groups {
			mean := stat.Mean(vals, nil)
			d := mean - grand
			ssBetween += float64(len(vals)) * d * d

			dev := append([]float64(nil), vals...)
			floats.AddConst(-mean, dev)
			ssWithin += floats.Dot(dev, dev)
		}

		dfBetween := float64(k - 1)
		dfWithin := float64(n - k)
		scores[j] = (ssBetween / dfBetween) / (ssWithin / dfWithin)
	}
	return scores
}

// rankForSelection returns column indices ordered from weakest to strongest.
// NaN ranks below every number and ties keep column order, so among equal
// scores the later column is preferred when taking from the end.
func rankForSelection(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	clean := func(v float64) float64 {
		if math.IsNaN(v) {
			return -math.MaxFloat64
		}
		return v
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return clean(scores[idx[a]]) < clean(scores[idx[b]])
	})
	return idx
}

// sortScoresDesc orders scores for reporting. NaN sorts last.
func sortScoresDesc(scores []ColumnScore) {
	sort.SliceStable(scores, func(a, b int) bool {
		sa, sb := scores[a].Score, scores[b].Score
		if math.IsNaN(sb) {
			return !math.IsNaN(sa)
		}
		if math.IsNaN(sa) {
			return false
		}
		return sa > sb
	})
}
