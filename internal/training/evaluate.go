package training

import (
	"sort"

	"station-forecast-lab/internal/domain"
)

// ClassMetrics are the per-class rows of a classification report.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarizes test-set performance.
type Evaluation struct {
	Accuracy        float64        `json:"accuracy"`
	PerClass        []ClassMetrics `json:"per_class"`
	MacroF1         float64        `json:"macro_f1"`
	WeightedF1      float64        `json:"weighted_f1"`
	ConfusionMatrix [][]int        `json:"confusion_matrix"` // [true][predicted]
}

// FeatureImportance is a model input with its normalized gain.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// evaluate compares predictions to labels over the three classes.
func evaluate(yTrue, yPred []int) Evaluation {
	k := domain.NumClasses
	cm := make([][]int, k)
	for i := range cm {
		cm[i] = make([]int, k)
	}
	correct := 0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			continue
		}
		cm[t][p]++
		if t == p {
			correct++
		}
	}

	ev := Evaluation{ConfusionMatrix: cm}
	if len(yTrue) > 0 {
		ev.Accuracy = float64(correct) / float64(len(yTrue))
	}

	total := 0
	for c := 0; c < k; c++ {
		tp := cm[c][c]
		predicted, support := 0, 0
		for j := 0; j < k; j++ {
			predicted += cm[j][c]
			support += cm[c][j]
		}
		m := ClassMetrics{Class: domain.AvailabilityClass(c).String(), Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.PerClass = append(ev.PerClass, m)
		ev.MacroF1 += m.F1 / float64(k)
		ev.WeightedF1 += m.F1 * float64(support)
		total += support
	}
	if total > 0 {
		ev.WeightedF1 /= float64(total)
	}
	return ev
}

// rankImportances pairs importances with column names, highest first.
// Ties keep column order.
func rankImportances(columns []string, importances []float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(columns))
	for i, name := range columns {
		v := 0.0
		if i < len(importances) {
			v = importances[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}
