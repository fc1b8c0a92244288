package training

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemporalFolds(t *testing.T) {
	assert.Equal(t, []fold{{25, 50}, {50, 75}, {75, 100}}, temporalFolds(100, 3))
	assert.Equal(t, []fold{{2, 4}, {4, 6}, {6, 8}, {8, 10}, {10, 12}}, temporalFolds(13, 5))
	assert.Nil(t, temporalFolds(3, 5), "fold size zero")
	assert.Nil(t, temporalFolds(10, 0))
}

func TestSplitIndex(t *testing.T) {
	assert.Equal(t, 80, splitIndex(100, 0.2))
	assert.Equal(t, 5, splitIndex(10, 0.5))
	assert.Equal(t, 80, splitIndex(100, 0), "default test size")
	assert.Equal(t, 0, splitIndex(1, 0.2))
}

func TestEvaluate(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 2, 2}
	yPred := []int{0, 1, 1, 1, 2, 0}

	ev := evaluate(yTrue, yPred)
	assert.InDelta(t, 4.0/6.0, ev.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}}, ev.ConfusionMatrix)

	green := ev.PerClass[0]
	assert.Equal(t, "green", green.Class)
	assert.InDelta(t, 0.5, green.Precision, 1e-12)
	assert.InDelta(t, 0.5, green.Recall, 1e-12)
	assert.Equal(t, 2, green.Support)

	yellow := ev.PerClass[1]
	assert.InDelta(t, 2.0/3.0, yellow.Precision, 1e-12)
	assert.InDelta(t, 1.0, yellow.Recall, 1e-12)
	assert.InDelta(t, 0.8, yellow.F1, 1e-12)

	red := ev.PerClass[2]
	assert.InDelta(t, 1.0, red.Precision, 1e-12)
	assert.InDelta(t, 0.5, red.Recall, 1e-12)
}

func TestEvaluate_AbsentClassHasZeroScores(t *testing.T) {
	ev := evaluate([]int{0, 0}, []int{0, 0})
	assert.Equal(t, 1.0, ev.Accuracy)
	assert.Zero(t, ev.PerClass[2].Precision)
	assert.Zero(t, ev.PerClass[2].F1)
	assert.Equal(t, 0, ev.PerClass[2].Support)
}

func TestRankImportances(t *testing.T) {
	got := rankImportances([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.2})
	assert.Equal(t, []FeatureImportance{{"b", 0.5}, {"a", 0.2}, {"c", 0.2}}, got)
}

func TestMeanStd(t *testing.T) {
	m, s := meanStd([]float64{1, 3})
	assert.Equal(t, 2.0, m)
	assert.Equal(t, 1.0, s)

	m, s = meanStd(nil)
	assert.Zero(t, m)
	assert.Zero(t, s)
}

func TestDefaultGrid(t *testing.T) {
	grid := DefaultGrid()
	assert.Len(t, grid, 5)
	assert.Equal(t, 7, grid[4].MaxDepth)
	assert.Equal(t, 300, grid[4].NEstimators)
	assert.InDelta(t, 0.15, grid[3].LearningRate, 1e-12)
	for _, p := range grid {
		assert.InDelta(t, 0.8, p.Subsample, 1e-12)
		assert.Equal(t, int64(42), p.Seed)
	}
}
