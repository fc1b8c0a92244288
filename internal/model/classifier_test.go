package model

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bands puts class int(x0) on feature 0 and noise on feature 1.
func bands(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		x0 := rng.Float64() * 3
		X[i] = []float64{x0, rng.Float64()}
		y[i] = int(x0)
	}
	return X, y
}

func smallParams() Params {
	p := DefaultParams()
	p.NEstimators = 30
	p.MaxDepth = 3
	p.LearningRate = 0.3
	return p
}

func TestClassifier_LearnsSeparableClasses(t *testing.T) {
	X, y := bands(300, 1)
	c := NewClassifier(smallParams(), 3)
	require.NoError(t, c.Fit(X, y, nil))

	testX, testY := bands(100, 2)
	acc, err := c.Score(testX, testY)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.95)

	proba, err := c.PredictProba(testX[:5])
	require.NoError(t, err)
	for _, p := range proba {
		sum := 0.0
		for _, v := range p {
			assert.True(t, v >= 0 && v <= 1)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}

	imp := c.FeatureImportances()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
}

func TestClassifier_Deterministic(t *testing.T) {
	X, y := bands(200, 3)
	p := smallParams()
	p.Subsample = 0.8
	p.ColsampleByTree = 0.5

	a := NewClassifier(p, 3)
	b := NewClassifier(p, 3)
	require.NoError(t, a.Fit(X, y, nil))
	require.NoError(t, b.Fit(X, y, nil))

	pa, err := a.PredictProba(X)
	require.NoError(t, err)
	pb, err := b.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestClassifier_EarlyStopping(t *testing.T) {
	X, y := bands(200, 4)
	evalX, evalY := bands(60, 5)
	// flipped eval labels make every round after the first worse
	for i := range evalY {
		evalY[i] = 2 - evalY[i]
	}

	p := smallParams()
	p.NEstimators = 100
	p.EarlyStoppingRounds = 5
	c := NewClassifier(p, 3)
	require.NoError(t, c.Fit(X, y, &EvalSet{X: evalX, Y: evalY}))

	assert.Len(t, c.Rounds, c.BestIteration+1)
	assert.Less(t, len(c.EvalHistory), 100)
	assert.Equal(t, c.EvalHistory[c.BestIteration], c.BestScore)
	for _, loss := range c.EvalHistory {
		assert.GreaterOrEqual(t, loss, c.BestScore)
	}
}

func TestClassifier_Errors(t *testing.T) {
	c := NewClassifier(smallParams(), 3)

	_, err := c.Predict([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrNotTrained)

	assert.ErrorIs(t, c.Fit(nil, nil, nil), ErrEmptyInput)
	assert.ErrorIs(t, c.Fit([][]float64{{1}}, []int{0, 1}, nil), ErrShapeMismatch)
	assert.ErrorIs(t, c.Fit([][]float64{{1}, {1, 2}}, []int{0, 1}, nil), ErrShapeMismatch)
	assert.ErrorIs(t, c.Fit([][]float64{{1}}, []int{3}, nil), ErrInvalidLabel)

	X, y := bands(50, 6)
	require.NoError(t, c.Fit(X, y, nil))
	_, err = c.PredictProba([][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestClassifier_MissingValuesGoLeft(t *testing.T) {
	X, y := bands(200, 7)
	c := NewClassifier(smallParams(), 3)
	require.NoError(t, c.Fit(X, y, nil))

	got, err := c.Predict([][]float64{{math.NaN(), 0.5}, {0, 0.5}})
	require.NoError(t, err)
	assert.Equal(t, got[1], got[0])
}

func TestClassifier_SaveLoad(t *testing.T) {
	X, y := bands(120, 8)
	c := NewClassifier(smallParams(), 3)
	require.NoError(t, c.Fit(X, y, nil))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)

	want, err := c.PredictProba(X)
	require.NoError(t, err)
	got, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, c.Params, loaded.Params)

	assert.ErrorIs(t, NewClassifier(smallParams(), 3).Save(&buf), ErrNotTrained)
	_, err = Load(bytes.NewBufferString(`{"num_classes":3,"num_features":1,"rounds":[[{"nodes":[{"l":-1,"r":-1}]}]]}`))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestBinner(t *testing.T) {
	X := [][]float64{{1}, {2}, {2}, {3}, {math.NaN()}}
	b := newBinner(X, 1, 64)
	assert.Equal(t, []float64{1, 2}, b.edges[0])
	assert.Equal(t, 0, b.bin(0, 0.5))
	assert.Equal(t, 0, b.bin(0, 1))
	assert.Equal(t, 1, b.bin(0, 1.5))
	assert.Equal(t, 2, b.bin(0, 3))
	assert.Equal(t, 0, b.bin(0, math.NaN()))

	many := make([][]float64, 1000)
	for i := range many {
		many[i] = []float64{float64(i)}
	}
	b = newBinner(many, 1, 16)
	assert.Len(t, b.edges[0], 15)
	assert.Equal(t, 16, b.numBins(0))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.5, 0.3}))
	assert.Equal(t, 0, Argmax([]float64{0.4, 0.4, 0.2}))
}
