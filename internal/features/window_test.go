package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolling_TrailingWindow(t *testing.T) {
	rs := rolling([]float64{1, 3, 5, 7}, 2)

	assert.Equal(t, []float64{1, 2, 4, 6}, rs.mean)
	assert.Equal(t, []float64{1, 1, 3, 5}, rs.min)
	assert.Equal(t, []float64{1, 3, 5, 7}, rs.max)

	assert.Equal(t, 0.0, rs.std[0], "single sample has no std")
	for i := 1; i < 4; i++ {
		assert.InDelta(t, math.Sqrt2, rs.std[i], 1e-12, "std[%d]", i)
	}
}

func TestRolling_SampleStdDev(t *testing.T) {
	// pandas rolling(4).std() of [2, 4, 4, 4] is sqrt(1/3).
	rs := rolling([]float64{2, 4, 4, 4}, 4)
	assert.InDelta(t, math.Sqrt(1.0/3.0), rs.std[3], 1e-12)
	assert.InDelta(t, 3.5, rs.mean[3], 1e-12)
}

func TestDiff(t *testing.T) {
	d := diff([]float64{1, 4, 2})
	assert.True(t, math.IsNaN(d[0]))
	assert.Equal(t, []float64{3, -2}, d[1:])
}
