package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Window helpers operate on one station's series, already in time order.

// shiftBackfill returns v shifted k samples back, with the leading gap
// filled by the current value instead of NaN.
func shiftBackfill(v []float64, k int) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i >= k {
			out[i] = v[i-k]
		} else {
			out[i] = v[i]
		}
	}
	return out
}

// diff returns v[i]-v[i-1], NaN on the first sample.
func diff(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v[i] - v[i-1]
	}
	return out
}

// rollingStats holds trailing window aggregates of one series.
type rollingStats struct {
	mean []float64
	std  []float64
	min  []float64
	max  []float64
}

// rolling computes trailing-window mean, min and max with a minimum of one
// sample, and sample standard deviation with a minimum of two samples (0
// otherwise). The window covers samples (i-w, i].
func rolling(v []float64, w int) rollingStats {
	n := len(v)
	rs := rollingStats{
		mean: make([]float64, n),
		std:  make([]float64, n),
		min:  make([]float64, n),
		max:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		lo := i - w + 1
		if lo < 0 {
			lo = 0
		}
		win := v[lo : i+1]

		rs.mean[i] = stat.Mean(win, nil)
		if len(win) >= 2 {
			rs.std[i] = stat.StdDev(win, nil)
		}
		rs.min[i] = floats.Min(win)
		rs.max[i] = floats.Max(win)
	}
	return rs
}
