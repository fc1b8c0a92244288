package model

import (
	"math"
	"sort"
)

// binner maps feature values to histogram bins. edges[f] is ascending;
// bin(x) is the first i with edges[f][i] >= x, len(edges[f]) when x is above
// every edge. NaN maps to bin 0 so missing values always go left.
type binner struct {
	edges [][]float64
}

func newBinner(X [][]float64, nFeatures, maxBins int) *binner {
	b := &binner{edges: make([][]float64, nFeatures)}
	vals := make([]float64, 0, len(X))
	for f := 0; f < nFeatures; f++ {
		vals = vals[:0]
		for _, row := range X {
			if v := row[f]; !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		sort.Float64s(vals)
		uniq := dedupSorted(vals)
		if len(uniq) <= maxBins {
			// the largest value needs no edge of its own
			if len(uniq) > 0 {
				uniq = uniq[:len(uniq)-1]
			}
			b.edges[f] = uniq
			continue
		}
		edges := make([]float64, 0, maxBins-1)
		for q := 1; q < maxBins; q++ {
			v := vals[q*len(vals)/maxBins]
			if len(edges) == 0 || v > edges[len(edges)-1] {
				edges = append(edges, v)
			}
		}
		b.edges[f] = edges
	}
	return b
}

func (b *binner) bin(f int, x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	return sort.SearchFloat64s(b.edges[f], x)
}

func (b *binner) numBins(f int) int {
	return len(b.edges[f]) + 1
}

// transform bins every cell of X.
func (b *binner) transform(X [][]float64) [][]uint16 {
	out := make([][]uint16, len(X))
	for i, row := range X {
		r := make([]uint16, len(b.edges))
		for f := range b.edges {
			r[f] = uint16(b.bin(f, row[f]))
		}
		out[i] = r
	}
	return out
}

func dedupSorted(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for i, x := range v {
		if i == 0 || x != v[i-1] {
			out = append(out, x)
		}
	}
	return out
}
