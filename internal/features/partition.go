package features

import (
	"sort"

	"station-forecast-lab/internal/frame"
)

// partitions groups row indices by station_id in first-appearance order.
// Each group is stable-sorted by recorded_at, so equal timestamps keep
// their input order.
func partitions(f *frame.Frame) [][]int {
	pos := make(map[string]int)
	var groups [][]int
	for i, id := range f.StationID {
		p, ok := pos[id]
		if !ok {
			p = len(groups)
			pos[id] = p
			groups = append(groups, nil)
		}
		groups[p] = append(groups[p], i)
	}
	for _, g := range groups {
		sort.SliceStable(g, func(a, b int) bool {
			return f.RecordedAt[g[a]].Before(f.RecordedAt[g[b]])
		})
	}
	return groups
}

// gather returns v at the given row indices.
func gather(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for j, i := range idx {
		out[j] = v[i]
	}
	return out
}

// scatter writes part back to the row positions idx of dst.
func scatter(dst []float64, idx []int, part []float64) {
	for j, i := range idx {
		dst[i] = part[j]
	}
}
