package training

import (
	"sort"
	"time"
)

// DefaultTestSize is the fraction of the newest rows held out for testing.
const DefaultTestSize = 0.2

// fold is one expanding-window split: train on [0, trainEnd), validate on
// [trainEnd, valEnd).
type fold struct {
	trainEnd int
	valEnd   int
}

// temporalFolds returns nSplits expanding folds over n time-ordered rows.
// Each fold adds fold_size = n/(nSplits+1) rows to the training window.
// Folds that would run past n, or that have an empty training window, are
// omitted.
func temporalFolds(n, nSplits int) []fold {
	if nSplits <= 0 {
		return nil
	}
	size := n / (nSplits + 1)
	if size == 0 {
		return nil
	}
	var out []fold
	for i := 0; i < nSplits; i++ {
		trainEnd := (i + 1) * size
		valEnd := trainEnd + size
		if valEnd > n {
			break
		}
		out = append(out, fold{trainEnd: trainEnd, valEnd: valEnd})
	}
	return out
}

// splitIndex returns the first test row of a temporal split that keeps the
// newest testSize fraction for testing.
func splitIndex(n int, testSize float64) int {
	if testSize <= 0 || testSize >= 1 {
		testSize = DefaultTestSize
	}
	return int(float64(n) * (1 - testSize))
}

// chronological returns row indices ordered by time, ties by station id.
func chronological(at []time.Time, stationIDs []string) []int {
	idx := make([]int, len(at))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if !at[ia].Equal(at[ib]) {
			return at[ia].Before(at[ib])
		}
		return stationIDs[ia] < stationIDs[ib]
	})
	return idx
}
