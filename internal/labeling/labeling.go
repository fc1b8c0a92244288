// Package labeling builds the availability ratio, the current class and the
// forward-looking target of each row.
//
// The target of a row is the class of the same station's row recorded exactly
// HorizonHours later. No nearest-match or interpolation is done: a station with
// a gap or jitter at recorded_at+6h simply gets no target for that row.
package labeling

import (
	"errors"
	"fmt"
	"math"
	"time"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/frame"
)

// Column names written by this package.
const (
	ColRatio        = "availability_ratio"
	ColCurrentClass = "availability_target_current"
)

// Horizon is the offset between a row and the row its target is read from.
const Horizon = domain.HorizonHours * time.Hour

var (
	// ErrAmbiguousFuture is returned when several rows of a station share the
	// timestamp a target must be read from.
	ErrAmbiguousFuture = errors.New("ambiguous future observation")
	// ErrMissingColumn is returned when num_bikes_available is absent.
	ErrMissingColumn = errors.New("missing required column")
)

// AlignStats counts rows that received a target.
type AlignStats struct {
	Valid int
	Total int
}

// Ratio returns Valid/Total, 0 for an empty frame.
func (s AlignStats) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Total)
}

// AvailabilityRatio returns bikes/capacity with missing or non-positive
// capacity replaced by domain.DefaultCapacity.
func AvailabilityRatio(bikes, capacity float64) float64 {
	if math.IsNaN(capacity) || capacity <= 0 {
		capacity = domain.DefaultCapacity
	}
	return bikes / capacity
}

// Bucket maps a ratio to its class.
func Bucket(ratio float64) domain.AvailabilityClass {
	return domain.ClassifyRatio(ratio)
}

// Annotate returns a copy of f with availability_ratio and
// availability_target_current added. The capacity column is optional.
func Annotate(f *frame.Frame) (*frame.Frame, error) {
	bikes, ok := f.Floats(frame.ColNumBikes)
	if !ok {
		return nil, fmt.Errorf("annotate: %w: %s", ErrMissingColumn, frame.ColNumBikes)
	}
	capacity, hasCapacity := f.Floats(frame.ColCapacity)

	ratio := make([]float64, f.Len())
	current := make([]float64, f.Len())
	for i := range ratio {
		c := math.NaN()
		if hasCapacity {
			c = capacity[i]
		}
		ratio[i] = AvailabilityRatio(bikes[i], c)
		current[i] = float64(Bucket(ratio[i]))
	}

	out := f.Clone()
	out.SetFloats(ColRatio, ratio)
	out.SetFloats(ColCurrentClass, current)
	return out, nil
}

type rowKey struct {
	stationID string
	unixNano  int64
}

// Align annotates f and attaches the target read from recorded_at+Horizon of
// the same station. Rows without a match keep TargetValid=false.
func Align(f *frame.Frame) (*frame.Frame, AlignStats, error) {
	out, err := Annotate(f)
	if err != nil {
		return nil, AlignStats{}, err
	}
	current, _ := out.Floats(ColCurrentClass)

	rows := make(map[rowKey]int, out.Len())
	dups := make(map[rowKey]int)
	for i := 0; i < out.Len(); i++ {
		k := rowKey{out.StationID[i], out.RecordedAt[i].UnixNano()}
		if _, seen := rows[k]; seen {
			dups[k]++
			continue
		}
		rows[k] = i
	}

	target := make([]int, out.Len())
	valid := make([]bool, out.Len())
	stats := AlignStats{Total: out.Len()}
	for i := 0; i < out.Len(); i++ {
		future := out.RecordedAt[i].Add(Horizon)
		k := rowKey{out.StationID[i], future.UnixNano()}
		j, ok := rows[k]
		if !ok {
			continue
		}
		if dups[k] > 0 {
			return nil, AlignStats{}, fmt.Errorf("align station %s at %s: %w (%d rows)",
				out.StationID[i], future.UTC().Format(time.RFC3339), ErrAmbiguousFuture, dups[k]+1)
		}
		target[i] = int(current[j])
		valid[i] = true
		stats.Valid++
	}

	out.SetTarget(target, valid)
	return out, stats, nil
}

// DropUnlabeled returns the rows of f that carry a target, in order.
func DropUnlabeled(f *frame.Frame) *frame.Frame {
	idx := make([]int, 0, f.Len())
	for i, ok := range f.TargetValid {
		if ok {
			idx = append(idx, i)
		}
	}
	return f.Take(idx)
}
