package preprocess

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/frame"
	"station-forecast-lab/internal/labeling"
	"station-forecast-lab/internal/observability"
)

// Mode selects how base data is labeled.
type Mode int

const (
	// ModeTraining aligns future targets and drops rows without one.
	ModeTraining Mode = iota
	// ModeReplay labels like ModeTraining but against an existing fitted state.
	ModeReplay
	// ModeInference skips alignment and attaches a placeholder target.
	ModeInference
)

// String returns the mode name used in logs and metrics.
func (m Mode) String() string {
	switch m {
	case ModeTraining:
		return "training"
	case ModeReplay:
		return "replay"
	case ModeInference:
		return "inference"
	default:
		return "unknown"
	}
}

// prepareBase merges station metadata, orders rows by (station_id,
// recorded_at) and attaches the target according to mode.
func (p *Preprocessor) prepareBase(ctx context.Context, rows []*domain.AvailabilityRecord, mode Mode) (*frame.Frame, error) {
	stations, err := p.source.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load station metadata: %w", err)
	}

	f := frame.FromRecords(rows)
	if len(stations) == 0 {
		p.log.Warn("stations_missing_creating_fallback", zap.Int("rows", f.Len()))
		stations = fallbackStations(f.StationID)
	}
	mergeStations(f, stations)
	f = sortByStationTime(f)

	if mode == ModeInference {
		out, err := labeling.Annotate(f)
		if err != nil {
			return nil, err
		}
		out.SetPlaceholderTarget()
		return out, nil
	}

	out, stats, err := labeling.Align(f)
	if err != nil {
		return nil, err
	}
	p.log.Info("future_targets_created",
		zap.Int("valid", stats.Valid),
		zap.Int("total", stats.Total),
		zap.Int("prediction_horizon_hours", domain.HorizonHours),
	)
	observability.RecordLabelCoverage(stats.Valid, stats.Total)

	kept := labeling.DropUnlabeled(out)
	p.log.Info("filtered_for_valid_futures",
		zap.Int("removed", out.Len()-kept.Len()),
		zap.Int("remaining", kept.Len()),
	)
	return kept, nil
}

// fallbackStations builds synthetic metadata for each distinct station in
// first-appearance order.
func fallbackStations(ids []string) []*domain.Station {
	seen := make(map[string]struct{})
	var out []*domain.Station
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, &domain.Station{
			StationID: id,
			Name:      fmt.Sprintf("Station_%d", len(out)),
			Lat:       domain.FallbackLat,
			Lon:       domain.FallbackLon,
			Capacity:  domain.DefaultCapacity,
		})
	}
	return out
}

// mergeStations fills metadata cells the rows left empty from stations and
// replaces missing or non-positive capacity with the default. Values already
// present on a row win.
func mergeStations(f *frame.Frame, stations []*domain.Station) {
	byID := make(map[string]*domain.Station, len(stations))
	for _, s := range stations {
		byID[s.StationID] = s
	}

	names, _ := f.Strings(frame.ColName)
	lat, _ := f.Floats(frame.ColLat)
	lon, _ := f.Floats(frame.ColLon)
	capacity, _ := f.Floats(frame.ColCapacity)

	outNames := make([]string, f.Len())
	outLat := make([]float64, f.Len())
	outLon := make([]float64, f.Len())
	outCapacity := make([]float64, f.Len())
	for i, id := range f.StationID {
		outNames[i], outLat[i], outLon[i], outCapacity[i] = names[i], lat[i], lon[i], capacity[i]
		if s, ok := byID[id]; ok {
			if outNames[i] == "" {
				outNames[i] = s.Name
			}
			if math.IsNaN(outLat[i]) {
				outLat[i] = s.Lat
			}
			if math.IsNaN(outLon[i]) {
				outLon[i] = s.Lon
			}
			if math.IsNaN(outCapacity[i]) {
				outCapacity[i] = float64(s.Capacity)
			}
		}
		if math.IsNaN(outCapacity[i]) || outCapacity[i] <= 0 {
			outCapacity[i] = domain.DefaultCapacity
		}
	}

	f.SetStrings(frame.ColName, outNames)
	f.SetFloats(frame.ColLat, outLat)
	f.SetFloats(frame.ColLon, outLon)
	f.SetFloats(frame.ColCapacity, outCapacity)
}

// sortByStationTime returns f ordered by (station_id, recorded_at). Equal
// keys keep input order.
func sortByStationTime(f *frame.Frame) *frame.Frame {
	idx := make([]int, f.Len())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if f.StationID[ia] != f.StationID[ib] {
			return f.StationID[ia] < f.StationID[ib]
		}
		return f.RecordedAt[ia].Before(f.RecordedAt[ib])
	})
	return f.Take(idx)
}
