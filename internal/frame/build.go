package frame

import (
	"math"
	"time"

	"station-forecast-lab/internal/domain"
)

// Raw column names produced by FromRecords.
const (
	ColNumBikes     = "num_bikes_available"
	ColNumDocks     = "num_docks_available"
	ColIsInstalled  = "is_installed"
	ColIsRenting    = "is_renting"
	ColIsReturning  = "is_returning"
	ColLastReported = "last_reported"
	ColName         = "name"
	ColLat          = "lat"
	ColLon          = "lon"
	ColCapacity     = "capacity"
)

// FromRecords builds a frame with one row per record, in input order.
// Nullable metadata fields become NaN or "" cells.
func FromRecords(records []*domain.AvailabilityRecord) *Frame {
	n := len(records)
	ids := make([]string, n)
	ts := make([]time.Time, n)
	bikes := make([]float64, n)
	docks := make([]float64, n)
	installed := make([]float64, n)
	renting := make([]float64, n)
	returning := make([]float64, n)
	lastReported := make([]float64, n)
	names := make([]string, n)
	lat := make([]float64, n)
	lon := make([]float64, n)
	capacity := make([]float64, n)

	for i, r := range records {
		ids[i] = r.StationID
		ts[i] = r.RecordedAt
		bikes[i] = float64(r.NumBikesAvailable)
		docks[i] = float64(r.NumDocksAvailable)
		installed[i] = float64(r.IsInstalled)
		renting[i] = float64(r.IsRenting)
		returning[i] = float64(r.IsReturning)
		lastReported[i] = float64(r.LastReported)
		if r.Name != nil {
			names[i] = *r.Name
		}
		lat[i] = floatOrNaN(r.Lat)
		lon[i] = floatOrNaN(r.Lon)
		capacity[i] = math.NaN()
		if r.Capacity != nil {
			capacity[i] = float64(*r.Capacity)
		}
	}

	f := New(ids, ts)
	f.SetFloats(ColNumBikes, bikes)
	f.SetFloats(ColNumDocks, docks)
	f.SetFloats(ColIsInstalled, installed)
	f.SetFloats(ColIsRenting, renting)
	f.SetFloats(ColIsReturning, returning)
	f.SetFloats(ColLastReported, lastReported)
	f.SetStrings(ColName, names)
	f.SetFloats(ColLat, lat)
	f.SetFloats(ColLon, lon)
	f.SetFloats(ColCapacity, capacity)
	return f
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
