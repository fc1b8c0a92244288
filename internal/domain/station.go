package domain

import "time"

// DefaultCapacity is used whenever a station reports no usable capacity.
const DefaultCapacity = 20

// Fallback centroid applied when station metadata is unavailable.
const (
	FallbackLat = 41.9
	FallbackLon = -87.6
)

// Station represents station metadata.
// Corresponds to stations table in PostgreSQL.
type Station struct {
	StationID string    `json:"station_id"` // PRIMARY KEY
	Name      string    `json:"name"`       // display name
	Lat       float64   `json:"lat"`        // latitude
	Lon       float64   `json:"lon"`        // longitude
	Capacity  int       `json:"capacity"`   // total docks
	UpdatedAt time.Time `json:"updated_at"` // last metadata refresh
}

// EffectiveCapacity returns capacity with the default applied to missing or zero values.
func EffectiveCapacity(capacity *int) int {
	if capacity == nil || *capacity <= 0 {
		return DefaultCapacity
	}
	return *capacity
}
