package domain

import "time"

// AvailabilityRecord is one availability observation of a station.
// Corresponds to station_availability table, optionally joined with stations.
type AvailabilityRecord struct {
	StationID         string    `json:"station_id"`          // station identity
	RecordedAt        time.Time `json:"recorded_at"`         // sampling timestamp, ordering key within a station
	NumBikesAvailable int       `json:"num_bikes_available"` // bikes ready to rent
	NumDocksAvailable int       `json:"num_docks_available"` // free docks
	IsInstalled       int       `json:"is_installed"`        // 0/1 as reported by the feed
	IsRenting         int       `json:"is_renting"`          // 0/1
	IsReturning       int       `json:"is_returning"`        // 0/1
	LastReported      int64     `json:"last_reported"`       // feed timestamp, unix seconds

	// Joined station metadata (nullable when the join found nothing)
	Name     *string  `json:"name,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Capacity *int     `json:"capacity,omitempty"`
}

// Validate checks required fields.
func (r *AvailabilityRecord) Validate() error {
	if r.StationID == "" {
		return ErrMissingStationID
	}
	if r.RecordedAt.IsZero() {
		return ErrMissingRecordedAt
	}
	if r.NumBikesAvailable < 0 || r.NumDocksAvailable < 0 {
		return ErrNegativeCount
	}
	return nil
}
