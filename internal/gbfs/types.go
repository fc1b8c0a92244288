package gbfs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"station-forecast-lab/internal/domain"
)

// StationInfo is one entry of the station_information feed.
type StationInfo struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`
}

// StationStatus is one entry of the station_status feed.
type StationStatus struct {
	StationID         string    `json:"station_id"`
	NumBikesAvailable int       `json:"num_bikes_available"`
	NumDocksAvailable int       `json:"num_docks_available"`
	IsInstalled       flag      `json:"is_installed"`
	IsRenting         flag      `json:"is_renting"`
	IsReturning       flag      `json:"is_returning"`
	LastReported      timestamp `json:"last_reported"`
}

// Snapshot is both feeds fetched together.
type Snapshot struct {
	Stations    []StationInfo
	Statuses    []StationStatus
	LastUpdated time.Time // station_status last_updated
}

// envelope is the common GBFS response wrapper.
type envelope[T any] struct {
	LastUpdated timestamp `json:"last_updated"`
	TTL         int       `json:"ttl"`
	Data        struct {
		Stations []T `json:"stations"`
	} `json:"data"`
}

// Station converts feed metadata into the domain type.
func (s StationInfo) Station() *domain.Station {
	return &domain.Station{
		StationID: s.StationID,
		Name:      s.Name,
		Lat:       s.Lat,
		Lon:       s.Lon,
		Capacity:  s.Capacity,
	}
}

// Record converts a status entry into an availability row stamped at recordedAt.
func (s StationStatus) Record(recordedAt time.Time) *domain.AvailabilityRecord {
	return &domain.AvailabilityRecord{
		StationID:         s.StationID,
		RecordedAt:        recordedAt,
		NumBikesAvailable: s.NumBikesAvailable,
		NumDocksAvailable: s.NumDocksAvailable,
		IsInstalled:       int(s.IsInstalled),
		IsRenting:         int(s.IsRenting),
		IsReturning:       int(s.IsReturning),
		LastReported:      time.Time(s.LastReported).Unix(),
	}
}

// flag decodes GBFS booleans, published as 0/1 before v2 and true/false after.
type flag int

func (f *flag) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*f = 1
	case "false", "null":
		*f = 0
	default:
		n, err := strconv.Atoi(string(b))
		if err != nil {
			return fmt.Errorf("flag %s: %w", b, err)
		}
		*f = flag(n)
	}
	return nil
}

// timestamp decodes POSIX seconds (GBFS v1/v2) or RFC 3339 strings (v3).
type timestamp time.Time

func (t *timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = timestamp(time.Time{})
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("timestamp %q: %w", s, err)
		}
		*t = timestamp(parsed.UTC())
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("timestamp %s: %w", b, err)
	}
	*t = timestamp(time.Unix(int64(secs), 0).UTC())
	return nil
}

// Time returns the decoded time.
func (t timestamp) Time() time.Time { return time.Time(t) }
