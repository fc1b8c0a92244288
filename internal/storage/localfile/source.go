// Package localfile reads station data from a directory of JSON exports
// holding stations.json and station_availability.json. It serves training
// and inference without a database.
package localfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// File names inside the data directory.
const (
	StationsFile     = "stations.json"
	AvailabilityFile = "station_availability.json"
)

// Source implements storage.TimeSeriesSource over a data directory.
// Files are read on every call so a refreshed export is picked up without
// restarting.
type Source struct {
	dir string
}

// NewSource creates a source reading from dir. Both files must exist.
func NewSource(dir string) (*Source, error) {
	for _, name := range []string{StationsFile, AvailabilityFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("local data files not found in %s: %w", dir, storage.ErrNotFound)
		}
	}
	return &Source{dir: dir}, nil
}

var _ storage.TimeSeriesSource = (*Source)(nil)

// Stations returns station metadata ordered by station_id.
func (s *Source) Stations(ctx context.Context) ([]*domain.Station, error) {
	stations, err := s.readStations()
	if err != nil {
		return nil, err
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].StationID < stations[j].StationID })
	return stations, nil
}

// TrainingRows returns joined rows recorded at or after since, ordered by recorded_at.
func (s *Source) TrainingRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(since)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RecordedAt.Before(rows[j].RecordedAt) })
	return rows, nil
}

// RecentRows returns joined rows recorded at or after since, ordered by station and time.
func (s *Source) RecentRows(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(since)
	if err != nil {
		return nil, err
	}
	sortByStationTime(rows)
	return rows, nil
}

// LatestPerStation returns the newest joined row of each station.
func (s *Source) LatestPerStation(ctx context.Context, since time.Time) ([]*domain.AvailabilityRecord, error) {
	rows, err := s.joined(since)
	if err != nil {
		return nil, err
	}
	sortByStationTime(rows)

	var latest []*domain.AvailabilityRecord
	for i, r := range rows {
		if i+1 == len(rows) || rows[i+1].StationID != r.StationID {
			latest = append(latest, r)
		}
	}
	return latest, nil
}

// joined reads availability rows at or after since and attaches station
// metadata. Rows of stations missing from stations.json keep nil metadata.
func (s *Source) joined(since time.Time) ([]*domain.AvailabilityRecord, error) {
	stations, err := s.readStations()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Station, len(stations))
	for _, st := range stations {
		byID[st.StationID] = st
	}

	var raw []availabilityRow
	if err := s.readJSON(AvailabilityFile, &raw); err != nil {
		return nil, err
	}

	rows := make([]*domain.AvailabilityRecord, 0, len(raw))
	for _, r := range raw {
		rec := r.record()
		if rec.RecordedAt.Before(since) {
			continue
		}
		if st, ok := byID[rec.StationID]; ok {
			name, lat, lon, capacity := st.Name, st.Lat, st.Lon, st.Capacity
			rec.Name, rec.Lat, rec.Lon, rec.Capacity = &name, &lat, &lon, &capacity
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (s *Source) readStations() ([]*domain.Station, error) {
	var raw []stationRow
	if err := s.readJSON(StationsFile, &raw); err != nil {
		return nil, err
	}
	stations := make([]*domain.Station, 0, len(raw))
	for _, r := range raw {
		stations = append(stations, &domain.Station{
			StationID: string(r.StationID),
			Name:      r.Name,
			Lat:       r.Lat,
			Lon:       r.Lon,
			Capacity:  r.Capacity,
		})
	}
	return stations, nil
}

func (s *Source) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", name, storage.ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

type stationRow struct {
	StationID flexibleID `json:"station_id"`
	Name      string     `json:"name"`
	Lat       float64    `json:"lat"`
	Lon       float64    `json:"lon"`
	Capacity  int        `json:"capacity"`
}

type availabilityRow struct {
	StationID         flexibleID  `json:"station_id"`
	RecordedAt        exportTime  `json:"recorded_at"`
	NumBikesAvailable int         `json:"num_bikes_available"`
	NumDocksAvailable int         `json:"num_docks_available"`
	IsInstalled       flexibleInt `json:"is_installed"`
	IsRenting         flexibleInt `json:"is_renting"`
	IsReturning       flexibleInt `json:"is_returning"`
	LastReported      int64       `json:"last_reported"`
}

func (r availabilityRow) record() *domain.AvailabilityRecord {
	return &domain.AvailabilityRecord{
		StationID:         string(r.StationID),
		RecordedAt:        time.Time(r.RecordedAt),
		NumBikesAvailable: r.NumBikesAvailable,
		NumDocksAvailable: r.NumDocksAvailable,
		IsInstalled:       int(r.IsInstalled),
		IsRenting:         int(r.IsRenting),
		IsReturning:       int(r.IsReturning),
		LastReported:      r.LastReported,
	}
}

// flexibleID accepts station ids exported as strings or numbers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("station_id: %w", err)
	}
	*id = flexibleID(n.String())
	return nil
}

// flexibleInt accepts 0/1 flags exported as numbers or booleans.
type flexibleInt int

func (v *flexibleInt) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*v = 1
		return nil
	case "false", "null":
		*v = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = flexibleInt(n)
	return nil
}

// exportTime accepts RFC 3339 and the "YYYY-MM-DD HH:MM:SS" form databases
// export. Zone-less values are UTC.
type exportTime time.Time

var exportLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

func (t *exportTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// epoch milliseconds
		var ms int64
		if errNum := json.Unmarshal(b, &ms); errNum != nil {
			return fmt.Errorf("recorded_at: %w", err)
		}
		*t = exportTime(time.UnixMilli(ms).UTC())
		return nil
	}
	s = strings.TrimSpace(s)
	for _, layout := range exportLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = exportTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("recorded_at: unrecognized time %q", s)
}

func sortByStationTime(rows []*domain.AvailabilityRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].StationID != rows[j].StationID {
			return rows[i].StationID < rows[j].StationID
		}
		return rows[i].RecordedAt.Before(rows[j].RecordedAt)
	})
}
