package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"station-forecast-lab/internal/domain"
	"station-forecast-lab/internal/storage"
)

// PredictionStore implements storage.PredictionStore using ClickHouse.
// The log is append-only; a run is identified by its run_id.
type PredictionStore struct {
	conn *Conn
}

// NewPredictionStore creates a new PredictionStore.
func NewPredictionStore(conn *Conn) *PredictionStore {
	return &PredictionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PredictionStore = (*PredictionStore)(nil)

const predictionColumns = `
	run_id, station_id, predicted_availability_class, availability_prediction,
	confidence_green, confidence_yellow, confidence_red,
	prediction_time, horizon_hours, created_at
`

// InsertBulk adds predictions of one inference run in a single batch.
func (s *PredictionStore) InsertBulk(ctx context.Context, predictions []*domain.Prediction) (err error) {
	if len(predictions) == 0 {
		return nil
	}
	for _, p := range predictions {
		if p == nil || p.StationID == "" || p.RunID == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("insert_predictions", start, err) }(time.Now())

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO predictions (`+predictionColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range predictions {
		err = batch.Append(
			p.RunID,
			p.StationID,
			uint8(p.PredictedAvailabilityClass),
			p.AvailabilityPrediction,
			p.ConfidenceGreen,
			p.ConfidenceYellow,
			p.ConfidenceRed,
			p.PredictionTime.UTC(),
			uint8(p.HorizonHours),
			p.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves predictions of a run ordered by station_id.
func (s *PredictionStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE run_id = ?
		ORDER BY station_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanPredictions(rows)
}

// GetLatest retrieves the newest prediction of a station. Returns ErrNotFound if none.
func (s *PredictionStore) GetLatest(ctx context.Context, stationID string) (*domain.Prediction, error) {
	query := `
		SELECT ` + predictionColumns + `
		FROM predictions
		WHERE station_id = ?
		ORDER BY created_at DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, stationID)
	if err != nil {
		return nil, fmt.Errorf("query latest prediction: %w", err)
	}
	defer rows.Close()

	result, err := scanPredictions(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result[0], nil
}

// scanPredictions scans multiple rows into a slice of Prediction.
func scanPredictions(rows driver.Rows) ([]*domain.Prediction, error) {
	var result []*domain.Prediction

	for rows.Next() {
		var (
			p       domain.Prediction
			class   uint8
			horizon uint8
		)
		err := rows.Scan(
			&p.RunID,
			&p.StationID,
			&class,
			&p.AvailabilityPrediction,
			&p.ConfidenceGreen,
			&p.ConfidenceYellow,
			&p.ConfidenceRed,
			&p.PredictionTime,
			&horizon,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		p.PredictedAvailabilityClass, err = domain.ParseClass(int(class))
		if err != nil {
			return nil, fmt.Errorf("prediction %s/%s: %w", p.RunID, p.StationID, err)
		}
		p.HorizonHours = int(horizon)
		p.PredictionTime = p.PredictionTime.UTC()
		p.CreatedAt = p.CreatedAt.UTC()
		result = append(result, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prediction rows: %w", err)
	}
	return result, nil
}
