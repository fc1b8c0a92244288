package domain

import "time"

// Prediction is a forecast of one station's availability class at the horizon.
// Corresponds to predictions table in ClickHouse.
type Prediction struct {
	RunID                      string            `json:"run_id"`                       // inference run identifier
	StationID                  string            `json:"station_id"`                   // station identity
	PredictedAvailabilityClass AvailabilityClass `json:"predicted_availability_class"` // 0/1/2
	AvailabilityPrediction     string            `json:"availability_prediction"`      // green | yellow | red
	ConfidenceGreen            float64           `json:"confidence_green"`
	ConfidenceYellow           float64           `json:"confidence_yellow"`
	ConfidenceRed              float64           `json:"confidence_red"`
	PredictionTime             time.Time         `json:"prediction_time"` // time the forecast refers to
	HorizonHours               int               `json:"horizon_hours"`
	CreatedAt                  time.Time         `json:"created_at"`
}
