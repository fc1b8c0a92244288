package preprocess

import (
	"time"

	"station-forecast-lab/internal/selection"
)

// FittedPipelineState is everything FitTransform learned. It is never
// modified after FitTransform returns and is passed explicitly to Transform.
type FittedPipelineState struct {
	Cleaning       *CleaningState           `json:"cleaning"`
	Scaler         *selection.ScalerState   `json:"scaler"`
	Selector       *selection.SelectorState `json:"selector"`
	FeatureColumns []string                 `json:"feature_columns"` // model input order
	NFeatures      int                      `json:"n_features"`      // requested k
	FittedAt       time.Time                `json:"fitted_at"`
}

// LabelEncoders returns the categorical vocabularies, column to ordered values.
// A value's code is its index.
func (s *FittedPipelineState) LabelEncoders() map[string][]string {
	if s == nil || s.Cleaning == nil {
		return nil
	}
	out := make(map[string][]string, len(s.Cleaning.Vocabularies))
	for col, vocab := range s.Cleaning.Vocabularies {
		out[col] = append([]string(nil), vocab...)
	}
	return out
}
