package model

import "fmt"

// Params configures boosting. Zero values are replaced by DefaultParams in
// Fit, except Subsample and ColsampleByTree where zero also means 1.
type Params struct {
	MaxDepth            int     `json:"max_depth"`
	LearningRate        float64 `json:"learning_rate"`
	NEstimators         int     `json:"n_estimators"`
	Subsample           float64 `json:"subsample"`
	ColsampleByTree     float64 `json:"colsample_bytree"`
	MinChildWeight      float64 `json:"min_child_weight"`
	Lambda              float64 `json:"reg_lambda"`
	MaxBins             int     `json:"max_bin"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds,omitempty"`
	Seed                int64   `json:"random_state"`
}

// DefaultParams are the untuned training parameters.
func DefaultParams() Params {
	return Params{
		MaxDepth:        6,
		LearningRate:    0.1,
		NEstimators:     200,
		Subsample:       1,
		ColsampleByTree: 1,
		MinChildWeight:  1,
		Lambda:          1,
		MaxBins:         64,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.NEstimators <= 0 {
		p.NEstimators = d.NEstimators
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = 1
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		p.ColsampleByTree = 1
	}
	if p.MinChildWeight <= 0 {
		p.MinChildWeight = d.MinChildWeight
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	if p.MaxBins < 2 || p.MaxBins > 256 {
		p.MaxBins = d.MaxBins
	}
	return p
}

// String renders the tuned fields for logs.
func (p Params) String() string {
	return fmt.Sprintf("max_depth=%d learning_rate=%g n_estimators=%d", p.MaxDepth, p.LearningRate, p.NEstimators)
}
