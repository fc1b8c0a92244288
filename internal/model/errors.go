package model

import "errors"

var (
	// ErrNotTrained is returned when predicting with a classifier that has no trees.
	ErrNotTrained = errors.New("model not trained")

	// ErrEmptyInput is returned when fitting on zero rows.
	ErrEmptyInput = errors.New("empty training input")

	// ErrShapeMismatch is returned when rows, labels or feature counts disagree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidLabel is returned for labels outside [0, NumClasses).
	ErrInvalidLabel = errors.New("label out of range")
)
