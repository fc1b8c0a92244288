package preprocess

import "errors"

var (
	// ErrNotFitted is returned by Transform when no fitted state is given.
	ErrNotFitted = errors.New("preprocessor not fitted: call FitTransform first")

	// ErrAlreadyFitted is returned by a second FitTransform on the same instance.
	ErrAlreadyFitted = errors.New("preprocessor already fitted")

	// ErrNoData is returned when there are no rows to process.
	ErrNoData = errors.New("no data available")

	// ErrNoSource is returned by New without a time series source.
	ErrNoSource = errors.New("time series source is required")
)
