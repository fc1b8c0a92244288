package selection

import "errors"

var (
	// ErrNotFitted is returned when Apply is called without fitted state.
	ErrNotFitted = errors.New("not fitted")

	// ErrColumnMismatch is returned when the scaler sees a column set that
	// differs from the one it was fitted on.
	ErrColumnMismatch = errors.New("column set differs from fitted columns")

	// ErrPlaceholderLabels is returned when fitting on a placeholder target.
	ErrPlaceholderLabels = errors.New("placeholder target cannot be used as labels")

	// ErrLabelMismatch is returned when labels do not match the frame rows.
	ErrLabelMismatch = errors.New("label count does not match rows")
)
