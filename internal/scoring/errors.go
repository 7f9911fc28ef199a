package scoring

import "errors"

var (
	// ErrInvalidInput is returned before any scoring work when a sequence is
	// empty or the config is inconsistent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrComputeBudgetExceeded is returned when a comparison is larger or
	// slower than the comparator's configured budget.
	ErrComputeBudgetExceeded = errors.New("compute budget exceeded")

	errInsufficientLandmarks = errors.New("insufficient visible landmarks")
)
