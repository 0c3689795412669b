package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for simulation and optimization runs.
//
// Recoverable, day- or month-local conditions (ErrInsufficientUniverse,
// ErrMissingPrice) are handled inside the simulator and only surface as
// logged events. Run-invalidating conditions (ErrInvalidParameters,
// ErrDateRangeEmpty) abort the run and are surfaced to the caller so that
// a crashed trial is never mistaken for a valid one with a poor objective.
var (
	// ErrInsufficientUniverse - no eligible symbols for a rebalance month
	ErrInsufficientUniverse = errors.New("insufficient universe")

	// ErrMissingPrice - a symbol has no price on a required day
	ErrMissingPrice = errors.New("missing price")

	// ErrUndefinedMetric - a ratio metric has a zero denominator
	ErrUndefinedMetric = errors.New("undefined metric")

	// ErrDateRangeEmpty - the requested window contains no trading days
	ErrDateRangeEmpty = errors.New("date range contains no trading days")
)

// InvalidParametersError reports a malformed parameter vector. It is fatal
// for the run (or trial) that submitted it.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Reason)
}

// IsInvalidParameters reports whether err wraps an InvalidParametersError.
func IsInvalidParameters(err error) bool {
	var ipe *InvalidParametersError
	return errors.As(err, &ipe)
}
