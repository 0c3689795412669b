// Package utils provides small shared helpers.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold marks operations worth flagging; a full in-sample backtest
// normally finishes well under it.
const slowThreshold = 30 * time.Second

// OperationTimer measures an operation for defer use:
//
//	defer utils.OperationTimer("backtest_run", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		evt := log.Debug()
		if elapsed > slowThreshold {
			evt = log.Warn()
		}
		evt.Str("operation", operation).Dur("elapsed", elapsed).Msg("Operation timed")
	}
}
