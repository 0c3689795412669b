package optimization

import (
	"github.com/vqtran/fundfolio/internal/modules/metrics"
)

// Objective weighting and the linear score maps. Sharpe in [0, 3] maps to
// [0, 1]; max drawdown in [-20%, -5%] maps to [0, 1] with a less negative
// drawdown scoring higher. Both are clamped outside their ranges.
const (
	sharpeWeight   = 0.8
	drawdownWeight = 0.2

	sharpeCeiling   = 3.0
	drawdownFloor   = -0.20
	drawdownCeiling = -0.05
)

// SharpeScore maps a Sharpe ratio onto [0, 1].
func SharpeScore(sharpe float64) float64 {
	if sharpe >= sharpeCeiling {
		return 1
	}
	if sharpe <= 0 {
		return 0
	}
	return sharpe / sharpeCeiling
}

// DrawdownScore maps a max drawdown onto [0, 1].
func DrawdownScore(maxDrawdown float64) float64 {
	if maxDrawdown >= drawdownCeiling {
		return 1
	}
	if maxDrawdown <= drawdownFloor {
		return 0
	}
	return (-drawdownFloor + maxDrawdown) / (-drawdownFloor + drawdownCeiling)
}

// Score combines the Sharpe and drawdown scores into the scalar objective.
// An undefined Sharpe (flat equity curve) contributes zero rather than
// failing the trial: a strategy that never trades is a valid, poor outcome.
func Score(report *metrics.Report) float64 {
	var sharpe float64
	if report.Sharpe != nil {
		sharpe = SharpeScore(*report.Sharpe)
	}
	return sharpeWeight*sharpe + drawdownWeight*DrawdownScore(report.MaxDrawdown)
}
