// Package risk evaluates stop-loss and take-profit triggers for open
// positions.
package risk

import (
	"github.com/vqtran/fundfolio/internal/domain"
)

// Signal is the outcome of one daily risk evaluation.
type Signal int

const (
	Hold Signal = iota
	StopLoss
	TakeProfit
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case StopLoss:
		return "stop_loss"
	case TakeProfit:
		return "take_profit"
	default:
		return "hold"
	}
}

// Manager checks positions against a trailing stop-loss and a fixed
// take-profit threshold.
type Manager struct {
	trailingStopLoss float64 // fraction below the high-water price
	takeProfit       float64 // fraction above the entry price
}

// NewManager creates a new risk manager
func NewManager(trailingStopLoss, takeProfit float64) *Manager {
	return &Manager{
		trailingStopLoss: trailingStopLoss,
		takeProfit:       takeProfit,
	}
}

// Check evaluates one position against the current price, updating the
// position's high-water mark and derived threshold prices as a side effect.
//
// Take-profit is evaluated before stop-loss: when both thresholds are
// mathematically satisfiable on the same evaluation, the profitable exit
// wins. Exactly one signal fires per evaluation.
func (m *Manager) Check(pos *domain.Position, currentPrice float64) Signal {
	if currentPrice > pos.HighWaterPrice {
		pos.HighWaterPrice = currentPrice
	}
	pos.TargetPrice = pos.EntryPrice * (1 + m.takeProfit)
	pos.StopPrice = pos.HighWaterPrice * (1 - m.trailingStopLoss)

	if currentPrice >= pos.TargetPrice {
		return TakeProfit
	}
	if currentPrice <= pos.StopPrice {
		return StopLoss
	}
	return Hold
}
