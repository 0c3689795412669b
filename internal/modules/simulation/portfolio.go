package simulation

import (
	"fmt"
	"sort"
	"time"

	"github.com/vqtran/fundfolio/internal/domain"
)

// State is the mutable portfolio state threaded through one simulation run.
// It has a single logical owner (the Simulator); nothing mutates it
// concurrently within a run.
type State struct {
	Cash      float64
	Positions map[string]*domain.Position
	Trades    []domain.Trade
	Equity    []domain.EquityPoint

	// lastPrices carries the most recent known price per held symbol so
	// equity marks never gap when a price point is momentarily missing.
	lastPrices map[string]float64
}

// NewState creates a portfolio state with the given starting cash.
func NewState(initialBalance float64) *State {
	return &State{
		Cash:       initialBalance,
		Positions:  make(map[string]*domain.Position),
		lastPrices: make(map[string]float64),
	}
}

// Buy opens a position spending amount of cash at the given price. Shares
// are fractional; the proportional fee is paid out of the amount, so cash
// never goes negative.
func (s *State) Buy(symbol string, date time.Time, price, amount, fee float64) error {
	if amount <= 0 || amount > s.Cash+1e-9 {
		return fmt.Errorf("buy %s: amount %.4f exceeds cash %.4f", symbol, amount, s.Cash)
	}
	if price <= 0 {
		return fmt.Errorf("buy %s: non-positive price %.4f", symbol, price)
	}
	if _, exists := s.Positions[symbol]; exists {
		return fmt.Errorf("buy %s: position already open", symbol)
	}

	shares := amount / (price * (1 + fee))
	s.Cash -= amount
	if s.Cash < 0 {
		s.Cash = 0 // float dust from the tolerance above
	}
	s.Positions[symbol] = &domain.Position{
		Symbol:         symbol,
		Shares:         shares,
		EntryPrice:     price,
		EntryDate:      date,
		HighWaterPrice: price,
	}
	s.lastPrices[symbol] = price
	return nil
}

// Sell fully liquidates a position at the given price, realizing P&L into
// the trade log. Partial sells are not part of this strategy.
func (s *State) Sell(symbol string, date time.Time, price, fee float64, reason domain.ExitReason) (domain.Trade, error) {
	pos, ok := s.Positions[symbol]
	if !ok {
		return domain.Trade{}, fmt.Errorf("sell %s: no open position", symbol)
	}

	proceeds := pos.Shares * price * (1 - fee)
	costBasis := pos.Shares * pos.EntryPrice * (1 + fee)
	trade := domain.Trade{
		Symbol:     symbol,
		Shares:     pos.Shares,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   date,
		ExitPrice:  price,
		RealizedPL: proceeds - costBasis,
		Reason:     reason,
	}

	s.Cash += proceeds
	delete(s.Positions, symbol)
	s.Trades = append(s.Trades, trade)
	return trade, nil
}

// OpenSymbols returns the held symbols in deterministic (sorted) order.
func (s *State) OpenSymbols() []string {
	syms := make([]string, 0, len(s.Positions))
	for sym := range s.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// ObservePrice records a fresh price for a symbol.
func (s *State) ObservePrice(symbol string, price float64) {
	s.lastPrices[symbol] = price
}

// LastPrice returns the most recent known price for a symbol.
func (s *State) LastPrice(symbol string) (float64, bool) {
	p, ok := s.lastPrices[symbol]
	return p, ok
}

// MarkToMarket appends today's equity observation: cash plus every open
// position valued at its last known price.
func (s *State) MarkToMarket(date time.Time) domain.EquityPoint {
	equity := s.Cash
	for sym, pos := range s.Positions {
		equity += pos.Shares * s.lastPrices[sym]
	}
	point := domain.EquityPoint{Date: date, Equity: equity, Cash: s.Cash}
	s.Equity = append(s.Equity, point)
	return point
}
