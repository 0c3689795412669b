// Package simulation implements the day-by-day backtest state machine:
// scheduled monthly rebalance cycles, daily risk-management exits, and
// mark-to-market equity tracking.
package simulation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/allocation"
	"github.com/vqtran/fundfolio/internal/modules/risk"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
	"github.com/vqtran/fundfolio/internal/modules/universe"
)

// phase is the simulator's scheduling state. Idle outside rebalance cycles;
// a cycle is the two-day Liquidating -> Entering sequence.
type phase int

const (
	phaseIdle phase = iota
	phaseEntering
)

// Config holds simulation behaviour that is not part of the optimized
// parameter vector.
type Config struct {
	InitialBalance float64
	TradingFee     float64 // proportional, charged on both sides
	RebalanceDay   int     // earliest calendar day-of-month for a cycle
}

// DefaultRebalanceDay is the calendar gate for scheduling a cycle: the
// first trading day on or after this day of the month, provided the month's
// score data has been released.
const DefaultRebalanceDay = 20

// Simulator walks a daily price series and maintains portfolio state.
// A run is a sequential fold over the trading calendar; the simulator itself
// is stateless across runs and safe to share between concurrent trials.
type Simulator struct {
	cfg     Config
	scoring *scoring.Engine
	log     zerolog.Logger
}

// New creates a new simulator
func New(cfg Config, scoringEngine *scoring.Engine, log zerolog.Logger) *Simulator {
	if cfg.RebalanceDay == 0 {
		cfg.RebalanceDay = DefaultRebalanceDay
	}
	return &Simulator{
		cfg:     cfg,
		scoring: scoringEngine,
		log:     log.With().Str("service", "simulation").Logger(),
	}
}

// Run executes one backtest over [start, end].
//
// Failure semantics: a malformed parameter vector or an empty trading
// calendar aborts the run; everything local to a day or symbol (missing
// prices, empty monthly universe) is recovered in place and surfaced as
// events on the result.
func (s *Simulator) Run(
	params domain.Parameters,
	scores *universe.ScoreTable,
	prices *universe.PriceTable,
	start, end time.Time,
) (*domain.BacktestResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	days := prices.TradingDays(start, end)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: %s to %s",
			domain.ErrDateRangeEmpty, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	liquidationDays := s.scheduleCycles(days)
	riskMgr := risk.NewManager(params.TrailingStopLoss, params.TakeProfit)
	state := NewState(s.cfg.InitialBalance)

	var events []domain.SimEvent
	current := phaseIdle
	var cycleMonth universe.MonthKey

	for _, day := range days {
		// Refresh known prices for held symbols, then run risk checks.
		// Risk exits take priority over any scheduled rebalance action today.
		exitedToday := s.applyRiskExits(state, riskMgr, prices, day)

		switch {
		case current == phaseEntering:
			events = append(events, s.enterPositions(state, params, scores, prices, day, cycleMonth, exitedToday)...)
			current = phaseIdle

		default:
			if month, ok := liquidationDays[universe.DateKey(day)]; ok {
				s.liquidateAll(state, prices, day)
				cycleMonth = month
				current = phaseEntering
			}
		}

		// Equity is recorded once per trading day regardless of state.
		state.MarkToMarket(day)
	}

	// Positions still open at termination stay marked-to-market, not sold.
	return &domain.BacktestResult{
		Params:      params,
		StartDate:   start,
		EndDate:     end,
		EquityCurve: state.Equity,
		Trades:      state.Trades,
		Events:      events,
	}, nil
}

// scheduleCycles maps each scheduled liquidation date to its cycle month:
// the first trading day of a month on or after the rebalance-day gate.
// The data-availability gate (fund disclosures plus prior-quarter
// fundamentals) is month-granular here because the upstream preprocess only
// emits a month's score rows once both sources are published.
func (s *Simulator) scheduleCycles(days []time.Time) map[string]universe.MonthKey {
	schedule := make(map[string]universe.MonthKey)
	seen := make(map[universe.MonthKey]bool)
	for _, day := range days {
		if day.Day() < s.cfg.RebalanceDay {
			continue
		}
		month := universe.MonthKey{Year: day.Year(), Month: int(day.Month())}
		if seen[month] {
			continue
		}
		seen[month] = true
		schedule[universe.DateKey(day)] = month
	}
	return schedule
}

// applyRiskExits evaluates every open position and liquidates those whose
// stop-loss or take-profit fired. Returns the set of symbols exited today;
// those are barred from same-day re-entry.
func (s *Simulator) applyRiskExits(
	state *State,
	riskMgr *risk.Manager,
	prices *universe.PriceTable,
	day time.Time,
) map[string]bool {
	exited := make(map[string]bool)
	for _, sym := range state.OpenSymbols() {
		if p, ok := prices.Price(sym, day); ok {
			state.ObservePrice(sym, p)
		}
		price, ok := state.LastPrice(sym)
		if !ok {
			continue
		}

		pos := state.Positions[sym]
		var reason domain.ExitReason
		switch riskMgr.Check(pos, price) {
		case risk.TakeProfit:
			reason = domain.ExitTakeProfit
		case risk.StopLoss:
			reason = domain.ExitStopLoss
		default:
			continue
		}

		if _, err := state.Sell(sym, day, price, s.cfg.TradingFee, reason); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("Risk exit failed")
			continue
		}
		exited[sym] = true
		s.log.Debug().
			Str("symbol", sym).
			Str("reason", string(reason)).
			Float64("price", price).
			Msg("Risk exit")
	}
	return exited
}

// liquidateAll sells every open position at today's (or last known) price.
// Day 1 of a rebalance cycle.
func (s *Simulator) liquidateAll(state *State, prices *universe.PriceTable, day time.Time) {
	for _, sym := range state.OpenSymbols() {
		if p, ok := prices.Price(sym, day); ok {
			state.ObservePrice(sym, p)
		}
		price, ok := state.LastPrice(sym)
		if !ok {
			continue
		}
		if _, err := state.Sell(sym, day, price, s.cfg.TradingFee, domain.ExitRebalance); err != nil {
			s.log.Error().Err(err).Str("symbol", sym).Msg("Scheduled liquidation failed")
		}
	}
}

// enterPositions runs scoring, selection and allocation, then buys.
// Day 2 of a rebalance cycle.
func (s *Simulator) enterPositions(
	state *State,
	params domain.Parameters,
	scores *universe.ScoreTable,
	prices *universe.PriceTable,
	day time.Time,
	month universe.MonthKey,
	exitedToday map[string]bool,
) []domain.SimEvent {
	var events []domain.SimEvent

	selected, err := s.scoring.Select(scores.Month(month), params)
	if err != nil {
		// Empty monthly universe: hold 100% cash for this cycle.
		events = append(events, domain.SimEvent{
			Date:   day,
			Kind:   domain.EventInsufficientUniverse,
			Detail: fmt.Sprintf("%d-%02d", month.Year, month.Month),
		})
		return events
	}

	weights, err := allocation.Allocate(selected, params.Allocation)
	if err != nil {
		s.log.Error().Err(err).Msg("Allocation failed")
		return events
	}

	// Drop symbols without a buy-day price (or stopped out this morning)
	// and redistribute their weight over what remains.
	buyable := make(map[string]float64, len(weights))
	for sym, w := range weights {
		if exitedToday[sym] {
			continue
		}
		if _, ok := prices.Price(sym, day); !ok {
			events = append(events, domain.SimEvent{Date: day, Kind: domain.EventMissingPrice, Symbol: sym})
			continue
		}
		buyable[sym] = w
	}
	buyable = allocation.Renormalize(buyable)
	if buyable == nil {
		events = append(events, domain.SimEvent{
			Date:   day,
			Kind:   domain.EventDataGap,
			Detail: fmt.Sprintf("no buyable selection for %d-%02d", month.Year, month.Month),
		})
		return events
	}

	// Spend cash in selection order for determinism.
	investable := state.Cash
	for _, sel := range selected {
		w, ok := buyable[sel.Symbol]
		if !ok {
			continue
		}
		price, _ := prices.Price(sel.Symbol, day)
		if err := state.Buy(sel.Symbol, day, price, investable*w, s.cfg.TradingFee); err != nil {
			s.log.Error().Err(err).Str("symbol", sel.Symbol).Msg("Buy failed")
		}
	}
	return events
}
