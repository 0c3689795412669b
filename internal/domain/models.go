// Package domain provides core domain models and types.
package domain

import "time"

// AllocationMethod selects how target weights are derived from scores.
type AllocationMethod string

const (
	// AllocationEqual assigns 1/N to every selected symbol
	AllocationEqual AllocationMethod = "equal"
	// AllocationLinear assigns weights proportional to (shifted) scores
	AllocationLinear AllocationMethod = "linear"
	// AllocationSoftmax assigns weights proportional to exp(score)
	AllocationSoftmax AllocationMethod = "softmax"
)

// Valid reports whether the method is one of the known variants.
func (m AllocationMethod) Valid() bool {
	switch m {
	case AllocationEqual, AllocationLinear, AllocationSoftmax:
		return true
	}
	return false
}

// MonthlyScore is one row of the preprocessed monthly score table,
// keyed by (symbol, year, month). Produced upstream, consumed read-only.
type MonthlyScore struct {
	Symbol             string  `json:"symbol"`
	Year               int     `json:"year"`
	Month              int     `json:"month"`
	FundNetBuying      float64 `json:"fund_net_buying"`
	NumberFundHoldings float64 `json:"number_fund_holdings"`
	NetFundChange      float64 `json:"net_fund_change"`
	ROE                float64 `json:"roe"`
	DebtToEquity       float64 `json:"debt_to_equity"`
	RevenueGrowth      float64 `json:"revenue_growth"`
	CashRatio          float64 `json:"cash_ratio"`
	PE                 float64 `json:"pe"`
}

// DailyPrice is one row of the daily price table, keyed by (date, symbol).
// The simulator consumes date, symbol and price; quantity is carried for
// completeness of the upstream extract.
type DailyPrice struct {
	Date     time.Time `json:"date"`
	Symbol   string    `json:"symbol"`
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
}

/// Position is an open holding. Owned exclusively by the portfolio state:
// created on a buy, destroyed on a full liquidation. There are no partial
// sells in this strategy.
type Position struct {
	Symbol         string    `json:"symbol"`
	Shares         float64   `json:"shares"`
	EntryPrice     float64   `json:"entry_price"`
	EntryDate      time.Time `json:"entry_date"`
	HighWaterPrice float64   `json:"high_water_price"`
	StopPrice      float64   `json:"stop_price"`
	TargetPrice    float64   `json:"target_price"`
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitRebalance  ExitReason = "rebalance"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// Trade is one closed round trip in the trade log.
type Trade struct {
	Symbol     string     `json:"symbol"`
	Shares     float64    `json:"shares"`
	EntryDate  time.Time  `json:"entry_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitDate   time.Time  `json:"exit_date"`
	ExitPrice  float64    `json:"exit_price"`
	RealizedPL float64    `json:"realized_pl"`
	Reason     ExitReason `json:"reason"`
}

// EquityPoint is one mark-to-market observation of the portfolio.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
	Cash   float64   `json:"cash"`
}

// SimEventKind classifies recoverable events logged during a simulation run.
type SimEventKind string

const (
	// EventInsufficientUniverse - no eligible symbols for a rebalance month
	EventInsufficientUniverse SimEventKind = "insufficient_universe"
	// EventMissingPrice - a selected symbol had no price on the buy day
	EventMissingPrice SimEventKind = "missing_price"
	// EventDataGap - every selected symbol lacked a price; cycle held cash
	EventDataGap SimEventKind = "data_gap"
)

// SimEvent is a recoverable anomaly recorded by the simulator. These are
// surfaced on the result so the optimizer can distinguish (and optionally
// penalize) missing-data cycles from genuinely poor performance.
type SimEvent struct {
	Date   time.Time    `json:"date"`
	Kind   SimEventKind `json:"kind"`
	Symbol string       `json:"symbol,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

// BacktestResult is the immutable output of one simulation run.
type BacktestResult struct {
	ID          string        `json:"id"`
	Params      Parameters    `json:"params"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	EquityCurve []EquityPoint `json:"equity_curve"`
	Trades      []Trade       `json:"trades"`
	Events      []SimEvent    `json:"events"`
}
