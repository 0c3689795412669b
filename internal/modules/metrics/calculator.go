// Package metrics reduces an equity trajectory into standard performance
// statistics and a benchmark comparison.
package metrics

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/vqtran/fundfolio/internal/domain"
)

// periodsPerYear is the trading-day annualization factor for return and
// volatility statistics. CAGR uses calendar years (365.25 days) instead.
const periodsPerYear = 252.0

const daysPerYear = 365.25

// Config holds metric conventions.
type Config struct {
	// RiskFreeRate is the annualized risk-free rate subtracted in Sharpe
	// and Sortino. Zero by convention unless configured otherwise.
	RiskFreeRate float64
}

// Report is the metrics record for one equity curve. Ratio metrics with a
// zero denominator are nil rather than an error: an undefined metric is a
// reportable outcome, not a crash.
type Report struct {
	ROI              float64  `json:"roi"`
	TotalPL          float64  `json:"total_pnl"`
	CAGR             float64  `json:"cagr"`
	Volatility       *float64 `json:"volatility"`
	Sharpe           *float64 `json:"sharpe"`
	Sortino          *float64 `json:"sortino"`
	Calmar           *float64 `json:"calmar"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	MaxTimeToRecover int      `json:"max_time_to_recover_days"`
	Unrecovered      bool     `json:"unrecovered"`
	WinRate          *float64 `json:"win_rate"`
	ExpectedReturn   *float64 `json:"expected_return"`
	TradeCount       int      `json:"trade_count"`
}

// Calculator computes performance reports from equity curves.
type Calculator struct {
	cfg Config
}

// NewCalculator creates a new metrics calculator
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Report computes the full metrics record for an equity curve and its
// closed-trade log. The curve must be non-empty and ordered by date.
func (c *Calculator) Report(curve []domain.EquityPoint, trades []domain.Trade) (*Report, error) {
	if len(curve) == 0 {
		return nil, fmt.Errorf("empty equity curve")
	}
	initial := curve[0].Equity
	final := curve[len(curve)-1].Equity
	if initial <= 0 {
		return nil, fmt.Errorf("non-positive initial equity %.4f", initial)
	}

	r := &Report{
		ROI:        final/initial - 1,
		TotalPL:    final - initial,
		TradeCount: len(trades),
	}

	elapsedDays := curve[len(curve)-1].Date.Sub(curve[0].Date).Hours() / 24
	if elapsedDays > 0 {
		r.CAGR = math.Pow(final/initial, daysPerYear/elapsedDays) - 1
	}

	returns := dailyReturns(curve)
	if len(returns) > 1 {
		meanAnnual := stat.Mean(returns, nil)*periodsPerYear - c.cfg.RiskFreeRate
		vol := stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear)
		r.Volatility = &vol
		if vol > 0 {
			sharpe := meanAnnual / vol
			r.Sharpe = &sharpe
		}
		if down := downsideDeviation(returns); down > 0 {
			sortino := meanAnnual / down
			r.Sortino = &sortino
		}
	}

	r.MaxDrawdown, r.MaxTimeToRecover, r.Unrecovered = drawdownStats(curve)
	if r.MaxDrawdown < 0 {
		calmar := r.CAGR / math.Abs(r.MaxDrawdown)
		r.Calmar = &calmar
	}

	if len(trades) > 0 {
		r.WinRate, r.ExpectedReturn = tradeStats(trades)
	}

	return r, nil
}

// dailyReturns computes simple percentage changes of the equity curve.
func dailyReturns(curve []domain.EquityPoint) []float64 {
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	return returns
}

// downsideDeviation is the annualized standard deviation of the negative
// daily returns only. Zero when fewer than two are negative.
func downsideDeviation(returns []float64) float64 {
	var negative []float64
	for _, ret := range returns {
		if ret < 0 {
			negative = append(negative, ret)
		}
	}
	if len(negative) < 2 {
		return 0
	}
	return stat.StdDev(negative, nil) * math.Sqrt(periodsPerYear)
}

// drawdownStats computes the maximum drawdown, the longest trough-to-recovery
// span in calendar days, and whether that longest span never recovered
// within the sample.
func drawdownStats(curve []domain.EquityPoint) (maxDrawdown float64, maxRecoverDays int, unrecovered bool) {
	peak := curve[0].Equity
	inDrawdown := false
	var trough domain.EquityPoint

	record := func(span int, open bool) {
		if span > maxRecoverDays {
			maxRecoverDays = span
			unrecovered = open
		}
	}

	for _, p := range curve {
		if p.Equity >= peak {
			if inDrawdown {
				record(daysBetween(trough.Date, p.Date), false)
				inDrawdown = false
			}
			peak = p.Equity
			continue
		}

		dd := p.Equity/peak - 1
		if dd < maxDrawdown {
			maxDrawdown = dd
		}
		if !inDrawdown || p.Equity < trough.Equity {
			trough = p
			inDrawdown = true
		}
	}

	if inDrawdown {
		record(daysBetween(trough.Date, curve[len(curve)-1].Date), true)
	}
	return maxDrawdown, maxRecoverDays, unrecovered
}

// tradeStats computes win rate and expected return from the closed-trade log.
func tradeStats(trades []domain.Trade) (*float64, *float64) {
	var winners int
	var sumWinners, sumLosers float64
	for _, t := range trades {
		if t.RealizedPL > 0 {
			winners++
			sumWinners += t.RealizedPL
		} else {
			sumLosers += math.Abs(t.RealizedPL)
		}
	}

	winRate := float64(winners) / float64(len(trades))

	var avgWin, avgLoss float64
	if winners > 0 {
		avgWin = sumWinners / float64(winners)
	}
	if losers := len(trades) - winners; losers > 0 {
		avgLoss = sumLosers / float64(losers)
	}
	expected := winRate*avgWin - (1-winRate)*avgLoss
	return &winRate, &expected
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
