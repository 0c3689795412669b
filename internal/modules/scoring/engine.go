// Package scoring converts monthly fundamentals/ownership records into
// ranked per-symbol scores.
//
// Factor values are min-max normalized across the month's universe before
// weighting, so scores are comparable within a month but not across months.
// Each weight group is completed by its reserved remainder field
// (net_fund_change for the institutional group, debt_to_equity for the
// financial group), which keeps every group summing to exactly 1.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/vqtran/fundfolio/internal/domain"
)

// maxDebtToEquity caps the D/E ratio before normalization. Extreme leverage
// readings otherwise dominate the min-max range.
const maxDebtToEquity = 2.0

// ScoredSymbol is one entry of a monthly ranking.
type ScoredSymbol struct {
	Symbol        string  `json:"symbol"`
	Score         float64 `json:"score"`
	Institutional float64 `json:"inst_score"`
	Financial     float64 `json:"fin_score"`
}

// Engine scores and ranks a monthly universe.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new scoring engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("service", "scoring").Logger()}
}

// Rank scores every symbol in the month's record set and returns the full
// ranking, descending by score with ties broken by ascending symbol.
// Returns domain.ErrInsufficientUniverse when the record set is empty.
func (e *Engine) Rank(records []domain.MonthlyScore, params domain.Parameters) ([]ScoredSymbol, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no eligible symbols in month: %w", domain.ErrInsufficientUniverse)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	n := len(records)

	// Institutional factors
	fundNetBuying := column(records, func(r domain.MonthlyScore) float64 { return r.FundNetBuying })
	numHoldings := column(records, func(r domain.MonthlyScore) float64 { return r.NumberFundHoldings })
	netFundChange := column(records, func(r domain.MonthlyScore) float64 { return r.NetFundChange })

	// Financial factors. D/E is capped, and P/E enters through the growth-
	// adjusted pe score (revenue_growth - pe) / revenue_growth, floored at 0.
	roe := column(records, func(r domain.MonthlyScore) float64 { return r.ROE })
	growth := column(records, func(r domain.MonthlyScore) float64 { return r.RevenueGrowth })
	d2e := column(records, func(r domain.MonthlyScore) float64 {
		return clamp(r.DebtToEquity, 0, maxDebtToEquity)
	})
	peScore := column(records, func(r domain.MonthlyScore) float64 {
		if r.RevenueGrowth == 0 {
			return 0
		}
		return math.Max(0, (r.RevenueGrowth-r.PE)/r.RevenueGrowth)
	})

	for _, col := range [][]float64{fundNetBuying, numHoldings, netFundChange, roe, growth, d2e, peScore} {
		normalize(col)
	}

	ranking := make([]ScoredSymbol, n)
	for i, rec := range records {
		inst := params.FundNetBuying*fundNetBuying[i] +
			params.NumberFundHoldings*numHoldings[i] +
			params.NetFundChange()*netFundChange[i]
		fin := params.ROE*roe[i] +
			params.RevenueGrowth*growth[i] +
			params.PE*peScore[i] +
			params.DebtToEquity()*d2e[i]
		inst = math.Max(0, inst)
		fin = math.Max(0, fin)

		ranking[i] = ScoredSymbol{
			Symbol:        rec.Symbol,
			Institutional: inst,
			Financial:     fin,
			Score:         params.InstitutionalWeight*inst + (1-params.InstitutionalWeight)*fin,
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Score != ranking[j].Score {
			return ranking[i].Score > ranking[j].Score
		}
		return ranking[i].Symbol < ranking[j].Symbol
	})
	return ranking, nil
}

// Select ranks the month and keeps the top params.NStocks symbols.
func (e *Engine) Select(records []domain.MonthlyScore, params domain.Parameters) ([]ScoredSymbol, error) {
	ranking, err := e.Rank(records, params)
	if err != nil {
		return nil, err
	}
	if len(ranking) > params.NStocks {
		ranking = ranking[:params.NStocks]
	}
	return ranking, nil
}

func column(records []domain.MonthlyScore, get func(domain.MonthlyScore) float64) []float64 {
	col := make([]float64, len(records))
	for i, r := range records {
		col[i] = get(r)
	}
	return col
}

// normalize rescales col to [0, 1] in place. A degenerate column
// (max == min) normalizes to all zeros.
func normalize(col []float64) {
	lo, hi := floats.Min(col), floats.Max(col)
	span := hi - lo
	for i := range col {
		if span == 0 {
			col[i] = 0
			continue
		}
		col[i] = (col[i] - lo) / span
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
