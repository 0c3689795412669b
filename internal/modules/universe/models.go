// Package universe provides read-only access to the preprocessed market
// data tables: monthly fund/fundamental scores and daily prices.
package universe

import (
	"sort"
	"time"

	"github.com/vqtran/fundfolio/internal/domain"
)

// MonthKey identifies one calendar month of the score table.
type MonthKey struct {
	Year  int
	Month int
}

// Before reports whether k is strictly earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// ScoreTable is an in-memory snapshot of the monthly score table. It is
// immutable after load and safe to share across concurrent simulation runs.
type ScoreTable struct {
	byMonth map[MonthKey][]domain.MonthlyScore
}

// NewScoreTable builds a table from rows. Rows within a month are ordered by
// symbol so downstream ranking is reproducible.
func NewScoreTable(rows []domain.MonthlyScore) *ScoreTable {
	byMonth := make(map[MonthKey][]domain.MonthlyScore)
	for _, r := range rows {
		k := MonthKey{Year: r.Year, Month: r.Month}
		byMonth[k] = append(byMonth[k], r)
	}
	for k := range byMonth {
		rows := byMonth[k]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	}
	return &ScoreTable{byMonth: byMonth}
}

// Month returns the records for one month, or nil when the month has no
// coverage (data not yet released upstream).
func (t *ScoreTable) Month(k MonthKey) []domain.MonthlyScore {
	return t.byMonth[k]
}

// HasMonth reports whether the month has any coverage.
func (t *ScoreTable) HasMonth(k MonthKey) bool {
	return len(t.byMonth[k]) > 0
}

// Months returns all covered months in ascending order.
func (t *ScoreTable) Months() []MonthKey {
	keys := make([]MonthKey, 0, len(t.byMonth))
	for k := range t.byMonth {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// DateKey formats a date the way price maps are keyed.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// PriceTable is an in-memory snapshot of daily closing prices over a date
// range. Immutable after load; the trading calendar is the sorted union of
// all dates with at least one price.
type PriceTable struct {
	days   []time.Time
	prices map[string]map[string]float64 // symbol -> date key -> price
}

// NewPriceTable builds a table from rows.
func NewPriceTable(rows []domain.DailyPrice) *PriceTable {
	prices := make(map[string]map[string]float64)
	daySet := make(map[string]time.Time)
	for _, r := range rows {
		key := DateKey(r.Date)
		m, ok := prices[r.Symbol]
		if !ok {
			m = make(map[string]float64)
			prices[r.Symbol] = m
		}
		m[key] = r.Price
		daySet[key] = r.Date
	}
	days := make([]time.Time, 0, len(daySet))
	for _, d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return &PriceTable{days: days, prices: prices}
}

// TradingDays returns the trading calendar within [start, end], inclusive.
func (t *PriceTable) TradingDays(start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range t.days {
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Price returns the closing price of symbol on day.
func (t *PriceTable) Price(symbol string, day time.Time) (float64, bool) {
	m, ok := t.prices[symbol]
	if !ok {
		return 0, false
	}
	p, ok := m[DateKey(day)]
	return p, ok
}

// Symbols returns all symbols present in the table.
func (t *PriceTable) Symbols() []string {
	syms := make([]string, 0, len(t.prices))
	for s := range t.prices {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}
