package testing

import (
	"time"

	"github.com/vqtran/fundfolio/internal/domain"
)

// Day builds a UTC-midnight date, the normal form for all table keys.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Score builds a monthly score row with every factor set to v. Tests that
// care about a single factor override it on the returned value.
func Score(symbol string, year, month int, v float64) domain.MonthlyScore {
	return domain.MonthlyScore{
		Symbol:             symbol,
		Year:               year,
		Month:              month,
		FundNetBuying:      v,
		NumberFundHoldings: v,
		NetFundChange:      v,
		ROE:                v,
		DebtToEquity:       v,
		RevenueGrowth:      v,
		CashRatio:          v,
		PE:                 v,
	}
}

// PriceSeries builds consecutive weekday price rows for one symbol starting
// at start, one row per price value.
func PriceSeries(symbol string, start time.Time, prices ...float64) []domain.DailyPrice {
	rows := make([]domain.DailyPrice, 0, len(prices))
	day := start
	for _, p := range prices {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		rows = append(rows, domain.DailyPrice{Date: day, Symbol: symbol, Price: p})
		day = day.AddDate(0, 0, 1)
	}
	return rows
}

// EquityCurve builds an equity point series over consecutive days, all cash.
func EquityCurve(start time.Time, values ...float64) []domain.EquityPoint {
	curve := make([]domain.EquityPoint, len(values))
	for i, v := range values {
		curve[i] = domain.EquityPoint{Date: start.AddDate(0, 0, i), Equity: v, Cash: v}
	}
	return curve
}
