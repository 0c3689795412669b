package simulation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
	"github.com/vqtran/fundfolio/internal/modules/universe"
)

func newSimulator(fee float64) *Simulator {
	return New(
		Config{InitialBalance: 1000, TradingFee: fee},
		scoring.NewEngine(zerolog.Nop()),
		zerolog.Nop(),
	)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// pricePoint is a (date, price) pair for building test price tables.
type pricePoint struct {
	date  string
	price float64
}

func priceRows(symbol string, points []pricePoint) []domain.DailyPrice {
	rows := make([]domain.DailyPrice, len(points))
	for i, p := range points {
		rows[i] = domain.DailyPrice{Date: date(p.date), Symbol: symbol, Price: p.price}
	}
	return rows
}

// constantPrices builds one row per weekday in [start, end] at a fixed price.
func constantPrices(symbol string, start, end string, price float64) []domain.DailyPrice {
	var rows []domain.DailyPrice
	for d := date(start); !d.After(date(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		rows = append(rows, domain.DailyPrice{Date: d, Symbol: symbol, Price: price})
	}
	return rows
}

func monthScores(symbols []string, year, month int) []domain.MonthlyScore {
	rows := make([]domain.MonthlyScore, len(symbols))
	for i, sym := range symbols {
		rows[i] = domain.MonthlyScore{
			Symbol: sym, Year: year, Month: month,
			FundNetBuying: 0.5, NumberFundHoldings: 0.5, NetFundChange: 0.5,
			ROE: 0.5, RevenueGrowth: 0.5, PE: 0.1,
		}
	}
	return rows
}

func TestRun_InvalidParameters(t *testing.T) {
	sim := newSimulator(0)
	params := domain.DefaultParameters()
	params.NStocks = 0

	_, err := sim.Run(params,
		universe.NewScoreTable(nil),
		universe.NewPriceTable(constantPrices("AAA", "2023-06-01", "2023-06-30", 100)),
		date("2023-06-01"), date("2023-06-30"))
	assert.Error(t, err)
}

func TestRun_EmptyDateRange(t *testing.T) {
	sim := newSimulator(0)

	_, err := sim.Run(domain.DefaultParameters(),
		universe.NewScoreTable(nil),
		universe.NewPriceTable(constantPrices("AAA", "2023-06-01", "2023-06-30", 100)),
		date("2024-01-01"), date("2024-01-31"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDateRangeEmpty)
}

func TestRun_MonthlyCycleAndRebalance(t *testing.T) {
	sim := newSimulator(0)
	symbols := []string{"AAA", "BBB", "CCC"}

	scores := universe.NewScoreTable(append(
		monthScores(symbols, 2023, 6),
		monthScores(symbols, 2023, 7)...,
	))
	var rows []domain.DailyPrice
	for _, sym := range symbols {
		rows = append(rows, constantPrices(sym, "2023-06-15", "2023-07-25", 100)...)
	}
	prices := universe.NewPriceTable(rows)

	result, err := sim.Run(domain.DefaultParameters(), scores, prices,
		date("2023-06-15"), date("2023-07-25"))
	require.NoError(t, err)

	// One equity point per trading day.
	days := prices.TradingDays(date("2023-06-15"), date("2023-07-25"))
	assert.Len(t, result.EquityCurve, len(days))

	// The June cycle enters on the day after June 20; the July cycle
	// liquidates those positions on July 20.
	require.Len(t, result.Trades, 3)
	for _, trade := range result.Trades {
		assert.Equal(t, domain.ExitRebalance, trade.Reason)
		assert.Equal(t, "2023-06-21", trade.EntryDate.Format("2006-01-02"))
		assert.Equal(t, "2023-07-20", trade.ExitDate.Format("2006-01-02"))
		assert.InDelta(t, 0, trade.RealizedPL, 1e-9)
	}

	// Flat prices and no fees: equity stays at the initial balance, and the
	// July cycle is fully re-invested at the end.
	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, 1000, final.Equity, 1e-6)
	assert.InDelta(t, 0, final.Cash, 1e-6)
	assert.Empty(t, result.Events)
}

func TestRun_TrailingStopExit(t *testing.T) {
	sim := newSimulator(0)
	params := domain.DefaultParameters()
	params.NStocks = 1

	scores := universe.NewScoreTable(monthScores([]string{"AAA"}, 2023, 6))
	prices := universe.NewPriceTable(priceRows("AAA", []pricePoint{
		{"2023-06-20", 100},
		{"2023-06-21", 100}, // entry
		{"2023-06-22", 70},  // 30% below the high-water mark, stop at 75
		{"2023-06-23", 70},
	}))

	result, err := sim.Run(params, scores, prices, date("2023-06-20"), date("2023-06-23"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitStopLoss, trade.Reason)
	assert.Equal(t, "2023-06-22", trade.ExitDate.Format("2006-01-02"))
	assert.InDelta(t, -300, trade.RealizedPL, 1e-9)

	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, 700, final.Equity, 1e-9)
	assert.InDelta(t, 700, final.Cash, 1e-9)
}

func TestRun_TakeProfitExit(t *testing.T) {
	sim := newSimulator(0)
	params := domain.DefaultParameters()
	params.NStocks = 1

	scores := universe.NewScoreTable(monthScores([]string{"AAA"}, 2023, 6))
	prices := universe.NewPriceTable(priceRows("AAA", []pricePoint{
		{"2023-06-20", 100},
		{"2023-06-21", 100}, // entry, target at 135
		{"2023-06-22", 140},
		{"2023-06-23", 90},
	}))

	result, err := sim.Run(params, scores, prices, date("2023-06-20"), date("2023-06-23"))
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitTakeProfit, trade.Reason)
	assert.InDelta(t, 400, trade.RealizedPL, 1e-9)
}

func TestRun_InsufficientUniverseHoldsCash(t *testing.T) {
	sim := newSimulator(0)

	// Scores exist only for May; the June cycle finds nothing to rank.
	scores := universe.NewScoreTable(monthScores([]string{"AAA"}, 2023, 5))
	prices := universe.NewPriceTable(constantPrices("AAA", "2023-06-15", "2023-06-30", 100))

	result, err := sim.Run(domain.DefaultParameters(), scores, prices,
		date("2023-06-15"), date("2023-06-30"))
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	require.Len(t, result.Events, 1)
	assert.Equal(t, domain.EventInsufficientUniverse, result.Events[0].Kind)

	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, 1000, final.Cash, 1e-9)
}

func TestRun_MissingBuyPriceRedistributes(t *testing.T) {
	sim := newSimulator(0)

	scores := universe.NewScoreTable(monthScores([]string{"AAA", "BBB", "CCC"}, 2023, 6))
	rows := append(
		constantPrices("AAA", "2023-06-15", "2023-06-30", 100),
		constantPrices("BBB", "2023-06-15", "2023-06-30", 50)...,
	)
	// CCC trades every day except the buy day.
	for _, row := range constantPrices("CCC", "2023-06-15", "2023-06-30", 80) {
		if row.Date.Format("2006-01-02") != "2023-06-21" {
			rows = append(rows, row)
		}
	}
	prices := universe.NewPriceTable(rows)

	result, err := sim.Run(domain.DefaultParameters(), scores, prices,
		date("2023-06-15"), date("2023-06-30"))
	require.NoError(t, err)

	require.Len(t, result.Events, 1)
	assert.Equal(t, domain.EventMissingPrice, result.Events[0].Kind)
	assert.Equal(t, "CCC", result.Events[0].Symbol)

	// The dropped weight lands on the two buyable symbols: all cash is
	// still deployed.
	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, 0, final.Cash, 1e-6)
}

func TestRun_AllPricesMissingIsDataGap(t *testing.T) {
	sim := newSimulator(0)
	params := domain.DefaultParameters()
	params.NStocks = 1

	scores := universe.NewScoreTable(monthScores([]string{"AAA"}, 2023, 6))
	// BBB keeps the buy day in the trading calendar; AAA has no price on it.
	rows := constantPrices("BBB", "2023-06-15", "2023-06-30", 10)
	for _, row := range constantPrices("AAA", "2023-06-15", "2023-06-30", 100) {
		if row.Date.Format("2006-01-02") != "2023-06-21" {
			rows = append(rows, row)
		}
	}
	prices := universe.NewPriceTable(rows)

	result, err := sim.Run(params, scores, prices, date("2023-06-15"), date("2023-06-30"))
	require.NoError(t, err)

	require.Len(t, result.Events, 2)
	assert.Equal(t, domain.EventMissingPrice, result.Events[0].Kind)
	assert.Equal(t, domain.EventDataGap, result.Events[1].Kind)

	assert.Empty(t, result.Trades)
	final := result.EquityCurve[len(result.EquityCurve)-1]
	assert.InDelta(t, 1000, final.Cash, 1e-9)
}
