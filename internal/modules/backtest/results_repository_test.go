package backtest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
	testdb "github.com/vqtran/fundfolio/internal/testing"
)

func newResultsRepo(t *testing.T) (*ResultsRepository, func()) {
	db, cleanup := testdb.NewTestDB(t, "results")
	return NewResultsRepository(db.Conn(), zerolog.Nop()), cleanup
}

func sampleResult(id string) (*domain.BacktestResult, *metrics.Report) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	result := &domain.BacktestResult{
		ID:        id,
		Params:    domain.DefaultParameters(),
		StartDate: start,
		EndDate:   start.AddDate(0, 1, 0),
		EquityCurve: []domain.EquityPoint{
			{Date: start, Equity: 1000, Cash: 1000},
			{Date: start.AddDate(0, 0, 1), Equity: 1050, Cash: 0},
		},
		Trades: []domain.Trade{
			{
				Symbol:     "VNM",
				Shares:     10,
				EntryDate:  start,
				EntryPrice: 100,
				ExitDate:   start.AddDate(0, 0, 1),
				ExitPrice:  105,
				RealizedPL: 50,
				Reason:     domain.ExitTakeProfit,
			},
		},
	}
	sharpe := 1.1
	report := &metrics.Report{ROI: 0.05, TotalPL: 50, Sharpe: &sharpe, MaxDrawdown: -0.02, TradeCount: 1}
	return result, report
}

func TestResultsRepository_SaveAndGet(t *testing.T) {
	repo, cleanup := newResultsRepo(t)
	defer cleanup()

	result, report := sampleResult("run-1")
	require.NoError(t, repo.Save(result, report, "in-sample"))

	run, err := repo.Get("run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "in-sample", run.Label)
	assert.Equal(t, domain.DefaultParameters(), run.Params)
	assert.True(t, run.StartDate.Equal(result.StartDate))
	require.NotNil(t, run.Metrics)
	assert.InDelta(t, 0.05, run.Metrics.ROI, 1e-12)
	require.NotNil(t, run.Metrics.Sharpe)
	assert.InDelta(t, 1.1, *run.Metrics.Sharpe, 1e-12)
}

func TestResultsRepository_GetMissingRun(t *testing.T) {
	repo, cleanup := newResultsRepo(t)
	defer cleanup()

	run, err := repo.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestResultsRepository_EquityCurveRoundTrip(t *testing.T) {
	repo, cleanup := newResultsRepo(t)
	defer cleanup()

	result, report := sampleResult("run-1")
	require.NoError(t, repo.Save(result, report, ""))

	curve, err := repo.GetEquityCurve("run-1")
	require.NoError(t, err)
	require.Len(t, curve, 2)
	assert.True(t, curve[0].Date.Equal(result.EquityCurve[0].Date))
	assert.InDelta(t, 1000, curve[0].Equity, 1e-12)
	assert.InDelta(t, 0, curve[1].Cash, 1e-12)
}

func TestResultsRepository_TradesRoundTrip(t *testing.T) {
	repo, cleanup := newResultsRepo(t)
	defer cleanup()

	result, report := sampleResult("run-1")
	require.NoError(t, repo.Save(result, report, ""))

	trades, err := repo.GetTrades("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "VNM", trades[0].Symbol)
	assert.Equal(t, domain.ExitTakeProfit, trades[0].Reason)
	assert.InDelta(t, 50, trades[0].RealizedPL, 1e-12)
	assert.True(t, trades[0].EntryDate.Equal(result.Trades[0].EntryDate))
}

func TestResultsRepository_List(t *testing.T) {
	repo, cleanup := newResultsRepo(t)
	defer cleanup()

	first, report := sampleResult("run-1")
	require.NoError(t, repo.Save(first, report, ""))
	second, report2 := sampleResult("run-2")
	require.NoError(t, repo.Save(second, report2, "out-of-sample"))

	runs, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
