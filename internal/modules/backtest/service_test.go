package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
	"github.com/vqtran/fundfolio/internal/modules/simulation"
	"github.com/vqtran/fundfolio/internal/modules/universe"
	testdb "github.com/vqtran/fundfolio/internal/testing"
)

func newService(t *testing.T, penalizeGaps bool) (*Service, func()) {
	marketDB, marketCleanup := testdb.NewTestDB(t, "marketdata")
	resultsDB, resultsCleanup := testdb.NewTestDB(t, "results")

	log := zerolog.Nop()
	simulator := simulation.New(
		simulation.Config{InitialBalance: 1000},
		scoring.NewEngine(log),
		log,
	)
	svc := NewService(
		universe.NewScoreRepository(marketDB.Conn(), log),
		universe.NewPriceRepository(marketDB.Conn(), log),
		NewResultsRepository(resultsDB.Conn(), log),
		simulator,
		metrics.NewCalculator(metrics.Config{}),
		"",
		penalizeGaps,
		log,
	)
	return svc, func() {
		marketCleanup()
		resultsCleanup()
	}
}

func weekdayPrices(symbol string, start, end time.Time, price float64) []domain.DailyPrice {
	var rows []domain.DailyPrice
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		rows = append(rows, domain.DailyPrice{Date: d, Symbol: symbol, Price: price})
	}
	return rows
}

func juneScores(symbols ...string) []domain.MonthlyScore {
	rows := make([]domain.MonthlyScore, len(symbols))
	for i, sym := range symbols {
		rows[i] = domain.MonthlyScore{
			Symbol: sym, Year: 2023, Month: 6,
			FundNetBuying: 0.5, NumberFundHoldings: 0.5, NetFundChange: 0.5,
			ROE: 0.5, RevenueGrowth: 0.5, PE: 0.1,
		}
	}
	return rows
}

func juneDataset(scores []domain.MonthlyScore) *Dataset {
	start := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	var prices []domain.DailyPrice
	for _, sym := range []string{"AAA", "BBB", "CCC"} {
		prices = append(prices, weekdayPrices(sym, start, end, 100)...)
	}
	return &Dataset{
		Scores: universe.NewScoreTable(scores),
		Prices: universe.NewPriceTable(prices),
		Start:  start,
		End:    end,
	}
}

func TestRunOnDataset_PersistsRun(t *testing.T) {
	svc, cleanup := newService(t, false)
	defer cleanup()

	run, err := svc.RunOnDataset(juneDataset(juneScores("AAA", "BBB", "CCC")), domain.DefaultParameters(), "in-sample")
	require.NoError(t, err)
	require.NotNil(t, run.Result)
	assert.NotEmpty(t, run.Result.ID)
	require.NotNil(t, run.Metrics)
	assert.Nil(t, run.Comparison) // no benchmark configured

	stored, err := svc.results.Get(run.Result.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "in-sample", stored.Label)

	curve, err := svc.results.GetEquityCurve(run.Result.ID)
	require.NoError(t, err)
	assert.Len(t, curve, len(run.Result.EquityCurve))
}

func TestRunOnDataset_InvalidParams(t *testing.T) {
	svc, cleanup := newService(t, false)
	defer cleanup()

	params := domain.DefaultParameters()
	params.NStocks = 0
	_, err := svc.RunOnDataset(juneDataset(juneScores("AAA")), params, "")
	assert.Error(t, err)
}

func TestEvaluator_ScoresCompletedRun(t *testing.T) {
	svc, cleanup := newService(t, false)
	defer cleanup()

	evaluate := svc.Evaluator(juneDataset(juneScores("AAA", "BBB", "CCC")))
	value, report, err := evaluate(context.Background(), domain.DefaultParameters())
	require.NoError(t, err)
	require.NotNil(t, report)

	// Flat prices: no drawdown, undefined Sharpe, objective is the
	// drawdown component alone.
	assert.InDelta(t, 0.2, value, 1e-12)
}

func TestEvaluator_PenalizesGapCycles(t *testing.T) {
	// No score rows: the June cycle holds cash and counts as one gap.
	dataset := juneDataset(nil)

	svc, cleanup := newService(t, false)
	value, _, err := svc.Evaluator(dataset)(context.Background(), domain.DefaultParameters())
	cleanup()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, value, 1e-12)

	penalized, cleanup := newService(t, true)
	defer cleanup()
	value, _, err = penalized.Evaluator(dataset)(context.Background(), domain.DefaultParameters())
	require.NoError(t, err)
	assert.InDelta(t, 0.15, value, 1e-12)
}

func TestEvaluator_CancelledContext(t *testing.T) {
	svc, cleanup := newService(t, false)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Evaluator(juneDataset(juneScores("AAA")))(ctx, domain.DefaultParameters())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountGapCycles(t *testing.T) {
	events := []domain.SimEvent{
		{Kind: domain.EventMissingPrice},
		{Kind: domain.EventDataGap},
		{Kind: domain.EventInsufficientUniverse},
	}
	assert.Equal(t, 2, countGapCycles(events))
	assert.Zero(t, countGapCycles(nil))
}
