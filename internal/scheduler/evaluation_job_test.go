package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/backtest"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
	"github.com/vqtran/fundfolio/internal/modules/simulation"
	"github.com/vqtran/fundfolio/internal/modules/universe"
	testdb "github.com/vqtran/fundfolio/internal/testing"
)

type jobFixture struct {
	job     *EvaluationJob
	studies *optimization.StudyRepository
	results *backtest.ResultsRepository
	cleanup func()
}

func newJobFixture(t *testing.T) jobFixture {
	marketDB, marketCleanup := testdb.NewTestDB(t, "marketdata")
	resultsDB, resultsCleanup := testdb.NewTestDB(t, "results")

	log := zerolog.Nop()
	scores := universe.NewScoreRepository(marketDB.Conn(), log)
	prices := universe.NewPriceRepository(marketDB.Conn(), log)
	results := backtest.NewResultsRepository(resultsDB.Conn(), log)
	studies := optimization.NewStudyRepository(resultsDB.Conn(), log)

	var scoreRows []domain.MonthlyScore
	var priceRows []domain.DailyPrice
	flat := make([]float64, 11)
	for i := range flat {
		flat[i] = 100
	}
	for _, sym := range []string{"VNM", "FPT", "HPG"} {
		row := testdb.Score(sym, 2024, 2, 0.5)
		row.PE = 0.1
		scoreRows = append(scoreRows, row)
		priceRows = append(priceRows, testdb.PriceSeries(sym, testdb.Day(2024, time.February, 15), flat...)...)
	}
	require.NoError(t, scores.ReplaceAll(scoreRows))
	require.NoError(t, prices.ReplaceAll(priceRows))

	service := backtest.NewService(
		scores, prices, results,
		simulation.New(simulation.Config{InitialBalance: 1000}, scoring.NewEngine(log), log),
		metrics.NewCalculator(metrics.Config{}),
		"", false, log,
	)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	return jobFixture{
		job:     NewEvaluationJob(service, studies, start, end, log),
		studies: studies,
		results: results,
		cleanup: func() {
			marketCleanup()
			resultsCleanup()
		},
	}
}

func TestEvaluationJob_Name(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	assert.Equal(t, "out_of_sample_evaluation", f.job.Name())
}

func TestEvaluationJob_FallsBackToDefaults(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	require.NoError(t, f.job.Run())

	runs, err := f.results.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "out-of-sample", runs[0].Label)
	assert.Equal(t, domain.DefaultParameters(), runs[0].Params)
}

func TestEvaluationJob_UsesBestCompletedStudy(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	best := domain.DefaultParameters()
	best.TrailingStopLoss = 0.15
	best.NStocks = 3

	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.studies.CreateStudy("study-1", 1, 10, "tpe", start, start))
	require.NoError(t, f.studies.CompleteStudy(&optimization.StudyResult{
		ID: "study-1", BestTrial: 4, BestValue: 0.7, BestParams: best,
	}))

	require.NoError(t, f.job.Run())

	runs, err := f.results.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, best, runs[0].Params)
}

func TestEvaluationJob_SkipsRunningStudies(t *testing.T) {
	f := newJobFixture(t)
	defer f.cleanup()

	start := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.studies.CreateStudy("unfinished", 1, 10, "tpe", start, start))

	require.NoError(t, f.job.Run())

	runs, err := f.results.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.DefaultParameters(), runs[0].Params)
}
