package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
	"github.com/vqtran/fundfolio/internal/modules/simulation"
	"github.com/vqtran/fundfolio/internal/modules/universe"
	"github.com/vqtran/fundfolio/internal/utils"
)

// gapPenalty is subtracted from a trial's objective for every cycle the
// simulator held cash because no selected symbol was buyable. Applied only
// when gap penalization is enabled.
const gapPenalty = 0.05

// Dataset bundles the immutable in-memory tables one or more runs share.
// Load once, then run any number of concurrent simulations against it.
type Dataset struct {
	Scores    *universe.ScoreTable
	Prices    *universe.PriceTable
	Benchmark []domain.EquityPoint
	Start     time.Time
	End       time.Time
}

// RunResult is the full outcome of a single backtest run.
type RunResult struct {
	Result     *domain.BacktestResult `json:"result"`
	Metrics    *metrics.Report        `json:"metrics"`
	Comparison *metrics.Comparison    `json:"comparison,omitempty"`
}

// Service runs backtests end to end.
type Service struct {
	scores           *universe.ScoreRepository
	prices           *universe.PriceRepository
	results          *ResultsRepository
	simulator        *simulation.Simulator
	calculator       *metrics.Calculator
	benchmarkSymbol  string
	penalizeDataGaps bool
	log              zerolog.Logger
}

func NewService(
	scores *universe.ScoreRepository,
	prices *universe.PriceRepository,
	results *ResultsRepository,
	simulator *simulation.Simulator,
	calculator *metrics.Calculator,
	benchmarkSymbol string,
	penalizeDataGaps bool,
	log zerolog.Logger,
) *Service {
	return &Service{
		scores:           scores,
		prices:           prices,
		results:          results,
		simulator:        simulator,
		calculator:       calculator,
		benchmarkSymbol:  benchmarkSymbol,
		penalizeDataGaps: penalizeDataGaps,
		log:              log.With().Str("service", "backtest").Logger(),
	}
}

// LoadDataset reads the score, price and benchmark tables for [start, end]
// into memory. Benchmark data is optional; a run without it just skips the
// comparison.
func (s *Service) LoadDataset(start, end time.Time) (*Dataset, error) {
	scores, err := s.scores.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly scores: %w", err)
	}
	prices, err := s.prices.LoadRange(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily prices: %w", err)
	}
	benchmark, err := s.prices.LoadBenchmark(s.benchmarkSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load benchmark series: %w", err)
	}
	return &Dataset{Scores: scores, Prices: prices, Benchmark: benchmark, Start: start, End: end}, nil
}

// Run executes one backtest over [start, end], evaluates its metrics and
// persists the result under a fresh id.
func (s *Service) Run(params domain.Parameters, start, end time.Time, label string) (*RunResult, error) {
	dataset, err := s.LoadDataset(start, end)
	if err != nil {
		return nil, err
	}
	return s.RunOnDataset(dataset, params, label)
}

// RunOnDataset executes one backtest against already-loaded tables.
func (s *Service) RunOnDataset(dataset *Dataset, params domain.Parameters, label string) (*RunResult, error) {
	defer utils.OperationTimer("backtest_run", s.log)()

	result, err := s.simulator.Run(params, dataset.Scores, dataset.Prices, dataset.Start, dataset.End)
	if err != nil {
		return nil, err
	}
	result.ID = uuid.New().String()

	report, err := s.calculator.Report(result.EquityCurve, result.Trades)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate run %s: %w", result.ID, err)
	}

	run := &RunResult{Result: result, Metrics: report}
	if len(dataset.Benchmark) > 0 {
		comparison, err := s.calculator.Compare(result.EquityCurve, result.Trades, dataset.Benchmark)
		if err != nil {
			s.log.Warn().Err(err).Str("run", result.ID).Msg("Benchmark comparison failed")
		} else {
			run.Comparison = comparison
		}
	}

	if err := s.results.Save(result, report, label); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("run", result.ID).
		Float64("roi", report.ROI).
		Int("trades", report.TradeCount).
		Msg("Backtest complete")
	return run, nil
}

// Evaluator returns an objective function over the dataset, suitable for
// the optimization driver. Each call runs a fresh simulation; the shared
// tables are read-only, so calls may run concurrently.
func (s *Service) Evaluator(dataset *Dataset) optimization.Evaluator {
	return func(ctx context.Context, params domain.Parameters) (float64, *metrics.Report, error) {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		result, err := s.simulator.Run(params, dataset.Scores, dataset.Prices, dataset.Start, dataset.End)
		if err != nil {
			return 0, nil, err
		}
		report, err := s.calculator.Report(result.EquityCurve, result.Trades)
		if err != nil {
			return 0, nil, err
		}

		value := optimization.Score(report)
		if s.penalizeDataGaps {
			value -= gapPenalty * float64(countGapCycles(result.Events))
		}
		return value, report, nil
	}
}

func countGapCycles(events []domain.SimEvent) int {
	n := 0
	for _, e := range events {
		if e.Kind == domain.EventDataGap || e.Kind == domain.EventInsufficientUniverse {
			n++
		}
	}
	return n
}
