package metrics

import (
	"fmt"
	"time"

	"github.com/vqtran/fundfolio/internal/domain"
)

// ComparisonPoint is one date of the strategy-vs-benchmark cumulative
// return series.
type ComparisonPoint struct {
	Date               time.Time `json:"date"`
	StrategyCumReturn  float64   `json:"cumulative_return"`
	BenchmarkCumReturn float64   `json:"cumulative_return_benchmark"`
}

// Comparison pairs the strategy report with a benchmark report over the
// dates both series cover.
type Comparison struct {
	Strategy  *Report           `json:"strategy"`
	Benchmark *Report           `json:"benchmark"`
	Series    []ComparisonPoint `json:"series"`
}

// Compare evaluates the strategy curve against a benchmark curve. Both are
// reduced to metric reports, and a joint cumulative-return series is built
// over their common dates. The benchmark has no trade log, so its
// trade-derived metrics stay nil.
func (c *Calculator) Compare(
	strategy []domain.EquityPoint,
	trades []domain.Trade,
	benchmark []domain.EquityPoint,
) (*Comparison, error) {
	strategyReport, err := c.Report(strategy, trades)
	if err != nil {
		return nil, fmt.Errorf("strategy report: %w", err)
	}
	benchmarkReport, err := c.Report(benchmark, nil)
	if err != nil {
		return nil, fmt.Errorf("benchmark report: %w", err)
	}

	benchByDate := make(map[string]float64, len(benchmark))
	for _, p := range benchmark {
		benchByDate[p.Date.Format("2006-01-02")] = p.Equity
	}

	var series []ComparisonPoint
	var strategyBase, benchBase float64
	for _, p := range strategy {
		bench, ok := benchByDate[p.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		if strategyBase == 0 {
			strategyBase = p.Equity
			benchBase = bench
		}
		series = append(series, ComparisonPoint{
			Date:               p.Date,
			StrategyCumReturn:  p.Equity/strategyBase - 1,
			BenchmarkCumReturn: bench/benchBase - 1,
		})
	}

	return &Comparison{
		Strategy:  strategyReport,
		Benchmark: benchmarkReport,
		Series:    series,
	}, nil
}
