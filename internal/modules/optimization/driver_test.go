package optimization

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
)

// stopLossEvaluator scores a candidate by its trailing stop, making the best
// trial predictable without running a backtest.
func stopLossEvaluator(_ context.Context, params domain.Parameters) (float64, *metrics.Report, error) {
	return params.TrailingStopLoss, &metrics.Report{}, nil
}

func TestOptimize_RejectsZeroTrials(t *testing.T) {
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	_, err := driver.Optimize(context.Background(), "", DefaultSpace(), 0, 1, stopLossEvaluator)
	assert.Error(t, err)
}

func TestOptimize_GeneratesStudyID(t *testing.T) {
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	result, err := driver.Optimize(context.Background(), "", DefaultSpace(), 5, 1, stopLossEvaluator)
	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)

	result, err = driver.Optimize(context.Background(), "study-7", DefaultSpace(), 5, 1, stopLossEvaluator)
	require.NoError(t, err)
	assert.Equal(t, "study-7", result.ID)
}

func TestOptimize_DeterministicPerSeed(t *testing.T) {
	run := func() *StudyResult {
		driver := NewDriver(NewTPESampler(), 1, zerolog.Nop())
		result, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 30, 99, stopLossEvaluator)
		require.NoError(t, err)
		return result
	}

	first, second := run(), run()
	assert.Equal(t, first.Trials, second.Trials)
	assert.Equal(t, first.BestTrial, second.BestTrial)
	assert.Equal(t, first.BestParams, second.BestParams)
}

func TestOptimize_BestIsHighestValue(t *testing.T) {
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	result, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 40, 7, stopLossEvaluator)
	require.NoError(t, err)

	for _, trial := range result.Trials {
		assert.LessOrEqual(t, trial.Value, result.BestValue)
	}
	assert.Equal(t, result.BestValue, result.Trials[result.BestTrial].Value)
	assert.Equal(t, result.BestParams.TrailingStopLoss, result.BestValue)
}

func TestOptimize_TiesGoToEarliestTrial(t *testing.T) {
	constant := func(_ context.Context, _ domain.Parameters) (float64, *metrics.Report, error) {
		return 0.5, &metrics.Report{}, nil
	}
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	result, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 10, 3, constant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.BestTrial)
}

func TestOptimize_ParallelMatchesSequential(t *testing.T) {
	run := func(workers int) *StudyResult {
		driver := NewDriver(NewRandomSampler(), workers, zerolog.Nop())
		result, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 25, 42, stopLossEvaluator)
		require.NoError(t, err)
		return result
	}

	sequential, parallel := run(1), run(8)
	assert.Equal(t, sequential.Trials, parallel.Trials)
	assert.Equal(t, sequential.BestTrial, parallel.BestTrial)
	assert.Equal(t, sequential.BestValue, parallel.BestValue)
}

func TestOptimize_FailedTrialsRecordedAndSkipped(t *testing.T) {
	flaky := func(_ context.Context, params domain.Parameters) (float64, *metrics.Report, error) {
		if params.Allocation == domain.AllocationSoftmax {
			return 0, nil, errors.New("simulation blew up")
		}
		return params.TakeProfit, &metrics.Report{}, nil
	}
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	result, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 60, 5, flaky)
	require.NoError(t, err)

	var failed int
	for _, trial := range result.Trials {
		if trial.State == TrialFailed {
			failed++
			assert.Equal(t, "simulation blew up", trial.Err)
			assert.Nil(t, trial.Report)
		}
	}
	assert.Positive(t, failed, "seeded draw should hit softmax at least once")
	assert.NotEqual(t, domain.AllocationSoftmax, result.BestParams.Allocation)
}

func TestOptimize_AllTrialsFailed(t *testing.T) {
	broken := func(_ context.Context, _ domain.Parameters) (float64, *metrics.Report, error) {
		return 0, nil, errors.New("no data")
	}
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	_, err := driver.Optimize(context.Background(), "s", DefaultSpace(), 5, 1, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every trial failed")
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	driver := NewDriver(NewRandomSampler(), 1, zerolog.Nop())

	_, err := driver.Optimize(ctx, "s", DefaultSpace(), 10, 1, stopLossEvaluator)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOptimize_ObserverSeesEveryTrial(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]bool)

	driver := NewDriver(NewRandomSampler(), 4, zerolog.Nop())
	driver.SetObserver(func(studyID string, trial Trial) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "obs", studyID)
		seen[trial.Number] = true
	})

	_, err := driver.Optimize(context.Background(), "obs", DefaultSpace(), 20, 9, stopLossEvaluator)
	require.NoError(t, err)
	assert.Len(t, seen, 20)
}
