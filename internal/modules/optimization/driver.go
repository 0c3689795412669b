package optimization

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
)

// TrialState classifies a finished trial.
type TrialState string

const (
	// TrialComplete - the backtest ran and produced an objective value
	TrialComplete TrialState = "complete"
	// TrialFailed - the run aborted; no objective value exists. Failed
	// trials are recorded so a crash is never confused with a bad score.
	TrialFailed TrialState = "failed"
)

// Trial is one evaluated parameter vector.
type Trial struct {
	Number int               `json:"number"`
	Params domain.Parameters `json:"params"`
	State  TrialState        `json:"state"`
	Value  float64           `json:"value"`
	Report *metrics.Report   `json:"metrics,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// Evaluator runs the full backtest pipeline for one candidate vector and
// reduces it to an objective value plus the underlying metrics report.
// Implementations must be safe for concurrent use: each call builds its own
// portfolio state over shared read-only data tables.
type Evaluator func(ctx context.Context, params domain.Parameters) (float64, *metrics.Report, error)

// StudyResult is the outcome of one optimization study.
type StudyResult struct {
	ID         string            `json:"id"`
	Seed       int64             `json:"seed"`
	Sampler    string            `json:"sampler"`
	BestTrial  int               `json:"best_trial"`
	BestValue  float64           `json:"best_value"`
	BestParams domain.Parameters `json:"best_params"`
	Trials     []Trial           `json:"trials"`
	Elapsed    time.Duration     `json:"elapsed"`
}

// TrialObserver is notified after each trial completes. Used for study
// persistence; calls are serialized by the driver.
type TrialObserver func(studyID string, trial Trial)

// Driver runs a study: n seeded trials of the evaluator, sampled by a
// pluggable search algorithm.
type Driver struct {
	sampler  Sampler
	workers  int
	observer TrialObserver
	log      zerolog.Logger
}

// NewDriver creates a new optimization driver. workers only takes effect
// for history-free samplers; model-based samplers evaluate sequentially so
// that a fixed seed reproduces the exact trial sequence.
func NewDriver(sampler Sampler, workers int, log zerolog.Logger) *Driver {
	if workers < 1 {
		workers = 1
	}
	return &Driver{
		sampler: sampler,
		workers: workers,
		log:     log.With().Str("service", "optimization").Logger(),
	}
}

// SetObserver registers a per-trial callback.
func (d *Driver) SetObserver(obs TrialObserver) {
	d.observer = obs
}

// Optimize runs nTrials trials under the given study id and returns the
// best result. Deterministic given (space, nTrials, seed): the trial history
// and the chosen best are identical across runs. Ties on the objective go to
// the earliest trial.
func (d *Driver) Optimize(
	ctx context.Context,
	studyID string,
	space Space,
	nTrials int,
	seed int64,
	evaluate Evaluator,
) (*StudyResult, error) {
	if nTrials < 1 {
		return nil, fmt.Errorf("trial budget must be at least 1, got %d", nTrials)
	}
	if studyID == "" {
		studyID = uuid.New().String()
	}
	started := time.Now()
	rng := rand.New(rand.NewSource(seed))

	d.log.Info().
		Str("study", studyID).
		Str("sampler", d.sampler.Name()).
		Int("trials", nTrials).
		Int64("seed", seed).
		Msg("Starting optimization study")

	var trials []Trial
	var err error
	if d.sampler.NeedsHistory() || d.workers == 1 {
		trials, err = d.runSequential(ctx, space, nTrials, rng, evaluate, studyID)
	} else {
		trials, err = d.runParallel(ctx, space, nTrials, rng, evaluate, studyID)
	}
	if err != nil {
		return nil, err
	}

	best := bestTrial(trials)
	if best == nil {
		return nil, fmt.Errorf("study %s: every trial failed", studyID)
	}

	result := &StudyResult{
		ID:         studyID,
		Seed:       seed,
		Sampler:    d.sampler.Name(),
		BestTrial:  best.Number,
		BestValue:  best.Value,
		BestParams: best.Params,
		Trials:     trials,
		Elapsed:    time.Since(started),
	}

	d.log.Info().
		Str("study", studyID).
		Int("best_trial", best.Number).
		Float64("best_value", best.Value).
		Dur("elapsed", result.Elapsed).
		Msg("Optimization study complete")
	return result, nil
}

// runSequential evaluates trials one by one, feeding each result back into
// the sampler's history.
func (d *Driver) runSequential(
	ctx context.Context,
	space Space,
	nTrials int,
	rng *rand.Rand,
	evaluate Evaluator,
	studyID string,
) ([]Trial, error) {
	trials := make([]Trial, 0, nTrials)
	for number := 0; number < nTrials; number++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("study interrupted after %d trials: %w", number, err)
		}
		params := d.sampler.Suggest(rng, space, trials)
		trial := d.evaluateTrial(ctx, number, params, evaluate)
		trials = append(trials, trial)
		d.notify(studyID, trial)
	}
	return trials, nil
}

// runParallel pre-draws every candidate from the seeded rng (keeping the
// suggestion sequence deterministic), then evaluates across a worker pool.
// Results land at their trial index, so history ordering is stable no
// matter which worker finishes first.
func (d *Driver) runParallel(
	ctx context.Context,
	space Space,
	nTrials int,
	rng *rand.Rand,
	evaluate Evaluator,
	studyID string,
) ([]Trial, error) {
	candidates := make([]domain.Parameters, nTrials)
	for i := range candidates {
		candidates[i] = d.sampler.Suggest(rng, space, nil)
	}

	trials := make([]Trial, nTrials)
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex // serializes observer notifications

	for number := range candidates {
		wg.Add(1)
		go func(number int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			trial := d.evaluateTrial(ctx, number, candidates[number], evaluate)
			trials[number] = trial

			mu.Lock()
			d.notify(studyID, trial)
			mu.Unlock()
		}(number)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("study interrupted: %w", err)
	}
	return trials, nil
}

func (d *Driver) evaluateTrial(ctx context.Context, number int, params domain.Parameters, evaluate Evaluator) Trial {
	trial := Trial{Number: number, Params: params}

	// A malformed vector must never reach the simulator.
	if err := params.Validate(); err != nil {
		trial.State = TrialFailed
		trial.Err = err.Error()
		d.log.Warn().Int("trial", number).Err(err).Msg("Rejected invalid candidate")
		return trial
	}

	value, report, err := evaluate(ctx, params)
	if err != nil {
		trial.State = TrialFailed
		trial.Err = err.Error()
		d.log.Warn().Int("trial", number).Err(err).Msg("Trial failed")
		return trial
	}

	trial.State = TrialComplete
	trial.Value = value
	trial.Report = report
	d.log.Debug().
		Int("trial", number).
		Float64("value", trial.Value).
		Msg("Trial complete")
	return trial
}

func (d *Driver) notify(studyID string, trial Trial) {
	if d.observer != nil {
		d.observer(studyID, trial)
	}
}

// bestTrial picks the completed trial with the highest value; ties go to
// the earliest trial number.
func bestTrial(trials []Trial) *Trial {
	var best *Trial
	for i := range trials {
		t := &trials[i]
		if t.State != TrialComplete {
			continue
		}
		if best == nil || t.Value > best.Value {
			best = t
		}
	}
	return best
}
