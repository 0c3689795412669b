package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/backtest"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
)

// outOfSampleLabel marks the runs this job persists, so the API can tell
// scheduled refreshes apart from ad-hoc runs.
const outOfSampleLabel = "out-of-sample"

// EvaluationJob re-runs the current best parameter set over the
// out-of-sample window. It keeps an up-to-date held-out performance record
// as new optimization studies finish.
type EvaluationJob struct {
	backtests *backtest.Service
	studies   *optimization.StudyRepository
	start     time.Time
	end       time.Time
	log       zerolog.Logger
}

// NewEvaluationJob creates the nightly out-of-sample refresh job.
func NewEvaluationJob(
	backtests *backtest.Service,
	studies *optimization.StudyRepository,
	start, end time.Time,
	log zerolog.Logger,
) *EvaluationJob {
	return &EvaluationJob{
		backtests: backtests,
		studies:   studies,
		start:     start,
		end:       end,
		log:       log.With().Str("job", "evaluation").Logger(),
	}
}

// Name implements Job
func (j *EvaluationJob) Name() string {
	return "out_of_sample_evaluation"
}

// Run implements Job. Falls back to the default parameter set when no
// study has completed yet.
func (j *EvaluationJob) Run() error {
	params := domain.DefaultParameters()

	studies, err := j.studies.ListStudies()
	if err != nil {
		return err
	}
	for _, study := range studies {
		if study.Status == optimization.StudyComplete && study.BestParams != nil && study.BestValue != nil {
			params = *study.BestParams
			j.log.Info().
				Str("study", study.ID).
				Float64("best_value", *study.BestValue).
				Msg("Using best parameters from latest completed study")
			break
		}
	}

	run, err := j.backtests.Run(params, j.start, j.end, outOfSampleLabel)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run", run.Result.ID).
		Float64("roi", run.Metrics.ROI).
		Msg("Out-of-sample evaluation refreshed")
	return nil
}
