package optimization

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
)

// Study statuses as stored in the studies table.
const (
	StudyRunning  = "running"
	StudyComplete = "complete"
	StudyFailed   = "failed"
)

const studyColumns = "id, created_at, seed, n_trials, sampler, start_date, end_date, status, best_trial, best_value, best_params_json"

// StudySummary is a persisted study row.
type StudySummary struct {
	ID         string             `json:"id"`
	CreatedAt  time.Time          `json:"created_at"`
	Seed       int64              `json:"seed"`
	NTrials    int                `json:"n_trials"`
	Sampler    string             `json:"sampler"`
	StartDate  time.Time          `json:"start_date"`
	EndDate    time.Time          `json:"end_date"`
	Status     string             `json:"status"`
	BestTrial  *int               `json:"best_trial,omitempty"`
	BestValue  *float64           `json:"best_value,omitempty"`
	BestParams *domain.Parameters `json:"best_params,omitempty"`
}

// StudyRepository persists studies and their trials.
type StudyRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewStudyRepository(db *sql.DB, log zerolog.Logger) *StudyRepository {
	return &StudyRepository{
		db:  db,
		log: log.With().Str("repo", "studies").Logger(),
	}
}

// CreateStudy inserts a study row in the running state.
func (r *StudyRepository) CreateStudy(id string, seed int64, nTrials int, sampler string, start, end time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO studies (id, created_at, seed, n_trials, sampler, start_date, end_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339),
		seed,
		nTrials,
		sampler,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		StudyRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create study %s: %w", id, err)
	}
	return nil
}

// SaveTrial appends one finished trial. Called from the driver's observer,
// which already serializes calls.
func (r *StudyRepository) SaveTrial(studyID string, trial Trial) error {
	paramsJSON, err := json.Marshal(trial.Params)
	if err != nil {
		return fmt.Errorf("failed to encode trial params: %w", err)
	}
	var metricsJSON any
	if trial.Report != nil {
		b, err := json.Marshal(trial.Report)
		if err != nil {
			return fmt.Errorf("failed to encode trial metrics: %w", err)
		}
		metricsJSON = string(b)
	}
	var value any
	if trial.State == TrialComplete {
		value = trial.Value
	}
	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO trials (study_id, number, state, value, params_json, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		studyID, trial.Number, string(trial.State), value, string(paramsJSON), metricsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save trial %d of study %s: %w", trial.Number, studyID, err)
	}
	return nil
}

// CompleteStudy records the final outcome of a finished study.
func (r *StudyRepository) CompleteStudy(result *StudyResult) error {
	paramsJSON, err := json.Marshal(result.BestParams)
	if err != nil {
		return fmt.Errorf("failed to encode best params: %w", err)
	}
	_, err = r.db.Exec(
		`UPDATE studies SET status = ?, best_trial = ?, best_value = ?, best_params_json = ? WHERE id = ?`,
		StudyComplete, result.BestTrial, result.BestValue, string(paramsJSON), result.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete study %s: %w", result.ID, err)
	}
	return nil
}

// FailStudy marks a study as failed.
func (r *StudyRepository) FailStudy(id string) error {
	_, err := r.db.Exec(`UPDATE studies SET status = ? WHERE id = ?`, StudyFailed, id)
	if err != nil {
		return fmt.Errorf("failed to mark study %s failed: %w", id, err)
	}
	return nil
}

// GetStudy fetches one study row.
func (r *StudyRepository) GetStudy(id string) (*StudySummary, error) {
	row := r.db.QueryRow(`SELECT `+studyColumns+` FROM studies WHERE id = ?`, id)
	summary, err := scanStudy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study %s: %w", id, err)
	}
	return summary, nil
}

// ListStudies returns all studies, newest first.
func (r *StudyRepository) ListStudies() ([]StudySummary, error) {
	rows, err := r.db.Query(`SELECT ` + studyColumns + ` FROM studies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list studies: %w", err)
	}
	defer rows.Close()

	var studies []StudySummary
	for rows.Next() {
		summary, err := scanStudy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan study: %w", err)
		}
		studies = append(studies, *summary)
	}
	return studies, rows.Err()
}

// GetTrials returns a study's trials in evaluation order.
func (r *StudyRepository) GetTrials(studyID string) ([]Trial, error) {
	rows, err := r.db.Query(
		`SELECT number, state, value, params_json, metrics_json FROM trials WHERE study_id = ? ORDER BY number`,
		studyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trials of study %s: %w", studyID, err)
	}
	defer rows.Close()

	var trials []Trial
	for rows.Next() {
		var trial Trial
		var state string
		var value sql.NullFloat64
		var paramsJSON string
		var metricsJSON sql.NullString
		if err := rows.Scan(&trial.Number, &state, &value, &paramsJSON, &metricsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan trial: %w", err)
		}
		trial.State = TrialState(state)
		if value.Valid {
			trial.Value = value.Float64
		}
		if err := json.Unmarshal([]byte(paramsJSON), &trial.Params); err != nil {
			return nil, fmt.Errorf("failed to decode trial params: %w", err)
		}
		if metricsJSON.Valid {
			trial.Report = new(metrics.Report)
			if err := json.Unmarshal([]byte(metricsJSON.String), trial.Report); err != nil {
				return nil, fmt.Errorf("failed to decode trial metrics: %w", err)
			}
		}
		trials = append(trials, trial)
	}
	return trials, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudy(row rowScanner) (*StudySummary, error) {
	var s StudySummary
	var createdAt, startDate, endDate string
	var bestTrial sql.NullInt64
	var bestValue sql.NullFloat64
	var bestParams sql.NullString
	err := row.Scan(&s.ID, &createdAt, &s.Seed, &s.NTrials, &s.Sampler,
		&startDate, &endDate, &s.Status, &bestTrial, &bestValue, &bestParams)
	if err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.StartDate, _ = time.Parse("2006-01-02", startDate)
	s.EndDate, _ = time.Parse("2006-01-02", endDate)
	if bestTrial.Valid {
		n := int(bestTrial.Int64)
		s.BestTrial = &n
	}
	if bestValue.Valid {
		v := bestValue.Float64
		s.BestValue = &v
	}
	if bestParams.Valid && bestParams.String != "" {
		var p domain.Parameters
		if err := json.Unmarshal([]byte(bestParams.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode best params: %w", err)
		}
		s.BestParams = &p
	}
	return &s, nil
}
