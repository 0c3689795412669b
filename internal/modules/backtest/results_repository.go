// Package backtest orchestrates single backtest runs: data loading,
// simulation, metric evaluation and persistence of results.
package backtest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/domain"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
)

const runColumns = "id, created_at, start_date, end_date, params_json, metrics_json, label"

// RunSummary is one persisted backtest run without its equity and trade
// detail.
type RunSummary struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	StartDate time.Time         `json:"start_date"`
	EndDate   time.Time         `json:"end_date"`
	Params    domain.Parameters `json:"params"`
	Metrics   *metrics.Report   `json:"metrics"`
	Label     string            `json:"label,omitempty"`
}

// ResultsRepository persists backtest runs, equity curves and trade logs.
type ResultsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewResultsRepository(db *sql.DB, log zerolog.Logger) *ResultsRepository {
	return &ResultsRepository{
		db:  db,
		log: log.With().Str("repo", "results").Logger(),
	}
}

// Save stores a finished run with its full equity curve and trade log in
// one transaction.
func (r *ResultsRepository) Save(result *domain.BacktestResult, report *metrics.Report, label string) error {
	paramsJSON, err := json.Marshal(result.Params)
	if err != nil {
		return fmt.Errorf("failed to encode run params: %w", err)
	}
	metricsJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode run metrics: %w", err)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO backtest_runs (id, created_at, start_date, end_date, params_json, metrics_json, label)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.ID,
			time.Now().UTC().Format(time.RFC3339),
			result.StartDate.Format("2006-01-02"),
			result.EndDate.Format("2006-01-02"),
			string(paramsJSON),
			string(metricsJSON),
			label,
		)
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", result.ID, err)
		}

		equityStmt, err := tx.Prepare(
			`INSERT INTO backtest_equity (run_id, date, equity, cash) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare equity insert: %w", err)
		}
		defer equityStmt.Close()
		for _, p := range result.EquityCurve {
			if _, err := equityStmt.Exec(result.ID, p.Date.Format("2006-01-02"), p.Equity, p.Cash); err != nil {
				return fmt.Errorf("failed to insert equity point: %w", err)
			}
		}

		tradeStmt, err := tx.Prepare(
			`INSERT INTO backtest_trades (run_id, seq, symbol, shares, entry_date, entry_price, exit_date, exit_price, realized_pl, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare trade insert: %w", err)
		}
		defer tradeStmt.Close()
		for seq, t := range result.Trades {
			_, err := tradeStmt.Exec(result.ID, seq, t.Symbol, t.Shares,
				t.EntryDate.Format("2006-01-02"), t.EntryPrice,
				t.ExitDate.Format("2006-01-02"), t.ExitPrice,
				t.RealizedPL, string(t.Reason))
			if err != nil {
				return fmt.Errorf("failed to insert trade: %w", err)
			}
		}
		return nil
	})
}

// Get fetches one run summary by id. Returns nil when absent.
func (r *ResultsRepository) Get(id string) (*RunSummary, error) {
	row := r.db.QueryRow(`SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`, id)
	summary, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return summary, nil
}

// List returns all run summaries, newest first.
func (r *ResultsRepository) List() ([]RunSummary, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *summary)
	}
	return runs, rows.Err()
}

// GetEquityCurve returns a run's daily equity points in date order.
func (r *ResultsRepository) GetEquityCurve(runID string) ([]domain.EquityPoint, error) {
	rows, err := r.db.Query(
		`SELECT date, equity, cash FROM backtest_equity WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load equity curve of run %s: %w", runID, err)
	}
	defer rows.Close()

	var curve []domain.EquityPoint
	for rows.Next() {
		var date string
		var p domain.EquityPoint
		if err := rows.Scan(&date, &p.Equity, &p.Cash); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		if p.Date, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("invalid equity date %q: %w", date, err)
		}
		curve = append(curve, p)
	}
	return curve, rows.Err()
}

// GetTrades returns a run's closed trades in execution order.
func (r *ResultsRepository) GetTrades(runID string) ([]domain.Trade, error) {
	rows, err := r.db.Query(
		`SELECT symbol, shares, entry_date, entry_price, exit_date, exit_price, realized_pl, reason
		 FROM backtest_trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades of run %s: %w", runID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var entryDate, exitDate, reason string
		if err := rows.Scan(&t.Symbol, &t.Shares, &entryDate, &t.EntryPrice,
			&exitDate, &t.ExitPrice, &t.RealizedPL, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if t.EntryDate, err = time.Parse("2006-01-02", entryDate); err != nil {
			return nil, fmt.Errorf("invalid entry date %q: %w", entryDate, err)
		}
		if t.ExitDate, err = time.Parse("2006-01-02", exitDate); err != nil {
			return nil, fmt.Errorf("invalid exit date %q: %w", exitDate, err)
		}
		t.Reason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func scanRun(row interface{ Scan(...any) error }) (*RunSummary, error) {
	var s RunSummary
	var createdAt, startDate, endDate, paramsJSON, metricsJSON string
	err := row.Scan(&s.ID, &createdAt, &startDate, &endDate, &paramsJSON, &metricsJSON, &s.Label)
	if err != nil {
		return nil, err
	}
	s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	s.StartDate, _ = time.Parse("2006-01-02", startDate)
	s.EndDate, _ = time.Parse("2006-01-02", endDate)
	if err := json.Unmarshal([]byte(paramsJSON), &s.Params); err != nil {
		return nil, fmt.Errorf("failed to decode run params: %w", err)
	}
	s.Metrics = new(metrics.Report)
	if err := json.Unmarshal([]byte(metricsJSON), s.Metrics); err != nil {
		return nil, fmt.Errorf("failed to decode run metrics: %w", err)
	}
	return &s, nil
}
