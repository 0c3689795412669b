package universe

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/domain"
)

// ScoreRepository handles monthly score database operations
type ScoreRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// scoreColumns lists the monthly_scores columns. Kept explicit so schema
// changes break loudly instead of silently shifting scans.
const scoreColumns = `symbol, year, month, fund_net_buying, number_fund_holdings,
net_fund_change, roe, debt_to_equity, revenue_growth, cash_ratio, pe`

// NewScoreRepository creates a new score repository
func NewScoreRepository(db *sql.DB, log zerolog.Logger) *ScoreRepository {
	return &ScoreRepository{
		db:  db,
		log: log.With().Str("repo", "scores").Logger(),
	}
}

// ReplaceAll overwrites the stored rows for every (symbol, year, month) that
// appears in rows. Used by the CSV ingest on startup.
func (r *ScoreRepository) ReplaceAll(rows []domain.MonthlyScore) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO monthly_scores (` + scoreColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.Exec(
				row.Symbol, row.Year, row.Month,
				row.FundNetBuying, row.NumberFundHoldings, row.NetFundChange,
				row.ROE, row.DebtToEquity, row.RevenueGrowth, row.CashRatio, row.PE,
			); err != nil {
				return fmt.Errorf("failed to insert score row %s %d-%02d: %w",
					row.Symbol, row.Year, row.Month, err)
			}
		}
		return nil
	})
}

// LoadAll reads the full monthly score table into memory.
func (r *ScoreRepository) LoadAll() (*ScoreTable, error) {
	rows, err := r.db.Query(`SELECT ` + scoreColumns + ` FROM monthly_scores ORDER BY year, month, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly scores: %w", err)
	}
	defer rows.Close()

	var records []domain.MonthlyScore
	for rows.Next() {
		var rec domain.MonthlyScore
		if err := rows.Scan(
			&rec.Symbol, &rec.Year, &rec.Month,
			&rec.FundNetBuying, &rec.NumberFundHoldings, &rec.NetFundChange,
			&rec.ROE, &rec.DebtToEquity, &rec.RevenueGrowth, &rec.CashRatio, &rec.PE,
		); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("score row iteration failed: %w", err)
	}

	r.log.Debug().Int("rows", len(records)).Msg("Loaded monthly score table")
	return NewScoreTable(records), nil
}

// Months returns all (year, month) pairs with coverage, ascending.
func (r *ScoreRepository) Months() ([]MonthKey, error) {
	rows, err := r.db.Query(`SELECT DISTINCT year, month FROM monthly_scores ORDER BY year, month`)
	if err != nil {
		return nil, fmt.Errorf("failed to query score months: %w", err)
	}
	defer rows.Close()

	var keys []MonthKey
	for rows.Next() {
		var k MonthKey
		if err := rows.Scan(&k.Year, &k.Month); err != nil {
			return nil, fmt.Errorf("failed to scan month row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
