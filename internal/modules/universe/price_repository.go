package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/domain"
)

// PriceRepository handles daily price and benchmark database operations
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// ReplaceAll overwrites stored daily prices with rows.
func (r *PriceRepository) ReplaceAll(rows []domain.DailyPrice) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO daily_prices (date, symbol, price, quantity)
			VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if _, err := stmt.Exec(DateKey(row.Date), row.Symbol, row.Price, row.Quantity); err != nil {
				return fmt.Errorf("failed to insert price row %s %s: %w",
					row.Symbol, DateKey(row.Date), err)
			}
		}
		return nil
	})
}

// ReplaceBenchmark overwrites stored benchmark closes for one index symbol.
func (r *PriceRepository) ReplaceBenchmark(symbol string, points []domain.EquityPoint) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO benchmark_prices (date, symbol, price)
			VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.Exec(DateKey(p.Date), symbol, p.Equity); err != nil {
				return fmt.Errorf("failed to insert benchmark row %s: %w", DateKey(p.Date), err)
			}
		}
		return nil
	})
}

// LoadRange reads daily prices within [start, end] into memory.
func (r *PriceRepository) LoadRange(start, end time.Time) (*PriceTable, error) {
	rows, err := r.db.Query(
		`SELECT date, symbol, price, quantity FROM daily_prices
		 WHERE date >= ? AND date <= ? ORDER BY date, symbol`,
		DateKey(start), DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	records, err := scanPriceRows(rows)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Int("rows", len(records)).
		Str("start", DateKey(start)).
		Str("end", DateKey(end)).
		Msg("Loaded price table")
	return NewPriceTable(records), nil
}

// LoadBenchmark reads benchmark closes for symbol within [start, end] as an
// equity curve, ascending by date.
func (r *PriceRepository) LoadBenchmark(symbol string, start, end time.Time) ([]domain.EquityPoint, error) {
	rows, err := r.db.Query(
		`SELECT date, price FROM benchmark_prices
		 WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date`,
		symbol, DateKey(start), DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmark prices: %w", err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var dateStr string
		var price float64
		if err := rows.Scan(&dateStr, &price); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark row: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed benchmark date %q: %w", dateStr, err)
		}
		points = append(points, domain.EquityPoint{Date: date, Equity: price})
	}
	return points, rows.Err()
}

func scanPriceRows(rows *sql.Rows) ([]domain.DailyPrice, error) {
	var records []domain.DailyPrice
	for rows.Next() {
		var rec domain.DailyPrice
		var dateStr string
		if err := rows.Scan(&dateStr, &rec.Symbol, &rec.Price, &rec.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("malformed price date %q: %w", dateStr, err)
		}
		rec.Date = date
		records = append(records, rec)
	}
	return records, rows.Err()
}
