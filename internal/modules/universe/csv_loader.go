package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vqtran/fundfolio/internal/domain"
)

// Loader ingests upstream CSV extracts into the market data database.
// Column resolution is header-driven so the upstream pipeline can reorder
// columns without breaking ingest.
type Loader struct {
	scores *ScoreRepository
	prices *PriceRepository
	log    zerolog.Logger
}

// NewLoader creates a new CSV loader
func NewLoader(scores *ScoreRepository, prices *PriceRepository, log zerolog.Logger) *Loader {
	return &Loader{
		scores: scores,
		prices: prices,
		log:    log.With().Str("service", "csv_loader").Logger(),
	}
}

// LoadMonthlyScores ingests the monthly score CSV produced by preprocessing.
func (l *Loader) LoadMonthlyScores(path string) (int, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	col, err := columnIndex(header,
		"symbol", "year", "month",
		"fund_net_buying", "number_fund_holdings", "net_fund_change",
		"roe", "debt_to_equity", "revenue_growth", "pe")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	// cash_ratio is optional in older extracts
	cashRatioIdx := optionalColumn(header, "cash_ratio")

	records := make([]domain.MonthlyScore, 0, len(rows))
	for i, row := range rows {
		rec := domain.MonthlyScore{Symbol: strings.TrimSpace(row[col["symbol"]])}
		if rec.Year, err = parseInt(row[col["year"]]); err != nil {
			return 0, fmt.Errorf("%s line %d: year: %w", path, i+2, err)
		}
		if rec.Month, err = parseInt(row[col["month"]]); err != nil {
			return 0, fmt.Errorf("%s line %d: month: %w", path, i+2, err)
		}
		fields := []struct {
			name string
			dst  *float64
		}{
			{"fund_net_buying", &rec.FundNetBuying},
			{"number_fund_holdings", &rec.NumberFundHoldings},
			{"net_fund_change", &rec.NetFundChange},
			{"roe", &rec.ROE},
			{"debt_to_equity", &rec.DebtToEquity},
			{"revenue_growth", &rec.RevenueGrowth},
			{"pe", &rec.PE},
		}
		for _, f := range fields {
			if *f.dst, err = parseFloat(row[col[f.name]]); err != nil {
				return 0, fmt.Errorf("%s line %d: %s: %w", path, i+2, f.name, err)
			}
		}
		if cashRatioIdx >= 0 {
			if rec.CashRatio, err = parseFloat(row[cashRatioIdx]); err != nil {
				return 0, fmt.Errorf("%s line %d: cash_ratio: %w", path, i+2, err)
			}
		}
		records = append(records, rec)
	}

	if err := l.scores.ReplaceAll(records); err != nil {
		return 0, err
	}
	l.log.Info().Int("rows", len(records)).Str("path", path).Msg("Ingested monthly scores")
	return len(records), nil
}

// LoadDailyPrices ingests the daily price CSV extract.
func (l *Loader) LoadDailyPrices(path string) (int, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	col, err := columnIndex(header, "date", "ticker", "price")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	quantityIdx := optionalColumn(header, "quantity")

	records := make([]domain.DailyPrice, 0, len(rows))
	for i, row := range rows {
		rec := domain.DailyPrice{Symbol: strings.TrimSpace(row[col["ticker"]])}
		if rec.Date, err = parseDate(row[col["date"]]); err != nil {
			return 0, fmt.Errorf("%s line %d: date: %w", path, i+2, err)
		}
		if rec.Price, err = parseFloat(row[col["price"]]); err != nil {
			return 0, fmt.Errorf("%s line %d: price: %w", path, i+2, err)
		}
		if quantityIdx >= 0 {
			if rec.Quantity, err = parseFloat(row[quantityIdx]); err != nil {
				return 0, fmt.Errorf("%s line %d: quantity: %w", path, i+2, err)
			}
		}
		records = append(records, rec)
	}

	if err := l.prices.ReplaceAll(records); err != nil {
		return 0, err
	}
	l.log.Info().Int("rows", len(records)).Str("path", path).Msg("Ingested daily prices")
	return len(records), nil
}

// LoadBenchmark ingests benchmark index closes for symbol.
func (l *Loader) LoadBenchmark(path, symbol string) (int, error) {
	header, rows, err := readCSV(path)
	if err != nil {
		return 0, err
	}

	dateIdx := optionalColumn(header, "date")
	if dateIdx < 0 {
		dateIdx = optionalColumn(header, "datetime")
	}
	closeIdx := optionalColumn(header, "close")
	if closeIdx < 0 {
		closeIdx = optionalColumn(header, "total_assets")
	}
	if dateIdx < 0 || closeIdx < 0 {
		return 0, fmt.Errorf("%s: missing date/close columns", path)
	}

	points := make([]domain.EquityPoint, 0, len(rows))
	for i, row := range rows {
		var p domain.EquityPoint
		if p.Date, err = parseDate(row[dateIdx]); err != nil {
			return 0, fmt.Errorf("%s line %d: date: %w", path, i+2, err)
		}
		if p.Equity, err = parseFloat(row[closeIdx]); err != nil {
			return 0, fmt.Errorf("%s line %d: close: %w", path, i+2, err)
		}
		points = append(points, p)
	}

	if err := l.prices.ReplaceBenchmark(symbol, points); err != nil {
		return 0, err
	}
	l.log.Info().Int("rows", len(points)).Str("symbol", symbol).Str("path", path).Msg("Ingested benchmark")
	return len(points), nil
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header from %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read CSV row from %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func columnIndex(header []string, names ...string) (map[string]int, error) {
	col := make(map[string]int, len(names))
	for _, name := range names {
		idx := optionalColumn(header, name)
		if idx < 0 {
			return nil, fmt.Errorf("missing required column %q", name)
		}
		col[name] = idx
	}
	return col, nil
}

func optionalColumn(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
