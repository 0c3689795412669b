// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases and CSV drops (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// CSV ingest locations, relative to DataDir unless absolute.
	// Empty means "skip ingest for this table".
	MonthlyScoresCSV  string
	DailyPricesCSV    string
	BenchmarkCSV      string
	BenchmarkSymbol   string
	InitialBalance    float64
	TradingFee        float64 // proportional fee per side, e.g. 0.0047
	RiskFreeRate      float64 // annualized, used by Sharpe/Sortino
	PenalizeDataGaps  bool    // subtract a per-gap penalty from trial objectives
	OptimizerWorkers  int     // parallel trial evaluators for independent samplers
	EvalCronSpec      string  // schedule for the out-of-sample refresh job
	InSampleStart     time.Time
	InSampleEnd       time.Time
	OutOfSampleStart  time.Time
	OutOfSampleEnd    time.Time
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FUNDFOLIO_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8001),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		MonthlyScoresCSV: getEnv("MONTHLY_SCORES_CSV", ""),
		DailyPricesCSV:   getEnv("DAILY_PRICES_CSV", ""),
		BenchmarkCSV:     getEnv("BENCHMARK_CSV", ""),
		BenchmarkSymbol:  getEnv("BENCHMARK_SYMBOL", "VNINDEX"),
		InitialBalance:   getEnvAsFloat("INITIAL_BALANCE", 1_000_000),
		TradingFee:       getEnvAsFloat("TRADING_FEE", 0),
		RiskFreeRate:     getEnvAsFloat("RISK_FREE_RATE_ANNUAL", 0),
		PenalizeDataGaps: getEnvAsBool("PENALIZE_DATA_GAPS", false),
		OptimizerWorkers: getEnvAsInt("OPTIMIZER_WORKERS", 1),
		EvalCronSpec:     getEnv("EVAL_CRON_SPEC", "0 2 * * *"),
	}

	cfg.InSampleStart, err = getEnvAsDate("IN_SAMPLE_START", "2023-02-01")
	if err != nil {
		return nil, err
	}
	cfg.InSampleEnd, err = getEnvAsDate("IN_SAMPLE_END", "2024-01-31")
	if err != nil {
		return nil, err
	}
	cfg.OutOfSampleStart, err = getEnvAsDate("OUT_OF_SAMPLE_START", "2024-02-01")
	if err != nil {
		return nil, err
	}
	cfg.OutOfSampleEnd, err = getEnvAsDate("OUT_OF_SAMPLE_END", "2024-07-31")
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %f", c.InitialBalance)
	}
	if c.TradingFee < 0 || c.TradingFee >= 1 {
		return fmt.Errorf("trading fee must be in [0, 1), got %f", c.TradingFee)
	}
	if c.OptimizerWorkers < 1 {
		return fmt.Errorf("optimizer workers must be at least 1, got %d", c.OptimizerWorkers)
	}
	if !c.InSampleEnd.After(c.InSampleStart) {
		return fmt.Errorf("in-sample end must be after start")
	}
	return nil
}

// ResolvePath resolves a possibly-relative path against DataDir.
// Empty input stays empty.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDate(key, fallback string) (time.Time, error) {
	value := getEnv(key, fallback)
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date in %s: %w", key, err)
	}
	return t, nil
}
