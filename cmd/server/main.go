// Package main is the entry point for the Fundfolio backtest and
// optimization service. It ingests the preprocessed monthly score and daily
// price extracts, serves backtest and optimization APIs, and keeps an
// out-of-sample evaluation fresh on a nightly schedule.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/config"
	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/modules/backtest"
	"github.com/vqtran/fundfolio/internal/modules/metrics"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
	"github.com/vqtran/fundfolio/internal/modules/scoring"
	"github.com/vqtran/fundfolio/internal/modules/simulation"
	"github.com/vqtran/fundfolio/internal/modules/universe"
	"github.com/vqtran/fundfolio/internal/scheduler"
	"github.com/vqtran/fundfolio/internal/server"
	"github.com/vqtran/fundfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Fundfolio")

	// Two databases: market data is reloadable from CSV extracts, results
	// are the durable record of runs and studies.
	marketDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "marketdata.db"),
		Name:    "marketdata",
		Profile: database.ProfileStandard,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open market data database")
	}
	defer marketDataDB.Close()

	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Name:    "results",
		Profile: database.ProfileResults,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	for _, db := range []*database.DB{marketDataDB, resultsDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("db", db.Name()).Msg("Migration failed")
		}
	}

	// Repositories
	scoreRepo := universe.NewScoreRepository(marketDataDB.Conn(), log)
	priceRepo := universe.NewPriceRepository(marketDataDB.Conn(), log)
	resultsRepo := backtest.NewResultsRepository(resultsDB.Conn(), log)
	studyRepo := optimization.NewStudyRepository(resultsDB.Conn(), log)

	// CSV ingest runs at startup when drop locations are configured.
	ingestCSVData(cfg, scoreRepo, priceRepo, log)

	// Services
	scoringEngine := scoring.NewEngine(log)
	simulator := simulation.New(simulation.Config{
		InitialBalance: cfg.InitialBalance,
		TradingFee:     cfg.TradingFee,
	}, scoringEngine, log)
	calculator := metrics.NewCalculator(metrics.Config{RiskFreeRate: cfg.RiskFreeRate})
	backtestService := backtest.NewService(
		scoreRepo,
		priceRepo,
		resultsRepo,
		simulator,
		calculator,
		cfg.BenchmarkSymbol,
		cfg.PenalizeDataGaps,
		log,
	)

	// Nightly out-of-sample refresh
	sched := scheduler.New(log)
	evalJob := scheduler.NewEvaluationJob(
		backtestService, studyRepo, cfg.OutOfSampleStart, cfg.OutOfSampleEnd, log)
	if err := sched.AddJob(cfg.EvalCronSpec, evalJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register evaluation job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:             log,
		Config:          cfg,
		MarketDataDB:    marketDataDB,
		ResultsDB:       resultsDB,
		BacktestService: backtestService,
		ResultsRepo:     resultsRepo,
		StudyRepo:       studyRepo,
		ScoreRepo:       scoreRepo,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Block until SIGINT or SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// ingestCSVData loads any configured CSV drops into the market data
// database. Each table is replaced wholesale; an unset location skips that
// table, a configured but unreadable file fails startup.
func ingestCSVData(cfg *config.Config, scoreRepo *universe.ScoreRepository, priceRepo *universe.PriceRepository, log zerolog.Logger) {
	loader := universe.NewLoader(scoreRepo, priceRepo, log)

	if path := cfg.ResolvePath(cfg.MonthlyScoresCSV); path != "" {
		n, err := loader.LoadMonthlyScores(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Monthly score ingest failed")
		}
		log.Info().Int("rows", n).Str("path", path).Msg("Monthly scores loaded")
	}

	if path := cfg.ResolvePath(cfg.DailyPricesCSV); path != "" {
		n, err := loader.LoadDailyPrices(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Daily price ingest failed")
		}
		log.Info().Int("rows", n).Str("path", path).Msg("Daily prices loaded")
	}

	if path := cfg.ResolvePath(cfg.BenchmarkCSV); path != "" {
		n, err := loader.LoadBenchmark(path, cfg.BenchmarkSymbol)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Benchmark ingest failed")
		}
		log.Info().Int("rows", n).Str("symbol", cfg.BenchmarkSymbol).Msg("Benchmark loaded")
	}
}
