// Package server provides the HTTP server and routing for Fundfolio.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/vqtran/fundfolio/internal/config"
	"github.com/vqtran/fundfolio/internal/database"
	"github.com/vqtran/fundfolio/internal/modules/backtest"
	backtesthandlers "github.com/vqtran/fundfolio/internal/modules/backtest/handlers"
	"github.com/vqtran/fundfolio/internal/modules/optimization"
	optimizationhandlers "github.com/vqtran/fundfolio/internal/modules/optimization/handlers"
	"github.com/vqtran/fundfolio/internal/modules/universe"
	universehandlers "github.com/vqtran/fundfolio/internal/modules/universe/handlers"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Config          *config.Config
	MarketDataDB    *database.DB
	ResultsDB       *database.DB
	BacktestService *backtest.Service
	ResultsRepo     *backtest.ResultsRepository
	StudyRepo       *optimization.StudyRepository
	ScoreRepo       *universe.ScoreRepository
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	systemHandlers *SystemHandlers
	backtests      *backtesthandlers.Handler
	studies        *optimizationhandlers.Handler
	universe       *universehandlers.Handler
	scores         *universe.ScoreRepository
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.Config.DataDir,
			cfg.MarketDataDB,
			cfg.ResultsDB,
			cfg.ScoreRepo,
		),
		backtests: backtesthandlers.NewHandler(
			cfg.BacktestService,
			cfg.ResultsRepo,
			cfg.Config.InSampleStart,
			cfg.Config.InSampleEnd,
			cfg.Log,
		),
		studies: optimizationhandlers.NewHandler(
			cfg.BacktestService,
			cfg.StudyRepo,
			cfg.Config.OptimizerWorkers,
			cfg.Config.InSampleStart,
			cfg.Config.InSampleEnd,
			cfg.Log,
		),
		universe: universehandlers.NewHandler(cfg.ScoreRepo, cfg.Log),
		scores:   cfg.ScoreRepo,
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Optimization studies can run for a while; the start endpoint returns
	// immediately, so a minute covers everything that runs inline.
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/system/databases", s.systemHandlers.HandleDatabaseStats)

		s.backtests.RegisterRoutes(r)
		s.studies.RegisterRoutes(r)
		s.universe.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
