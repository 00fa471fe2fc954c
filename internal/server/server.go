// Package server provides the HTTP server and routing for the portfolio
// engine.
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

	"github.com/inikiforov/dpk-portfolio/internal/config"
	"github.com/inikiforov/dpk-portfolio/internal/database"
	ledgerhandlers "github.com/inikiforov/dpk-portfolio/internal/modules/ledger/handlers"
	markethandlers "github.com/inikiforov/dpk-portfolio/internal/modules/market_hours/handlers"
	marketdatahandlers "github.com/inikiforov/dpk-portfolio/internal/modules/marketdata/handlers"
	portfoliohandlers "github.com/inikiforov/dpk-portfolio/internal/modules/portfolio/handlers"
	reporthandlers "github.com/inikiforov/dpk-portfolio/internal/modules/reports/handlers"
)

// Config holds server configuration
type Config struct {
	Config             *config.Config
	Log                zerolog.Logger
	PortfolioDB        *database.DB
	PortfolioHandlers  *portfoliohandlers.Handler
	LedgerHandlers     *ledgerhandlers.Handler
	ReportHandlers     *reporthandlers.Handler
	MarketHandlers     *markethandlers.Handler
	MarketDataHandlers *marketdatahandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	system *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg.Config,
		system: NewSystemHandlers(cfg.PortfolioDB, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Config.Port),
		Handler: s.router,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.CORSAllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.system.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/health", s.system.HandleSystemHealth)

		cfg.PortfolioHandlers.RegisterRoutes(r)
		cfg.LedgerHandlers.RegisterRoutes(r)
		cfg.ReportHandlers.RegisterRoutes(r)
		cfg.MarketHandlers.RegisterRoutes(r)
		cfg.MarketDataHandlers.RegisterRoutes(r)
	})
}

// loggingMiddleware logs requests with status and duration
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
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
