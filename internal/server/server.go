// Package server provides the HTTP boundary over the analysis engine.
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

	"github.com/quantfolio/quantfolio/internal/engine"
	"github.com/quantfolio/quantfolio/internal/modules/marketdata"
	"github.com/quantfolio/quantfolio/internal/modules/portfolio"
)

// Config holds server configuration.
type Config struct {
	Port       int
	Log        zerolog.Logger
	Engine     *engine.Engine
	Portfolios *portfolio.Service
	Cache      *marketdata.Cache
	RiskFree   float64
	DevMode    bool
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	engine     *engine.Engine
	portfolios *portfolio.Service
	cache      *marketdata.Cache
	riskFree   float64
}

// New creates the server and mounts all routes.
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		engine:     cfg.Engine,
		portfolios: cfg.Portfolios,
		cache:      cfg.Cache,
		riskFree:   cfg.RiskFree,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
	if cfg.DevMode {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)
			r.Post("/", s.handleCreatePortfolio)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPortfolio)
				r.Delete("/", s.handleDeletePortfolio)
				r.Post("/buy", s.handleBuy)
				r.Post("/sell", s.handleSell)
				r.Get("/allocation", s.handleAllocation)
				r.Get("/analyze", s.handleAnalyze)
				r.Get("/correlation", s.handleCorrelation)
				r.Post("/optimize", s.handleOptimize)
				r.Get("/frontier", s.handleFrontier)
			})
		})

		r.Get("/symbols/{symbol}/metrics", s.handleSymbolMetrics)
		r.Get("/symbols/{symbol}/indicators", s.handleSymbolIndicators)
		r.Delete("/cache", s.handleFlushCache)
	})
}

// Start begins serving. Blocks until shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.router }
