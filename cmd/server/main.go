// Package main is the entry point for the Quantfolio portfolio analysis
// server. It wires the price cache, analysis engine, portfolio store and
// HTTP API together and runs background price refreshes on a schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfolio/quantfolio/internal/clients/yahoo"
	"github.com/quantfolio/quantfolio/internal/config"
	"github.com/quantfolio/quantfolio/internal/database"
	"github.com/quantfolio/quantfolio/internal/engine"
	"github.com/quantfolio/quantfolio/internal/modules/marketdata"
	"github.com/quantfolio/quantfolio/internal/modules/portfolio"
	"github.com/quantfolio/quantfolio/internal/scheduler"
	"github.com/quantfolio/quantfolio/internal/server"
	"github.com/quantfolio/quantfolio/pkg/formulas"
	"github.com/quantfolio/quantfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet, write to stderr and bail.
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Int("port", cfg.Port).Str("benchmark", cfg.BenchmarkSymbol).Msg("Starting quantfolio")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	// Databases: holdings need durability, the price cache can be rebuilt.
	portfolioDB, err := database.New(database.Config{Path: cfg.PortfolioDBPath, Profile: database.ProfileStandard})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	cacheDB, err := database.New(database.Config{Path: cfg.CacheDBPath, Profile: database.ProfileCache})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	store, err := marketdata.NewStore(cacheDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price store")
	}

	provider := yahoo.NewClient(log)
	cache := marketdata.NewCache(provider, cfg.CacheTTL, log, marketdata.WithStore(store))

	repo, err := portfolio.NewRepository(portfolioDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize portfolio repository")
	}
	portfolios := portfolio.NewService(repo, log)

	eng := engine.New(engine.Config{
		Cache:           cache,
		BenchmarkSymbol: cfg.BenchmarkSymbol,
		PeriodsPerYear:  formulas.TradingDaysPerYear,
		Log:             log,
	})

	sched := scheduler.New(log)
	refreshJob := scheduler.NewPriceRefreshJob(portfolios, cache, cfg.BenchmarkSymbol, log)
	if err := sched.AddJob("@hourly", refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Port:       cfg.Port,
		Log:        log,
		Engine:     eng,
		Portfolios: portfolios,
		Cache:      cache,
		RiskFree:   cfg.RiskFreeRate,
		DevMode:    cfg.DevMode,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	if err := cache.Flush(); err != nil {
		log.Warn().Err(err).Msg("Cache flush on shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
