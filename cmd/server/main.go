// Package main is the entry point for the risk-analytics engine server.
// It wires the price-history store, the position source and the risk
// service, exposes the results over HTTP and runs the cache maintenance
// jobs.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aristath/riskengine/internal/config"
	"github.com/aristath/riskengine/internal/modules/history"
	"github.com/aristath/riskengine/internal/modules/portfolio"
	"github.com/aristath/riskengine/internal/modules/risk"
	riskhandlers "github.com/aristath/riskengine/internal/modules/risk/handlers"
	"github.com/aristath/riskengine/internal/server"
	"github.com/aristath/riskengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create data directory")
	}

	db, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer db.Close()

	historyDB := history.NewHistoryDB(db, log)
	positions := portfolio.NewFileSource(filepath.Join(cfg.DataDir, "positions.json"), log)

	service := risk.NewService(historyDB, positions, cfg.Risk, log)

	// Restore the correlation cache from the last snapshot; a missing or
	// stale snapshot just means a cold start.
	if err := service.Analyzer.LoadCache(cfg.CacheSnapshotPath()); err != nil {
		log.Warn().Err(err).Msg("Failed to load cache snapshot, starting cold")
	} else if n := service.Analyzer.PruneCache(cfg.Risk.CacheMaxAge); n > 0 {
		log.Info().Int("pruned", n).Msg("Pruned stale cache entries")
	}

	scheduler := cron.New()
	// Warm the correlation cache before US market open.
	if _, err := scheduler.AddFunc("30 6 * * 1-5", func() {
		if err := service.WarmCache(); err != nil {
			log.Warn().Err(err).Msg("Cache warm-up failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache warm-up")
	}
	// Persist the cache hourly so restarts stay warm.
	if _, err := scheduler.AddFunc("@hourly", func() {
		if err := service.Analyzer.SaveCache(cfg.CacheSnapshotPath()); err != nil {
			log.Warn().Err(err).Msg("Cache snapshot failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache snapshot")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Log:          log,
		RiskHandlers: riskhandlers.NewHandler(service, log),
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
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}

	if err := service.Analyzer.SaveCache(cfg.CacheSnapshotPath()); err != nil {
		log.Warn().Err(err).Msg("Failed to save cache snapshot on shutdown")
	}
}
