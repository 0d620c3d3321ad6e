// Package main is the entry point for the commute-planner server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"commute-planner/internal/alerts"
	"commute-planner/internal/api"
	"commute-planner/internal/cache"
	"commute-planner/internal/config"
	"commute-planner/internal/feeds"
	"commute-planner/internal/geo"
	"commute-planner/internal/metrics"
	"commute-planner/internal/routes"
	"commute-planner/internal/stations"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if cfg.IsDevelopment() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Static data: loaded once, read-only for the life of the process.
	index := stations.NewIndex()
	if err := index.Load(cfg.StationsFile); err != nil {
		log.Error("loading stations", "file", cfg.StationsFile, "error", err)
		os.Exit(1)
	}
	topology := stations.NewTopology()
	if err := topology.Load(cfg.HubsFile); err != nil {
		log.Error("loading transfer hubs", "file", cfg.HubsFile, "error", err)
		os.Exit(1)
	}
	schedule := feeds.NewSchedule()
	if err := schedule.Load(cfg.ScheduleFile); err != nil {
		log.Error("loading schedule tables", "file", cfg.ScheduleFile, "error", err)
		os.Exit(1)
	}
	log.Info("static data loaded", "stations", index.Count(), "hubs", topology.Count())

	collector := metrics.NewCollector()
	cacheMgr := cache.NewManager(log,
		cache.WithTTL(cache.CategoryRealtime, cfg.RealtimeTTL),
		cache.WithTTL(cache.CategoryAlerts, cfg.AlertsTTL),
		cache.WithTTL(cache.CategoryHealth, cfg.HealthTTL),
		cache.WithTTL(cache.CategoryRoutes, cfg.RoutesTTL),
		cache.WithRefreshThreshold(cfg.RefreshThreshold),
		cache.WithRecorder(collector),
	)

	gateway := feeds.NewGateway(cacheMgr, schedule, index, nil, cfg.HTTPTimeout, log)
	estimator := geo.NewEstimator(cfg.WalkBufferMinutes)

	classifier := alerts.NewKeywordClassifier(index.Names())
	correlator := alerts.NewCorrelator(cacheMgr, index, classifier, cfg.AlertsFeedURL, cfg.HTTPTimeout, log)

	composer := routes.NewComposer(index, topology, gateway, estimator, cacheMgr, correlator, log)

	// Periodic bulk eviction; entries otherwise expire lazily on access.
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := cacheMgr.Cleanup(); n > 0 {
					log.Debug("cache cleanup", "evicted", n)
				}
			}
		}
	}()

	router := api.NewRouter(cfg, composer, correlator, gateway, cacheMgr, collector, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
