package api

import (
	"log/slog"
	"net/http"

	"commute-planner/internal/api/handlers"
	"commute-planner/internal/cache"
	"commute-planner/internal/config"
	"commute-planner/internal/metrics"
)

// NewRouter creates the HTTP router with all routes and middleware.
// collector may be nil to run without prometheus metrics.
func NewRouter(
	cfg *config.Config,
	planner handlers.RoutePlanner,
	alerts handlers.AlertSource,
	prober handlers.FeedProber,
	cacheMgr *cache.Manager,
	collector *metrics.Collector,
	log *slog.Logger,
) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(prober)
	rootHandler := handlers.NewRootHandler()
	routeHandler := handlers.NewRouteHandler(planner, alerts, collector)
	alertHandler := handlers.NewAlertHandler(alerts, collector)
	statsHandler := handlers.NewStatsHandler(cacheMgr)

	mux.HandleFunc("GET /", rootHandler.Index)
	mux.HandleFunc("GET /api", rootHandler.Index)
	mux.HandleFunc("GET /health", healthHandler.Health)

	mux.HandleFunc("GET /routes", routeHandler.Calculate)
	mux.HandleFunc("POST /routes/alerts", routeHandler.CheckAlerts)

	mux.HandleFunc("GET /alerts", alertHandler.Commute)
	mux.HandleFunc("GET /alerts/active", alertHandler.Active)

	mux.HandleFunc("GET /stats/cache", statsHandler.Cache)
	mux.HandleFunc("GET /stats/performance", statsHandler.Performance)
	mux.HandleFunc("POST /stats/cache/cleanup", statsHandler.Cleanup)

	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}

	return Chain(mux,
		Recovery(log),
		Logging(log),
		CORS,
		Timeout(cfg.HTTPTimeout),
	)
}
