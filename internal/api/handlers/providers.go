// Package handlers implements the HTTP endpoints consumed by the UI
// layer.
package handlers

import (
	"context"

	"commute-planner/internal/models"
	"commute-planner/internal/routes"
)

// RoutePlanner computes itineraries; the route composer implements it.
type RoutePlanner interface {
	CalculateRoutes(ctx context.Context, req routes.Request) ([]models.Route, error)
}

// AlertSource serves correlated alerts; the alert correlator
// implements it.
type AlertSource interface {
	ActiveAlerts(ctx context.Context) ([]models.ServiceAlert, error)
	AlertsForCommute(ctx context.Context, lines []string, direction int, stationIDs []string) ([]models.ServiceAlert, error)
	CheckRoute(ctx context.Context, route models.Route, direction int) (models.AlertInfo, error)
}
