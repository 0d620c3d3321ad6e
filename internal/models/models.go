// Package models defines shared data types
package models

import (
	"errors"
	"time"
)

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Station is a logical subway station. Multiple physical stop records
// may consolidate into one Station (shared parent key or very close
// coordinates); identity is the ID.
type Station struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Borough string   `json:"borough" yaml:"borough"`
	Lines   []string `json:"lines" yaml:"lines"`
	Lat     float64  `json:"lat" yaml:"lat"`
	Lng     float64  `json:"lng" yaml:"lng"`
	// FeedStopIDs maps a line code to the GTFS stop id used by that
	// line's realtime feed for this station.
	FeedStopIDs map[string]string `json:"feed_stop_ids" yaml:"feed_stop_ids"`
}

// HasLine reports whether the station is served by the given line.
func (s Station) HasLine(line string) bool {
	for _, l := range s.Lines {
		if l == line {
			return true
		}
	}
	return false
}

// TransferHub is a station where two or more lines can be boarded.
type TransferHub struct {
	Station  string   `json:"station" yaml:"station"`
	Lines    []string `json:"lines" yaml:"lines"`
	Priority int      `json:"priority" yaml:"priority"`
	// TransferMinutes maps "FROM-TO" line pairs to walking minutes
	// between platforms. 0 means a same-platform transfer.
	TransferMinutes map[string]int `json:"transfer_minutes" yaml:"transfer_minutes"`
}

// ArrivalPrediction is one predicted stop event from a realtime feed.
// Sequences are always sorted ascending by departure time.
type ArrivalPrediction struct {
	StopID       string `json:"stop_id"`
	StopSequence int    `json:"stop_sequence"`
	Arrival      int64  `json:"arrival"`
	Departure    int64  `json:"departure"`
}

// DepartureTime returns the departure as a time.Time, falling back to
// the arrival when the feed omitted a departure.
func (p ArrivalPrediction) DepartureTime() time.Time {
	if p.Departure > 0 {
		return time.Unix(p.Departure, 0)
	}
	return time.Unix(p.Arrival, 0)
}

// ArrivalAsTime returns the arrival as a time.Time, falling back to the
// departure when the feed omitted an arrival.
func (p ArrivalPrediction) ArrivalAsTime() time.Time {
	if p.Arrival > 0 {
		return time.Unix(p.Arrival, 0)
	}
	return time.Unix(p.Departure, 0)
}

// StepType tags a route step variant.
type StepType string

const (
	StepWalk     StepType = "walk"
	StepWait     StepType = "wait"
	StepTransit  StepType = "transit"
	StepTransfer StepType = "transfer"
	StepArrive   StepType = "arrive"
)

// DataSource tags where a timed value came from.
type DataSource string

const (
	SourceRealtime  DataSource = "realtime"
	SourceEstimated DataSource = "estimated"
	SourceFixed     DataSource = "fixed"
)

// RouteStep is one leg of an itinerary.
type RouteStep struct {
	Type        StepType   `json:"type"`
	Minutes     int        `json:"minutes"`
	Source      DataSource `json:"source"`
	Line        string     `json:"line,omitempty"`
	FromStation string     `json:"from_station,omitempty"`
	ToStation   string     `json:"to_station,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Route is a ranked itinerary.
type Route struct {
	ID            string         `json:"id"`
	ArrivalTime   time.Time      `json:"arrival_time"`
	TotalMinutes  int            `json:"total_minutes"`
	Steps         []RouteStep    `json:"steps"`
	TransferCount int            `json:"transfer_count"`
	IsDirect      bool           `json:"is_direct"`
	Confidence    int            `json:"confidence"`
	DataSource    DataSource     `json:"data_source"`
	Alerts        []ServiceAlert `json:"alerts,omitempty"`
}

// Severity of a service alert.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySevere  Severity = "severe"
)

// Rank returns an ordering for severity comparisons.
func (s Severity) Rank() int {
	switch s {
	case SeveritySevere:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// InformedEntity scopes an alert to a route, stop, or direction.
type InformedEntity struct {
	RouteID     string `json:"route_id,omitempty"`
	StopID      string `json:"stop_id,omitempty"`
	DirectionID *int   `json:"direction_id,omitempty"`
}

// ActivePeriod bounds when an alert applies. Nil ends are open.
type ActivePeriod struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ServiceAlert is a disruption notice from the alert feed.
type ServiceAlert struct {
	ID               string           `json:"id"`
	Header           string           `json:"header"`
	Description      string           `json:"description"`
	Lines            []string         `json:"lines"`
	Severity         Severity         `json:"severity"`
	InformedEntities []InformedEntity `json:"informed_entities,omitempty"`
	ActivePeriod     *ActivePeriod    `json:"active_period,omitempty"`
	StationSkipping  bool             `json:"station_skipping"`
}

// ActiveAt reports whether the alert applies at t. An alert with no
// active period is always active; open start/end bounds are unbounded.
func (a ServiceAlert) ActiveAt(t time.Time) bool {
	if a.ActivePeriod == nil {
		return true
	}
	if a.ActivePeriod.Start != nil && t.Before(*a.ActivePeriod.Start) {
		return false
	}
	if a.ActivePeriod.End != nil && t.After(*a.ActivePeriod.End) {
		return false
	}
	return true
}

// AffectsLine reports whether the alert names the given line.
func (a ServiceAlert) AffectsLine(line string) bool {
	for _, l := range a.Lines {
		if l == line {
			return true
		}
	}
	return false
}

// AlertInfo is the result of correlating alerts against a route.
type AlertInfo struct {
	HasAlerts bool           `json:"has_alerts"`
	Severity  Severity       `json:"severity"`
	Alerts    []ServiceAlert `json:"alerts"`
}

// Shared error kinds. NotFound and NoConnection are absorbed into
// empty results at the API boundary; they exist so internal callers
// can tell "nothing there" apart from a broken feed.
var (
	ErrNotFound        = errors.New("not found")
	ErrFeedUnavailable = errors.New("feed unavailable")
	ErrNoConnection    = errors.New("no feasible connection")
	ErrBadPayload      = errors.New("malformed feed payload")
)
