// Package cache provides a TTL cache with per-category lifetimes,
// in-flight request de-duplication, and stale-while-revalidate
// background refresh.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Category selects the TTL bucket a key belongs to.
type Category string

const (
	CategoryRealtime Category = "realtime"
	CategoryAlerts   Category = "alerts"
	CategoryHealth   Category = "health"
	CategoryRoutes   Category = "routes"
)

// DefaultTTLs are used for categories not overridden in the config.
var DefaultTTLs = map[Category]time.Duration{
	CategoryRealtime: 10 * time.Minute,
	CategoryAlerts:   2 * time.Minute,
	CategoryHealth:   5 * time.Minute,
	CategoryRoutes:   1 * time.Minute,
}

// refreshThreshold is the fraction of the TTL after which a hit also
// triggers a background refresh.
const defaultRefreshThreshold = 0.8

// failureHistorySize bounds the ring of recorded fetcher failures.
const failureHistorySize = 32

// responseTimeHistory bounds the per-category fetch durations kept for
// stats reporting.
const responseTimeHistory = 50

// Recorder receives cache events; the metrics collector implements it.
type Recorder interface {
	CacheHit(category string)
	CacheMiss(category string)
	CacheRefresh(category string)
	FetchDuration(category string, d time.Duration)
}

type entry struct {
	payload     any
	timestamp   time.Time
	ttl         time.Duration
	accessCount int64
}

func (e *entry) validAt(now time.Time) bool {
	return now.Sub(e.timestamp) < e.ttl
}

// inflight tracks a fetch that concurrent callers can wait on instead
// of issuing their own.
type inflight struct {
	done    chan struct{}
	payload any
	err     error
}

// FailureRecord describes one failed fetch attempt.
type FailureRecord struct {
	Key      string        `json:"key"`
	Category string        `json:"category"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Manager is the single shared-mutation point of the system: a
// map-backed store plus a pending-fetch table, both guarded by one
// mutex. Fetches run outside the lock; entries are swapped in whole
// after the fetch completes.
type Manager struct {
	mu         sync.Mutex
	entries    map[string]*entry
	pending    map[string]*inflight
	refreshing map[string]bool

	ttls             map[Category]time.Duration
	refreshThreshold float64

	hits        int64
	misses      int64
	evictions   int64
	refreshes   int64
	dupsAvoided int64

	responseTimes map[Category][]time.Duration
	failures      []FailureRecord
	failureIdx    int

	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the TTL for one category.
func WithTTL(cat Category, ttl time.Duration) Option {
	return func(m *Manager) { m.ttls[cat] = ttl }
}

// WithRefreshThreshold sets the fraction of TTL after which a hit
// triggers a background refresh.
func WithRefreshThreshold(f float64) Option {
	return func(m *Manager) {
		if f > 0 && f < 1 {
			m.refreshThreshold = f
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a cache manager with default category TTLs.
func NewManager(log *slog.Logger, opts ...Option) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		entries:          make(map[string]*entry),
		pending:          make(map[string]*inflight),
		refreshing:       make(map[string]bool),
		ttls:             make(map[Category]time.Duration, len(DefaultTTLs)),
		refreshThreshold: defaultRefreshThreshold,
		responseTimes:    make(map[Category][]time.Duration),
		failures:         make([]FailureRecord, 0, failureHistorySize),
		log:              log,
		now:              time.Now,
	}
	for cat, ttl := range DefaultTTLs {
		m.ttls[cat] = ttl
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTLFor returns the TTL configured for a category.
func (m *Manager) TTLFor(cat Category) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl, ok := m.ttls[cat]; ok {
		return ttl
	}
	return time.Minute
}

func cacheKey(cat Category, key string) string {
	return string(cat) + ":" + key
}

// Get returns the cached value for key, fetching it on a miss. It is
// a package function because methods cannot be generic; the manager
// stores payloads as any and this wrapper restores the type.
//
// Concurrent callers for an uncached key share one fetch. A valid hit
// past the refresh threshold schedules a detached background refresh;
// the caller still gets the current value immediately. Fetcher errors
// propagate and are recorded, never retried here.
func Get[T any](ctx context.Context, m *Manager, key string, cat Category, fetcher func(context.Context) (T, error)) (T, error) {
	var zero T
	ck := cacheKey(cat, key)

	m.mu.Lock()
	now := m.now()

	if e, ok := m.entries[ck]; ok && e.validAt(now) {
		m.hits++
		e.accessCount++
		payload := e.payload
		needsRefresh := now.Sub(e.timestamp) >= time.Duration(float64(e.ttl)*m.refreshThreshold) &&
			!m.refreshing[ck] && m.pending[ck] == nil
		if needsRefresh {
			m.refreshing[ck] = true
		}
		m.mu.Unlock()

		if m.recorder != nil {
			m.recorder.CacheHit(string(cat))
		}
		if needsRefresh {
			go m.backgroundRefresh(ck, key, cat, wrapFetcher(fetcher))
		}
		v, ok := payload.(T)
		if !ok {
			return zero, fmt.Errorf("cache entry for %q holds %T, not the requested type", ck, payload)
		}
		return v, nil
	}

	if fl, ok := m.pending[ck]; ok {
		m.dupsAvoided++
		m.mu.Unlock()

		select {
		case <-fl.done:
		case <-ctx.Done():
			// The shared fetch keeps running for the other waiters.
			return zero, ctx.Err()
		}
		if fl.err != nil {
			return zero, fl.err
		}
		v, ok := fl.payload.(T)
		if !ok {
			return zero, fmt.Errorf("cache entry for %q holds %T, not the requested type", ck, fl.payload)
		}
		return v, nil
	}

	m.misses++
	fl := &inflight{done: make(chan struct{})}
	m.pending[ck] = fl
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.CacheMiss(string(cat))
	}

	start := m.now()
	value, err := fetcher(ctx)
	elapsed := m.now().Sub(start)

	m.mu.Lock()
	delete(m.pending, ck)
	m.recordResponseTime(cat, elapsed)
	if err != nil {
		m.recordFailure(ck, cat, err, elapsed)
		m.mu.Unlock()
		fl.err = err
		close(fl.done)
		return zero, err
	}
	m.storeLocked(ck, value, m.ttlLocked(cat))
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.FetchDuration(string(cat), elapsed)
	}
	fl.payload = value
	close(fl.done)
	return value, nil
}

func wrapFetcher[T any](fetcher func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return fetcher(ctx)
	}
}

// backgroundRefresh re-runs the fetcher for a key whose entry is aging.
// Failures are logged and dropped; the existing valid entry stays.
func (m *Manager) backgroundRefresh(ck, key string, cat Category, fetcher func(context.Context) (any, error)) {
	defer func() {
		m.mu.Lock()
		delete(m.refreshing, ck)
		m.mu.Unlock()
	}()

	start := m.now()
	value, err := fetcher(context.Background())
	elapsed := m.now().Sub(start)

	m.mu.Lock()
	m.recordResponseTime(cat, elapsed)
	if err != nil {
		m.recordFailure(ck, cat, err, elapsed)
		m.mu.Unlock()
		m.log.Warn("background refresh failed",
			"key", key, "category", string(cat), "duration", elapsed.String(), "error", err)
		return
	}
	m.refreshes++
	m.storeLocked(ck, value, m.ttlLocked(cat))
	m.mu.Unlock()

	if m.recorder != nil {
		m.recorder.CacheRefresh(string(cat))
	}
	m.log.Debug("background refresh completed",
		"key", key, "category", string(cat), "duration", elapsed.String())
}

// storeLocked swaps in a fresh entry. A completed fetch never replaces
// an entry written after it started serving: freshness is monotonic
// per key.
func (m *Manager) storeLocked(ck string, payload any, ttl time.Duration) {
	now := m.now()
	if existing, ok := m.entries[ck]; ok && existing.timestamp.After(now) {
		return
	}
	m.entries[ck] = &entry{payload: payload, timestamp: now, ttl: ttl}
}

func (m *Manager) ttlLocked(cat Category) time.Duration {
	if ttl, ok := m.ttls[cat]; ok {
		return ttl
	}
	return time.Minute
}

func (m *Manager) recordResponseTime(cat Category, d time.Duration) {
	times := append(m.responseTimes[cat], d)
	if len(times) > responseTimeHistory {
		times = times[len(times)-responseTimeHistory:]
	}
	m.responseTimes[cat] = times
}

func (m *Manager) recordFailure(ck string, cat Category, err error, d time.Duration) {
	rec := FailureRecord{
		Key:      ck,
		Category: string(cat),
		Error:    err.Error(),
		Duration: d,
		At:       m.now(),
	}
	if len(m.failures) < failureHistorySize {
		m.failures = append(m.failures, rec)
	} else {
		m.failures[m.failureIdx] = rec
	}
	m.failureIdx = (m.failureIdx + 1) % failureHistorySize
}

// Invalidate drops a key immediately.
func (m *Manager) Invalidate(cat Category, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, cacheKey(cat, key))
}

// Cleanup purges entries whose TTL has lapsed and returns how many
// were evicted. Entries never expire on their own; validity is checked
// on access and reclaimed here.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for ck, e := range m.entries {
		if !e.validAt(now) {
			delete(m.entries, ck)
			evicted++
		}
	}
	m.evictions += int64(evicted)
	return evicted
}

// Size returns the number of stored entries, valid or not.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
