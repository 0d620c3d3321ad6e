// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration.
type Config struct {
	Port string `validate:"required,numeric"`
	Env  string `validate:"required,oneof=development production test"`

	StationsFile string `validate:"required"`
	HubsFile     string `validate:"required"`
	ScheduleFile string `validate:"required"`

	AlertsFeedURL string `validate:"omitempty,url"`

	HTTPTimeout       time.Duration
	RealtimeTTL       time.Duration
	AlertsTTL         time.Duration
	HealthTTL         time.Duration
	RoutesTTL         time.Duration
	RefreshThreshold  float64 `validate:"gt=0,lt=1"`
	WalkBufferMinutes int     `validate:"gte=0,lte=10"`
	CleanupInterval   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "development"),
		StationsFile:      getEnv("STATIONS_FILE", "data/stations.yml"),
		HubsFile:          getEnv("HUBS_FILE", "data/hubs.yml"),
		ScheduleFile:      getEnv("SCHEDULE_FILE", "data/schedule.yml"),
		AlertsFeedURL:     getEnv("ALERTS_FEED_URL", ""),
		HTTPTimeout:       getDurationEnv("HTTP_TIMEOUT_SECONDS", 10),
		RealtimeTTL:       getDurationEnv("REALTIME_TTL_SECONDS", 600),
		AlertsTTL:         getDurationEnv("ALERTS_TTL_SECONDS", 120),
		HealthTTL:         getDurationEnv("HEALTH_TTL_SECONDS", 300),
		RoutesTTL:         getDurationEnv("ROUTES_TTL_SECONDS", 60),
		RefreshThreshold:  getFloatEnv("CACHE_REFRESH_THRESHOLD", 0.8),
		WalkBufferMinutes: getIntEnv("WALK_BUFFER_MINUTES", 1),
		CleanupInterval:   getDurationEnv("CACHE_CLEANUP_SECONDS", 300),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks that the loaded configuration is coherent.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
