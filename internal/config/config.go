// Package config manages perfwatch configuration from multiple sources.
//
// Configuration file separation:
//   - .env: deployment overrides ONLY (PERFWATCH_* keys)
//   - system.json: application settings (sensitivity, windows, limits,
//     schedules)
//   - channels.json: notification channel definitions, hot-reloaded by
//     the watcher
//
// Environment variables always take precedence over system.json.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/logging"
	"github.com/perfwatch/perfwatch/internal/stats"
)

// Sample store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// DataDir is where every persisted file lives: system.json,
	// channels.json, engine snapshots, run history, screenshots.
	DataDir string
	// Store selects the sample repository backend, json or sqlite.
	Store string

	// Logging settings
	LogLevel  string
	LogFormat string
	LogFile   string

	// Analysis settings
	Sensitivity     string
	TrendWindowDays int
	MinDataPoints   int

	// Retention for stored runs and screenshots.
	RetentionDays int

	// Alerting pipeline settings
	RateLimitPerHour    int
	RateLimitPerDay     int
	AggregationWindow   time.Duration
	AggregationMaxCount int
	EscalationAfter     time.Duration
	MaxEscalations      int

	// Background job schedules
	AnalysisInterval    time.Duration
	MaintenanceInterval time.Duration
	AutomatedInterval   time.Duration

	// Notification channels loaded from channels.json.
	Channels []alerting.ChannelConfig

	// Track which settings are overridden by environment variables
	EnvOverrides map[string]bool `json:"-"`
}

// Global persistence instance for saving
var globalPersistence *Persistence

// Load reads configuration from the data directory and environment.
func Load() (*Config, error) {
	dataDir := "/var/lib/perfwatch"
	if dir := os.Getenv("PERFWATCH_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	// Load .env file if it exists (for deployment overrides)
	envFile := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Warn().Err(err).Str("file", envFile).Msg("Failed to load .env file")
		} else {
			log.Info().Str("file", envFile).Msg("Loaded .env file for deployment overrides")
		}
	}

	// Also try loading from current directory for development
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	cfg := &Config{
		DataDir:             dataDir,
		Store:               StoreJSON,
		LogLevel:            "info",
		LogFormat:           "auto",
		Sensitivity:         string(stats.SensitivityMedium),
		TrendWindowDays:     stats.DefaultTrendWindowDays,
		MinDataPoints:       stats.DefaultMinDataPoints,
		RetentionDays:       30,
		RateLimitPerHour:    20,
		RateLimitPerDay:     100,
		AggregationWindow:   10 * time.Minute,
		AggregationMaxCount: 10,
		EscalationAfter:     30 * time.Minute,
		MaxEscalations:      3,
		AnalysisInterval:    2 * time.Hour,
		MaintenanceInterval: 6 * time.Hour,
		AutomatedInterval:   4 * time.Hour,
		EnvOverrides:        make(map[string]bool),
	}

	persistence := NewPersistence(dataDir)
	globalPersistence = persistence

	if settings, err := persistence.LoadSystemSettings(); err == nil && settings != nil {
		cfg.applySystemSettings(settings)
		log.Info().
			Str("sensitivity", cfg.Sensitivity).
			Int("trendWindowDays", cfg.TrendWindowDays).
			Str("logLevel", cfg.LogLevel).
			Msg("Loaded system configuration")
	} else if err != nil {
		log.Warn().Err(err).Msg("Failed to load system configuration")
	} else {
		// No system.json exists - create default one
		log.Info().Msg("No system.json found, creating default")
		if err := persistence.SaveSystemSettings(cfg.systemSettings()); err != nil {
			log.Warn().Err(err).Msg("Failed to create default system.json")
		}
	}

	channels, err := persistence.LoadChannels()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load channels configuration")
	}
	if channels == nil {
		// No channels.json exists - create one with a console channel so
		// alerts surface somewhere out of the box.
		channels = DefaultChannels()
		if err := persistence.SaveChannels(channels); err != nil {
			log.Warn().Err(err).Msg("Failed to create default channels.json")
		} else {
			log.Info().Msg("No channels.json found, created default console channel")
		}
	}
	cfg.Channels = channels

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applySystemSettings merges persisted settings over the defaults.
func (c *Config) applySystemSettings(s *SystemSettings) {
	if s.LogLevel != "" {
		c.LogLevel = s.LogLevel
	}
	if s.LogFormat != "" {
		c.LogFormat = s.LogFormat
	}
	if s.LogFile != "" {
		c.LogFile = s.LogFile
	}
	if s.Store != "" {
		c.Store = s.Store
	}
	if s.Sensitivity != "" {
		c.Sensitivity = s.Sensitivity
	}
	if s.TrendWindowDays > 0 {
		c.TrendWindowDays = s.TrendWindowDays
	}
	if s.MinDataPoints > 0 {
		c.MinDataPoints = s.MinDataPoints
	}
	if s.RetentionDays > 0 {
		c.RetentionDays = s.RetentionDays
	}
	if s.RateLimitPerHour > 0 {
		c.RateLimitPerHour = s.RateLimitPerHour
	}
	if s.RateLimitPerDay > 0 {
		c.RateLimitPerDay = s.RateLimitPerDay
	}
	if s.AggregationWindowSeconds > 0 {
		c.AggregationWindow = time.Duration(s.AggregationWindowSeconds) * time.Second
	}
	if s.AggregationMaxCount > 0 {
		c.AggregationMaxCount = s.AggregationMaxCount
	}
	if s.EscalationAfterMinutes > 0 {
		c.EscalationAfter = time.Duration(s.EscalationAfterMinutes) * time.Minute
	}
	if s.MaxEscalations > 0 {
		c.MaxEscalations = s.MaxEscalations
	}
	if s.AnalysisIntervalMinutes > 0 {
		c.AnalysisInterval = time.Duration(s.AnalysisIntervalMinutes) * time.Minute
	}
	if s.MaintenanceIntervalHours > 0 {
		c.MaintenanceInterval = time.Duration(s.MaintenanceIntervalHours) * time.Hour
	}
	if s.AutomatedIntervalMinutes > 0 {
		c.AutomatedInterval = time.Duration(s.AutomatedIntervalMinutes) * time.Minute
	}
}

// systemSettings converts the runtime config back to its persisted form.
func (c *Config) systemSettings() SystemSettings {
	return SystemSettings{
		LogLevel:                 c.LogLevel,
		LogFormat:                c.LogFormat,
		LogFile:                  c.LogFile,
		Store:                    c.Store,
		Sensitivity:              c.Sensitivity,
		TrendWindowDays:          c.TrendWindowDays,
		MinDataPoints:            c.MinDataPoints,
		RetentionDays:            c.RetentionDays,
		RateLimitPerHour:         c.RateLimitPerHour,
		RateLimitPerDay:          c.RateLimitPerDay,
		AggregationWindowSeconds: int(c.AggregationWindow.Seconds()),
		AggregationMaxCount:      c.AggregationMaxCount,
		EscalationAfterMinutes:   int(c.EscalationAfter.Minutes()),
		MaxEscalations:           c.MaxEscalations,
		AnalysisIntervalMinutes:  int(c.AnalysisInterval.Minutes()),
		MaintenanceIntervalHours: int(c.MaintenanceInterval.Hours()),
		AutomatedIntervalMinutes: int(c.AutomatedInterval.Minutes()),
	}
}

// applyEnvOverrides applies PERFWATCH_* environment variables over the
// loaded settings, recording each override.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PERFWATCH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
		c.EnvOverrides["logLevel"] = true
		log.Info().Str("level", v).Msg("Log level overridden by PERFWATCH_LOG_LEVEL env var")
	}
	if v := os.Getenv("PERFWATCH_LOG_FORMAT"); v != "" {
		c.LogFormat = v
		c.EnvOverrides["logFormat"] = true
	}
	if v := os.Getenv("PERFWATCH_LOG_FILE"); v != "" {
		c.LogFile = v
		c.EnvOverrides["logFile"] = true
	}
	if v := os.Getenv("PERFWATCH_STORE"); v != "" {
		c.Store = v
		c.EnvOverrides["store"] = true
		log.Info().Str("store", v).Msg("Sample store overridden by PERFWATCH_STORE env var")
	}
	if v := os.Getenv("PERFWATCH_SENSITIVITY"); v != "" {
		c.Sensitivity = v
		c.EnvOverrides["sensitivity"] = true
		log.Info().Str("sensitivity", v).Msg("Sensitivity overridden by PERFWATCH_SENSITIVITY env var")
	}
	if v := os.Getenv("PERFWATCH_TREND_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TrendWindowDays = n
			c.EnvOverrides["trendWindowDays"] = true
		}
	}
	if v := os.Getenv("PERFWATCH_MIN_DATA_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MinDataPoints = n
			c.EnvOverrides["minDataPoints"] = true
		}
	}
	if v := os.Getenv("PERFWATCH_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RetentionDays = n
			c.EnvOverrides["retentionDays"] = true
		}
	}
	if d, ok := envDuration("PERFWATCH_AGGREGATION_WINDOW"); ok {
		c.AggregationWindow = d
		c.EnvOverrides["aggregationWindow"] = true
	}
	if d, ok := envDuration("PERFWATCH_ESCALATION_AFTER"); ok {
		c.EscalationAfter = d
		c.EnvOverrides["escalationAfter"] = true
		log.Info().Dur("after", d).Msg("Escalation delay overridden by PERFWATCH_ESCALATION_AFTER env var")
	}
	if d, ok := envDuration("PERFWATCH_ANALYSIS_INTERVAL"); ok {
		c.AnalysisInterval = d
		c.EnvOverrides["analysisInterval"] = true
	}
}

// envDuration reads a duration env var. A bare number means seconds;
// otherwise the value must parse as a Go duration string.
func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	log.Warn().Str("key", key).Str("value", v).Msg("Ignoring unparseable duration env var")
	return 0, false
}

// SaveConfig writes the configuration back to the data directory.
func SaveConfig(cfg *Config) error {
	if globalPersistence == nil {
		return fmt.Errorf("config persistence not initialized")
	}
	if err := globalPersistence.SaveSystemSettings(cfg.systemSettings()); err != nil {
		return fmt.Errorf("failed to save system config: %w", err)
	}
	if err := globalPersistence.SaveChannels(cfg.Channels); err != nil {
		return fmt.Errorf("failed to save channels config: %w", err)
	}
	return nil
}

// SaveChannels writes just the channel definitions.
func SaveChannels(channels []alerting.ChannelConfig) error {
	if globalPersistence == nil {
		return fmt.Errorf("config persistence not initialized")
	}
	return globalPersistence.SaveChannels(channels)
}

// Validate checks if the configuration is valid. Invalid channel
// entries are dropped with a warning rather than failing the load.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("invalid store backend: %q (want %s or %s)", c.Store, StoreJSON, StoreSQLite)
	}

	switch stats.Sensitivity(c.Sensitivity) {
	case stats.SensitivityLow, stats.SensitivityMedium, stats.SensitivityHigh:
	default:
		return fmt.Errorf("invalid sensitivity: %q", c.Sensitivity)
	}

	if c.TrendWindowDays < 1 {
		return fmt.Errorf("trend window must be at least 1 day")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention must be at least 1 day")
	}
	if c.AggregationWindow < time.Second {
		return fmt.Errorf("aggregation window must be at least 1 second")
	}
	if c.EscalationAfter < time.Second {
		return fmt.Errorf("escalation delay must be at least 1 second")
	}
	if c.AnalysisInterval < time.Minute {
		return fmt.Errorf("analysis interval must be at least 1 minute")
	}

	c.Channels = filterChannels(c.Channels)

	return nil
}

// filterChannels drops channel entries that cannot be built, keeping
// the rest.
func filterChannels(channels []alerting.ChannelConfig) []alerting.ChannelConfig {
	valid := make([]alerting.ChannelConfig, 0, len(channels))
	for i, ch := range channels {
		if ch.Name == "" {
			log.Warn().Int("channel", i+1).Msg("Channel missing name, skipping")
			continue
		}
		switch ch.Type {
		case "console", "file", "webhook", "chatops", "slack", "email":
		default:
			log.Warn().Str("channel", ch.Name).Str("type", ch.Type).Msg("Unknown channel type, skipping")
			continue
		}
		valid = append(valid, ch)
	}
	return valid
}

// LoggingConfig maps the logging settings onto the logging package.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Format:   c.LogFormat,
		Level:    c.LogLevel,
		FilePath: c.LogFile,
	}
}

// StatsConfig maps the analysis settings onto the statistics engine.
func (c *Config) StatsConfig() stats.Config {
	return stats.Config{
		MinDataPoints:   c.MinDataPoints,
		TrendWindowDays: c.TrendWindowDays,
		Sensitivity:     stats.Sensitivity(c.Sensitivity),
	}
}

// AlertingConfig maps the pipeline settings onto the alerting engine.
func (c *Config) AlertingConfig() alerting.Config {
	return alerting.Config{
		RateLimit: alerting.RateLimitConfig{
			Enabled:    true,
			MaxPerHour: c.RateLimitPerHour,
			MaxPerDay:  c.RateLimitPerDay,
		},
		Aggregation: alerting.AggregationConfig{
			Enabled:  true,
			Window:   c.AggregationWindow,
			MaxCount: c.AggregationMaxCount,
		},
		Escalation: alerting.EscalationConfig{
			Enabled:        true,
			TimeToEscalate: c.EscalationAfter,
			MaxEscalations: c.MaxEscalations,
		},
		DataDir: c.DataDir,
	}
}

// RetentionPeriod returns the retention window as a duration.
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
