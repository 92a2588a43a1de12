package config

import (
	"os"
	"path/filepath"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/storage"
)

const (
	systemFile   = "system.json"
	channelsFile = "channels.json"
)

// SystemSettings is the persisted form of the application settings.
// Durations are stored as plain numbers in the named unit.
type SystemSettings struct {
	LogLevel                 string `json:"logLevel,omitempty"`
	LogFormat                string `json:"logFormat,omitempty"`
	LogFile                  string `json:"logFile,omitempty"`
	Store                    string `json:"store,omitempty"`
	Sensitivity              string `json:"sensitivity,omitempty"`
	TrendWindowDays          int    `json:"trendWindowDays,omitempty"`
	MinDataPoints            int    `json:"minDataPoints,omitempty"`
	RetentionDays            int    `json:"retentionDays,omitempty"`
	RateLimitPerHour         int    `json:"rateLimitPerHour,omitempty"`
	RateLimitPerDay          int    `json:"rateLimitPerDay,omitempty"`
	AggregationWindowSeconds int    `json:"aggregationWindowSeconds,omitempty"`
	AggregationMaxCount      int    `json:"aggregationMaxCount,omitempty"`
	EscalationAfterMinutes   int    `json:"escalationAfterMinutes,omitempty"`
	MaxEscalations           int    `json:"maxEscalations,omitempty"`
	AnalysisIntervalMinutes  int    `json:"analysisIntervalMinutes,omitempty"`
	MaintenanceIntervalHours int    `json:"maintenanceIntervalHours,omitempty"`
	AutomatedIntervalMinutes int    `json:"automatedIntervalMinutes,omitempty"`
}

// Persistence reads and writes the configuration files under the data
// directory.
type Persistence struct {
	dataDir string
}

func NewPersistence(dataDir string) *Persistence {
	return &Persistence{dataDir: dataDir}
}

// SystemPath returns the system settings file path.
func (p *Persistence) SystemPath() string {
	return filepath.Join(p.dataDir, systemFile)
}

// ChannelsPath returns the channel definitions file path.
func (p *Persistence) ChannelsPath() string {
	return filepath.Join(p.dataDir, channelsFile)
}

// LoadSystemSettings reads system.json. A missing file returns nil
// settings and no error.
func (p *Persistence) LoadSystemSettings() (*SystemSettings, error) {
	path := p.SystemPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var settings SystemSettings
	if err := storage.LoadJSONFile(path, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSystemSettings writes system.json, creating the data directory
// when needed.
func (p *Persistence) SaveSystemSettings(settings SystemSettings) error {
	return storage.SaveJSONFile(p.SystemPath(), settings)
}

// LoadChannels reads channels.json. A missing file returns nil and no
// error so the caller can install defaults.
func (p *Persistence) LoadChannels() ([]alerting.ChannelConfig, error) {
	path := p.ChannelsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var channels []alerting.ChannelConfig
	if err := storage.LoadJSONFile(path, &channels); err != nil {
		return nil, err
	}
	if channels == nil {
		channels = []alerting.ChannelConfig{}
	}
	return channels, nil
}

// SaveChannels writes channels.json.
func (p *Persistence) SaveChannels(channels []alerting.ChannelConfig) error {
	return storage.SaveJSONFile(p.ChannelsPath(), channels)
}

// DefaultChannels is the starter channel set for a fresh install.
func DefaultChannels() []alerting.ChannelConfig {
	return []alerting.ChannelConfig{
		{
			Name:    "console",
			Type:    "console",
			Enabled: true,
		},
	}
}
