package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/storage"
)

// ConfigWatcher monitors the .env and channels.json files for changes
// and updates the runtime config.
type ConfigWatcher struct {
	config          *Config
	envPath         string
	channelsPath    string
	watcher         *fsnotify.Watcher
	stopChan        chan struct{}
	lastEnvMod      time.Time
	lastChannelsMod time.Time
	mu              sync.RWMutex

	onChannelsReload func([]alerting.ChannelConfig)
	onEnvReload      func(*Config)
}

// NewConfigWatcher creates a new config watcher.
func NewConfigWatcher(config *Config) (*ConfigWatcher, error) {
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "/var/lib/perfwatch"
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cw := &ConfigWatcher{
		config:       config,
		envPath:      filepath.Join(dataDir, ".env"),
		channelsPath: filepath.Join(dataDir, channelsFile),
		watcher:      watcher,
		stopChan:     make(chan struct{}),
	}

	// Get initial mod times
	if stat, err := os.Stat(cw.envPath); err == nil {
		cw.lastEnvMod = stat.ModTime()
	}
	if stat, err := os.Stat(cw.channelsPath); err == nil {
		cw.lastChannelsMod = stat.ModTime()
	}

	return cw, nil
}

// SetChannelsReloadCallback sets the function invoked with the new
// channel set after channels.json changes.
func (cw *ConfigWatcher) SetChannelsReloadCallback(callback func([]alerting.ChannelConfig)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onChannelsReload = callback
}

// SetEnvReloadCallback sets the function invoked after .env changes
// were applied to the runtime config.
func (cw *ConfigWatcher) SetEnvReloadCallback(callback func(*Config)) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.onEnvReload = callback
}

// Start begins watching the config files.
func (cw *ConfigWatcher) Start() error {
	dir := filepath.Dir(cw.channelsPath)
	if err := cw.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch config directory, falling back to polling")
		go cw.pollForChanges()
		return nil
	}

	go cw.watchForChanges()
	log.Info().
		Str("env_path", cw.envPath).
		Str("channels_path", cw.channelsPath).
		Msg("Started watching config files for changes")
	return nil
}

// Stop stops the config watcher.
func (cw *ConfigWatcher) Stop() {
	select {
	case <-cw.stopChan:
		// Already stopped
		return
	default:
		close(cw.stopChan)
	}
	cw.watcher.Close()
}

// ReloadChannels manually triggers a channel reload (e.g. from SIGHUP).
func (cw *ConfigWatcher) ReloadChannels() {
	cw.reloadChannels()
}

// watchForChanges handles fsnotify events.
func (cw *ConfigWatcher) watchForChanges() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) == ".env" || event.Name == cw.envPath {
				// Debounce - wait a bit for write to complete
				time.Sleep(100 * time.Millisecond)

				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Info().Str("event", event.Op.String()).Msg("Detected .env file change")
					cw.reloadEnv()
				}
			}

			if filepath.Base(event.Name) == channelsFile || event.Name == cw.channelsPath {
				// Debounce - wait a bit for write to complete
				time.Sleep(100 * time.Millisecond)

				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					log.Info().Str("event", event.Op.String()).Msg("Detected channels file change")
					cw.reloadChannels()
				}
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Config watcher error")

		case <-cw.stopChan:
			return
		}
	}
}

// pollForChanges is a fallback that polls for changes.
func (cw *ConfigWatcher) pollForChanges() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if stat, err := os.Stat(cw.envPath); err == nil {
				if stat.ModTime().After(cw.lastEnvMod) {
					log.Info().Msg("Detected .env file change via polling")
					cw.lastEnvMod = stat.ModTime()
					cw.reloadEnv()
				}
			}

			if stat, err := os.Stat(cw.channelsPath); err == nil {
				if stat.ModTime().After(cw.lastChannelsMod) {
					log.Info().Msg("Detected channels file change via polling")
					cw.lastChannelsMod = stat.ModTime()
					cw.reloadChannels()
				}
			}

		case <-cw.stopChan:
			return
		}
	}
}

// reloadEnv applies .env changes to the runtime config.
func (cw *ConfigWatcher) reloadEnv() {
	envMap, err := godotenv.Read(cw.envPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Error().Err(err).Msg("Failed to read .env file")
			return
		}
		envMap = make(map[string]string)
	}

	cw.mu.Lock()

	// Track what changed
	var changes []string

	if newLevel := strings.Trim(envMap["PERFWATCH_LOG_LEVEL"], "'\""); newLevel != "" && newLevel != cw.config.LogLevel {
		cw.config.LogLevel = newLevel
		cw.config.EnvOverrides["logLevel"] = true
		changes = append(changes, "log level updated")
	}
	if newSens := strings.Trim(envMap["PERFWATCH_SENSITIVITY"], "'\""); newSens != "" && newSens != cw.config.Sensitivity {
		cw.config.Sensitivity = newSens
		cw.config.EnvOverrides["sensitivity"] = true
		changes = append(changes, "sensitivity updated")
	}

	callback := cw.onEnvReload
	cfg := cw.config
	cw.mu.Unlock()

	if len(changes) > 0 {
		log.Info().
			Strs("changes", changes).
			Msg("Applied .env file changes to runtime config")
		if callback != nil {
			go callback(cfg)
		}
	} else {
		log.Debug().Msg("No relevant changes detected in .env file")
	}
}

// reloadChannels reloads the channel set from channels.json. Parse
// failures and a missing file keep the previous channels.
func (cw *ConfigWatcher) reloadChannels() {
	if _, err := os.Stat(cw.channelsPath); os.IsNotExist(err) {
		log.Warn().Str("file", cw.channelsPath).Msg("Channels file removed, keeping previous channels")
		return
	}

	var channels []alerting.ChannelConfig
	if err := storage.LoadJSONFile(cw.channelsPath, &channels); err != nil {
		log.Error().Err(err).Str("file", cw.channelsPath).Msg("Failed to read channels file, keeping previous channels")
		return
	}
	channels = filterChannels(channels)

	cw.mu.Lock()
	cw.config.Channels = channels
	callback := cw.onChannelsReload
	cw.mu.Unlock()

	log.Info().Int("channels", len(channels)).Msg("Reloaded channel configuration")

	if callback != nil {
		go callback(channels)
	}
}
