package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

func writeChannelsFile(t *testing.T, dir string, channels []alerting.ChannelConfig) {
	t.Helper()
	require.NoError(t, NewPersistence(dir).SaveChannels(channels))
}

func TestWatcher_ReloadChannels(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		Channels:     DefaultChannels(),
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	got := make(chan []alerting.ChannelConfig, 1)
	cw.SetChannelsReloadCallback(func(channels []alerting.ChannelConfig) {
		got <- channels
	})

	writeChannelsFile(t, tempDir, []alerting.ChannelConfig{
		{Name: "console", Type: "console", Enabled: true},
		{Name: "audit", Type: "file", Enabled: true, Options: map[string]string{"path": filepath.Join(tempDir, "alerts.log")}},
	})

	cw.reloadChannels()

	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "audit", cfg.Channels[1].Name)

	select {
	case channels := <-got:
		require.Len(t, channels, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("channels reload callback was not invoked")
	}
}

func TestWatcher_ReloadChannels_FiltersBadEntries(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		Channels:     DefaultChannels(),
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	writeChannelsFile(t, tempDir, []alerting.ChannelConfig{
		{Name: "ok", Type: "console", Enabled: true},
		{Name: "bad", Type: "matrix", Enabled: true},
	})

	cw.reloadChannels()

	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "ok", cfg.Channels[0].Name)
}

func TestWatcher_ReloadChannels_BadJSON(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		Channels:     DefaultChannels(),
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "channels.json"), []byte("{not json"), 0644))

	cw.reloadChannels()

	// Previous channels survive a parse failure
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "console", cfg.Channels[0].Name)
}

func TestWatcher_ReloadChannels_MissingFile(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		Channels:     DefaultChannels(),
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	cw.reloadChannels()

	require.Len(t, cfg.Channels, 1)
}

func TestWatcher_ReloadEnv(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		LogLevel:     "info",
		Sensitivity:  "medium",
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	reloaded := make(chan *Config, 1)
	cw.SetEnvReloadCallback(func(c *Config) {
		reloaded <- c
	})

	envFile := filepath.Join(tempDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PERFWATCH_LOG_LEVEL=\"debug\"\nPERFWATCH_SENSITIVITY=high\n"), 0644))

	cw.reloadEnv()

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "high", cfg.Sensitivity)
	assert.True(t, cfg.EnvOverrides["logLevel"])
	assert.True(t, cfg.EnvOverrides["sensitivity"])

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("env reload callback was not invoked")
	}
}

func TestWatcher_ReloadEnv_NoChanges(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		LogLevel:     "debug",
		Sensitivity:  "medium",
		EnvOverrides: make(map[string]bool),
	}

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	defer cw.Stop()

	invoked := make(chan struct{}, 1)
	cw.SetEnvReloadCallback(func(*Config) {
		invoked <- struct{}{}
	})

	envFile := filepath.Join(tempDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PERFWATCH_LOG_LEVEL=debug\n"), 0644))

	cw.reloadEnv()

	assert.Equal(t, "debug", cfg.LogLevel)
	select {
	case <-invoked:
		t.Fatal("callback fired without changes")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_FsnotifyEvent(t *testing.T) {
	tempDir := t.TempDir()
	cfg := &Config{
		DataDir:      tempDir,
		Channels:     DefaultChannels(),
		EnvOverrides: make(map[string]bool),
	}
	writeChannelsFile(t, tempDir, cfg.Channels)

	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)
	require.NoError(t, cw.Start())
	defer cw.Stop()

	writeChannelsFile(t, tempDir, []alerting.ChannelConfig{
		{Name: "console", Type: "console", Enabled: true},
		{Name: "second", Type: "console", Enabled: true},
	})

	require.Eventually(t, func() bool {
		cw.mu.RLock()
		defer cw.mu.RUnlock()
		return len(cfg.Channels) == 2
	}, 3*time.Second, 100*time.Millisecond)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir(), EnvOverrides: make(map[string]bool)}
	cw, err := NewConfigWatcher(cfg)
	require.NoError(t, err)

	cw.Stop()
	cw.Stop()
}
