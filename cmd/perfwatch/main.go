package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/baseline"
	"github.com/perfwatch/perfwatch/internal/config"
	"github.com/perfwatch/perfwatch/internal/logging"
	"github.com/perfwatch/perfwatch/internal/notifications"
	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "perfwatch",
	Short: "Performance regression monitoring and alerting",
	Long: `Perfwatch records performance test results, compares them against
baselines, analyzes trends and anomalies across runs, and routes
regression alerts through configurable notification channels.

Run without a subcommand to start the long-running monitor, which
executes registered tests on a schedule and serves Prometheus
metrics.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runMonitor()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("perfwatch %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built:  %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(channelsCmd)
	rootCmd.AddCommand(alertsCmd)
}

func main() {
	logging.Init(logging.Config{Format: "auto", Level: "info", Component: "perfwatch"})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the full configuration and reinitializes logging
// with the configured level, format, and optional file target.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	initLogging(cfg)
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	lc := cfg.LoggingConfig()
	lc.Component = "perfwatch"
	logging.Init(lc)
}

// runtime bundles the wired engine stack behind one command invocation
// so every subcommand builds the same pipeline the monitor runs.
type runtime struct {
	cfg       *config.Config
	framework *perftest.Framework
	delivery  *notifications.DeliveryLog
	closers   []func()
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg, delivery: notifications.NewDeliveryLog()}

	var repo stats.Repository
	switch cfg.Store {
	case config.StoreSQLite:
		store, err := storage.NewSQLiteStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		rt.closers = append(rt.closers, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close sqlite store")
			}
		})
		repo = store
	default:
		repo = storage.NewJSONStore(cfg.DataDir)
	}

	statsEngine := stats.NewEngine(cfg.StatsConfig(), repo)

	alertEngine := alerting.NewEngine(cfg.AlertingConfig())
	channelConfigs, senders := notifications.BuildChannels(cfg.Channels, rt.delivery)
	alertEngine.ReplaceChannels(channelConfigs, senders)

	recorder, err := baseline.NewFileManager(cfg.DataDir, baseline.ModeRolling, baseline.Thresholds{})
	if err != nil {
		return nil, fmt.Errorf("initialize baseline manager: %w", err)
	}

	rt.framework = perftest.New(perftest.Options{
		DataDir:             cfg.DataDir,
		Retention:           cfg.RetentionPeriod(),
		MaintenanceInterval: cfg.MaintenanceInterval,
		AnalysisInterval:    cfg.AnalysisInterval,
		AutomatedInterval:   cfg.AutomatedInterval,
	}, perftest.Dependencies{
		Stats:    statsEngine,
		Alerts:   alertEngine,
		Recorder: recorder,
		Detector: recorder,
	})
	return rt, nil
}

func (rt *runtime) Close() {
	rt.framework.Stop()
	rt.framework.Alerts().Stop()
	for _, closeFn := range rt.closers {
		closeFn()
	}
}

func runMonitor() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	initLogging(cfg)

	log.Info().
		Str("version", Version).
		Str("dataDir", cfg.DataDir).
		Str("store", cfg.Store).
		Msg("Starting perfwatch monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsAddr := os.Getenv("PERFWATCH_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	startMetricsServer(ctx, metricsAddr)

	rt, err := newRuntime(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize monitoring stack")
	}
	fw := rt.framework
	fw.Start()

	subID, events := fw.Events().Subscribe(64)
	go func() {
		for event := range events {
			log.Debug().Str("event", string(event.Type)).Msg("Framework event")
		}
	}()

	configWatcher, err := config.NewConfigWatcher(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, channel changes will require a restart")
		configWatcher = nil
	} else {
		configWatcher.SetChannelsReloadCallback(func(channels []alerting.ChannelConfig) {
			channelConfigs, senders := notifications.BuildChannels(channels, rt.delivery)
			fw.Alerts().ReplaceChannels(channelConfigs, senders)
			log.Info().Int("channels", len(senders)).Msg("Notification channels reloaded")
		})
		configWatcher.SetEnvReloadCallback(func(c *config.Config) {
			initLogging(c)
		})
		if err := configWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
	}

	// SIGINT/SIGTERM stop the monitor, SIGHUP re-reads channels.json
	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)

	for {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading channel configuration...")
			if configWatcher != nil {
				configWatcher.ReloadChannels()
			}
		case <-sigChan:
			log.Info().Msg("Shutting down...")
			goto shutdown
		}
	}

shutdown:
	cancel()
	fw.Events().Unsubscribe(subID)
	if configWatcher != nil {
		configWatcher.Stop()
	}
	rt.Close()
	log.Info().Msg("Monitor stopped")
}
