package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/config"
	"github.com/perfwatch/perfwatch/internal/notifications"
	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Notification channel management",
}

var channelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured notification channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Channels) == 0 {
			fmt.Println("No channels configured.")
			return nil
		}
		fmt.Printf("%-16s %-10s %-8s %s\n", "NAME", "TYPE", "ENABLED", "FILTERS")
		for _, ch := range cfg.Channels {
			var filters []string
			if len(ch.SeverityFilter) > 0 {
				parts := make([]string, len(ch.SeverityFilter))
				for i, sev := range ch.SeverityFilter {
					parts[i] = string(sev)
				}
				filters = append(filters, "severity="+strings.Join(parts, ","))
			}
			if ch.TestFilter != "" {
				filters = append(filters, "tests="+ch.TestFilter)
			}
			fmt.Printf("%-16s %-10s %-8v %s\n", ch.Name, ch.Type, ch.Enabled, strings.Join(filters, " "))
		}
		return nil
	},
}

var channelsInitForce bool

var channelsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter channels.json",
	Long: `Init writes an example channel configuration to the data directory.
Only the console channel starts enabled; edit the file to fill in
webhook or email details, then enable them. The monitor picks up
edits without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := os.Getenv("PERFWATCH_DATA_DIR")
		if dataDir == "" {
			dataDir = "/var/lib/perfwatch"
		}
		persistence := config.NewPersistence(dataDir)
		if _, err := os.Stat(persistence.ChannelsPath()); err == nil && !channelsInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", persistence.ChannelsPath())
		}

		starter := starterChannels()
		if err := persistence.SaveChannels(starter); err != nil {
			return fmt.Errorf("write channels file: %w", err)
		}
		fmt.Printf("Wrote %s with %d example channels\n", persistence.ChannelsPath(), len(starter))
		return nil
	},
}

var channelsTestCmd = &cobra.Command{
	Use:   "test [channel]",
	Short: "Send a test alert through a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := alerting.NewEngine(cfg.AlertingConfig())
		defer engine.Stop()
		channelConfigs, senders := notifications.BuildChannels(cfg.Channels, notifications.NewDeliveryLog())
		engine.ReplaceChannels(channelConfigs, senders)

		result, err := engine.TestAlertDelivery(args[0])
		if err != nil {
			return err
		}
		if !result.Sent {
			return fmt.Errorf("test delivery to %s failed: %s", args[0], result.Error)
		}
		fmt.Printf("Test alert delivered to %s\n", args[0])
		return nil
	},
}

func starterChannels() []alerting.ChannelConfig {
	return []alerting.ChannelConfig{
		{Name: "console", Type: "console", Enabled: true},
		{
			Name:    "audit-log",
			Type:    "file",
			Enabled: false,
			Options: map[string]string{"path": "alerts.log"},
		},
		{
			Name:           "ops-slack",
			Type:           "chatops",
			Enabled:        false,
			SeverityFilter: []alerting.Severity{alerting.SeverityCritical, alerting.SeverityMajor},
			Options:        map[string]string{"url": "https://hooks.slack.com/services/CHANGE/ME"},
		},
		{
			Name:           "oncall-email",
			Type:           "email",
			Enabled:        false,
			SeverityFilter: []alerting.Severity{alerting.SeverityCritical},
			Options: map[string]string{
				"server": "smtp.example.com",
				"port":   "587",
				"from":   "perfwatch@example.com",
				"to":     "oncall@example.com",
			},
		},
	}
}

func init() {
	channelsInitCmd.Flags().BoolVar(&channelsInitForce, "force", false, "Overwrite an existing channels file")
	channelsCmd.AddCommand(channelsListCmd)
	channelsCmd.AddCommand(channelsInitCmd)
	channelsCmd.AddCommand(channelsTestCmd)
}
