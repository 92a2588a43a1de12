package main

import (
	"fmt"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Active alert management",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := alerting.NewEngine(cfg.AlertingConfig())
		defer engine.Stop()

		active := engine.GetActiveAlerts()
		if len(active) == 0 {
			fmt.Println("No active alerts.")
			return nil
		}
		fmt.Printf("%-28s %-9s %-20s %s\n", "ID", "SEVERITY", "TEST", "MESSAGE")
		for _, alert := range active {
			message := alert.Message
			if alert.Acknowledged {
				message += " (acknowledged by " + alert.AcknowledgedBy + ")"
			}
			fmt.Printf("%-28s %-9s %-20s %s\n", alert.ID, alert.Severity, alert.TestName, message)
		}
		return nil
	},
}

var alertStatsHours int

var alertsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show alert pipeline statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := alerting.NewEngine(cfg.AlertingConfig())
		defer engine.Stop()

		stats := engine.GetAlertStatistics(alertStatsHours)
		if stats.WindowHours > 0 {
			fmt.Printf("Window:        last %dh\n", stats.WindowHours)
		} else {
			fmt.Println("Window:        lifetime")
		}
		fmt.Printf("Received:      %d (rate-limited %d, aggregated %d)\n",
			stats.TotalReceived, stats.TotalRateLimited, stats.TotalAggregated)
		fmt.Printf("Delivered:     %d (failures %d, success rate %.0f%%)\n",
			stats.TotalDelivered, stats.DeliveryFailures, stats.DeliverySuccessRate*100)
		fmt.Printf("Latency:       %.1fms average\n", stats.AvgDeliveryLatencyMs)
		fmt.Printf("Escalations:   %d (rate %.2f)\n", stats.TotalEscalations, stats.EscalationRate)
		fmt.Printf("Acknowledged:  %d\n", stats.TotalAcknowledged)
		fmt.Printf("Active:        %d\n", stats.ActiveAlerts)
		for sev, n := range stats.BySeverity {
			fmt.Printf("  %-11s %d\n", sev+":", n)
		}
		return nil
	},
}

var (
	ackBy    string
	ackNotes string
)

var alertsAckCmd = &cobra.Command{
	Use:   "ack [alert-id]",
	Short: "Acknowledge an active alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		engine := alerting.NewEngine(cfg.AlertingConfig())
		defer engine.Stop()

		if !engine.AcknowledgeAlert(args[0], ackBy, ackNotes) {
			return fmt.Errorf("no active alert with id %s", args[0])
		}
		fmt.Printf("Alert %s acknowledged\n", args[0])
		return nil
	},
}

func init() {
	alertsStatsCmd.Flags().IntVar(&alertStatsHours, "hours", 24, "Trailing window in hours, 0 for lifetime")
	alertsAckCmd.Flags().StringVar(&ackBy, "by", "cli", "Who is acknowledging the alert")
	alertsAckCmd.Flags().StringVar(&ackNotes, "notes", "", "Optional acknowledgement notes")
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsStatsCmd)
	alertsCmd.AddCommand(alertsAckCmd)
}
