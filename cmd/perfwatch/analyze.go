package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/pkg/reporting"
	"github.com/spf13/cobra"
)

var (
	analyzeTest  string
	analyzeHours int
	analyzeJSON  bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze stored results for trends, anomalies, and predictions",
	Example: `  # Trends across every test over the last day
  perfwatch analyze

  # One test over the last week, as JSON
  perfwatch analyze --test api-health --hours 168 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		window := stats.TimeRange{Start: time.Now().Add(-time.Duration(analyzeHours) * time.Hour)}
		report := rt.framework.Stats().AnalyzeTrends(window)

		if analyzeJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		printTrendReport(&report, analyzeTest)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTest, "test", "", "Restrict output to one test")
	analyzeCmd.Flags().IntVar(&analyzeHours, "hours", 24, "Analysis window in hours")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Emit the full report as JSON")
}

func printTrendReport(report *stats.TrendReport, testFilter string) {
	fmt.Printf("Trend analysis generated %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Overall direction: %s (score %.2f)\n\n", report.Performance.Overall, report.Performance.OverallScore)

	names := make([]string, 0, len(report.Performance.Tests))
	for name := range report.Performance.Tests {
		if testFilter != "" && name != testFilter {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Println("No trend data in the selected window.")
		return
	}

	for _, name := range names {
		test := report.Performance.Tests[name]
		fmt.Printf("%s (%d samples)\n", name, test.SampleCount)
		for _, trend := range test.Trends {
			fmt.Printf("  %-22s %-10s slope %+.4f  r2 %.2f  confidence %.2f\n",
				reporting.GetMetricDisplayName(trend.Metric), trend.Direction,
				trend.Slope, trend.RSquared, trend.Confidence)
		}
		for _, prediction := range report.Predictions[name] {
			fmt.Printf("  %-22s predicted %.1f [%.1f, %.1f] by %s\n",
				reporting.GetMetricDisplayName(prediction.Metric), prediction.PredictedValue,
				prediction.Interval.Lower, prediction.Interval.Upper,
				prediction.TargetTimestamp.Format("2006-01-02"))
		}
		fmt.Println()
	}

	var anomalies []string
	for _, anomaly := range report.Anomalies {
		if testFilter != "" && anomaly.TestName != testFilter {
			continue
		}
		anomalies = append(anomalies, fmt.Sprintf("  %s  %s %s: %.1f (expected %.1f, %.1f stddev) severity=%s",
			anomaly.Timestamp.Format("2006-01-02 15:04"), anomaly.TestName,
			reporting.GetMetricDisplayName(anomaly.Metric), anomaly.Value,
			anomaly.Expected, anomaly.Deviation, anomaly.Severity))
	}
	if len(anomalies) > 0 {
		fmt.Printf("Anomalies (%d):\n%s\n", len(anomalies), strings.Join(anomalies, "\n"))
	}
}
