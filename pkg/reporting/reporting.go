// Package reporting renders analysis reports as PDF, CSV, or JSON
// documents suitable for export and distribution.
package reporting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
)

// ReportFormat represents the output format of a report
type ReportFormat string

const (
	FormatCSV  ReportFormat = "csv"
	FormatPDF  ReportFormat = "pdf"
	FormatJSON ReportFormat = "json"
)

// Generate renders the report in the requested format and returns the
// document bytes with its content type.
func Generate(report *perftest.PerformanceReport, format ReportFormat) (data []byte, contentType string, err error) {
	if report == nil {
		return nil, "", fmt.Errorf("no report data")
	}

	switch format {
	case FormatCSV:
		data, err = NewCSVGenerator().Generate(report)
		return data, "text/csv", err
	case FormatPDF:
		data, err = NewPDFGenerator().Generate(report)
		return data, "application/pdf", err
	case FormatJSON:
		data, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, "", fmt.Errorf("marshal report: %w", err)
		}
		return data, "application/json", nil
	default:
		return nil, "", fmt.Errorf("unsupported report format %q", format)
	}
}

// GetMetricDisplayName returns a human-readable name for a metric type.
func GetMetricDisplayName(metric string) string {
	switch metric {
	case stats.MetricResponseTime:
		return "Response Time"
	case stats.MetricThroughput:
		return "Throughput"
	case stats.MetricErrorRate:
		return "Error Rate"
	case stats.MetricCPUUsage:
		return "CPU Usage"
	case stats.MetricMemoryUsage:
		return "Memory Usage"
	default:
		return metric
	}
}

// GetMetricUnit returns the unit for a metric type.
func GetMetricUnit(metric string) string {
	switch metric {
	case stats.MetricResponseTime:
		return "ms"
	case stats.MetricThroughput:
		return "req/s"
	case stats.MetricErrorRate, stats.MetricCPUUsage, stats.MetricMemoryUsage:
		return "%"
	default:
		return ""
	}
}

// formatValue formats a metric value with unit-appropriate precision.
func formatValue(value float64, unit string) string {
	switch unit {
	case "ms", "req/s":
		return fmt.Sprintf("%.1f", value)
	default:
		return fmt.Sprintf("%.2f", value)
	}
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 {
		days := hours / 24
		rest := hours % 24
		if rest > 0 {
			return fmt.Sprintf("%d %s, %d %s", days, plural(days, "day"), rest, plural(rest, "hour"))
		}
		return fmt.Sprintf("%d %s", days, plural(days, "day"))
	}
	if hours > 0 {
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%d %s, %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
		}
		return fmt.Sprintf("%d %s", hours, plural(hours, "hour"))
	}
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d %s", minutes, plural(minutes, "minute"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// reportPeriod resolves the displayed window. Open range sides fall
// back to the covered result times, then to the generation time.
func reportPeriod(report *perftest.PerformanceReport) (time.Time, time.Time) {
	start := report.TimeRange.Start
	end := report.TimeRange.End

	for _, r := range report.TestResults {
		if r.StartedAt.IsZero() {
			continue
		}
		if report.TimeRange.Start.IsZero() && (start.IsZero() || r.StartedAt.Before(start)) {
			start = r.StartedAt
		}
		if report.TimeRange.End.IsZero() && (end.IsZero() || r.StartedAt.After(end)) {
			end = r.StartedAt
		}
	}
	if start.IsZero() {
		start = report.GeneratedAt
	}
	if end.IsZero() {
		end = report.GeneratedAt
	}
	return start, end
}
