package reporting

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/baseline"
	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
)

func TestGenerate_JSON(t *testing.T) {
	report := createTestReport()

	data, contentType, err := Generate(report, FormatJSON)
	if err != nil {
		t.Fatalf("JSON generation failed: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("content type = %q, want application/json", contentType)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["id"] != report.ID {
		t.Errorf("decoded id = %v, want %s", decoded["id"], report.ID)
	}
	if _, ok := decoded["testResults"]; !ok {
		t.Error("Missing testResults in JSON export")
	}
	if _, ok := decoded["trendAnalysis"]; !ok {
		t.Error("Missing trendAnalysis in JSON export")
	}
}

func TestGenerate_CSVContentType(t *testing.T) {
	data, contentType, err := Generate(createTestReport(), FormatCSV)
	if err != nil {
		t.Fatalf("CSV generation failed: %v", err)
	}
	if contentType != "text/csv" {
		t.Errorf("content type = %q, want text/csv", contentType)
	}
	if len(data) == 0 {
		t.Error("Empty CSV output")
	}
}

func TestGenerate_PDFContentType(t *testing.T) {
	data, contentType, err := Generate(createTestReport(), FormatPDF)
	if err != nil {
		t.Fatalf("PDF generation failed: %v", err)
	}
	if contentType != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", contentType)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		t.Error("Missing PDF magic bytes")
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	_, _, err := Generate(createTestReport(), ReportFormat("xml"))
	if err == nil {
		t.Fatal("Expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported report format") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestGenerate_NilReport(t *testing.T) {
	if _, _, err := Generate(nil, FormatJSON); err == nil {
		t.Fatal("Expected error for nil report")
	}
}

func TestGetMetricDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"responseTime", "Response Time"},
		{"throughput", "Throughput"},
		{"errorRate", "Error Rate"},
		{"cpuUsage", "CPU Usage"},
		{"memoryUsage", "Memory Usage"},
		{"unknown", "unknown"},
	}

	for _, tc := range tests {
		result := GetMetricDisplayName(tc.input)
		if result != tc.expected {
			t.Errorf("GetMetricDisplayName(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestGetMetricUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"responseTime", "ms"},
		{"throughput", "req/s"},
		{"errorRate", "%"},
		{"cpuUsage", "%"},
		{"memoryUsage", "%"},
		{"unknown", ""},
	}

	for _, tc := range tests {
		result := GetMetricUnit(tc.input)
		if result != tc.expected {
			t.Errorf("GetMetricUnit(%q) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value    float64
		unit     string
		expected string
	}{
		{123.456, "ms", "123.5"},
		{850.04, "req/s", "850.0"},
		{0.218, "%", "0.22"},
		{3.14159, "", "3.14"},
	}

	for _, tc := range tests {
		result := formatValue(tc.value, tc.unit)
		if result != tc.expected {
			t.Errorf("formatValue(%f, %q) = %q, want %q", tc.value, tc.unit, result, tc.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{time.Minute, "1 minute"},
		{30 * time.Minute, "30 minutes"},
		{time.Hour, "1 hour"},
		{90 * time.Minute, "1 hour, 30 minutes"},
		{26 * time.Hour, "1 day, 2 hours"},
		{48 * time.Hour, "2 days"},
	}

	for _, tc := range tests {
		result := formatDuration(tc.input)
		if result != tc.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.input, result, tc.expected)
		}
	}
}

func TestReportPeriod(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

	// Closed range passes through untouched.
	closed := &perftest.PerformanceReport{
		GeneratedAt: now,
		TimeRange:   stats.TimeRange{Start: now.Add(-24 * time.Hour), End: now},
	}
	start, end := reportPeriod(closed)
	if !start.Equal(now.Add(-24*time.Hour)) || !end.Equal(now) {
		t.Errorf("closed range: got %v - %v", start, end)
	}

	// Open range falls back to the covered result times.
	open := &perftest.PerformanceReport{
		GeneratedAt: now,
		TestResults: []*perftest.PerformanceTestResult{
			{TestName: "a", StartedAt: now.Add(-6 * time.Hour)},
			{TestName: "b", StartedAt: now.Add(-2 * time.Hour)},
		},
	}
	start, end = reportPeriod(open)
	if !start.Equal(now.Add(-6 * time.Hour)) {
		t.Errorf("open range start = %v, want %v", start, now.Add(-6*time.Hour))
	}
	if !end.Equal(now.Add(-2 * time.Hour)) {
		t.Errorf("open range end = %v, want %v", end, now.Add(-2*time.Hour))
	}

	// No results at all falls back to the generation time.
	empty := &perftest.PerformanceReport{GeneratedAt: now}
	start, end = reportPeriod(empty)
	if !start.Equal(now) || !end.Equal(now) {
		t.Errorf("empty report: got %v - %v", start, end)
	}
}

// reportMetrics builds a plausible metrics payload around the given
// mean latency, throughput, and error rate.
func reportMetrics(mean, p95, rps, errRate float64) stats.PerformanceMetrics {
	return stats.PerformanceMetrics{
		ResponseTime: stats.ResponseTimeStats{
			Mean:   mean,
			Median: mean * 0.9,
			P95:    p95,
			P99:    p95 * 1.3,
			Min:    mean * 0.5,
			Max:    p95 * 1.6,
		},
		Throughput: stats.ThroughputStats{
			RequestsPerSecond: rps,
			TotalRequests:     int64(rps * 60),
		},
		ErrorRate:   errRate,
		CPUUsage:    42,
		MemoryUsage: 58,
	}
}

// createTestReport creates sample report data for testing.
func createTestReport() *perftest.PerformanceReport {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)

	results := []*perftest.PerformanceTestResult{
		{
			ID:          "01TESTRUN0000000000000001A",
			TestName:    "api-load",
			TestType:    "load",
			StartedAt:   start.Add(2 * time.Hour),
			CompletedAt: start.Add(2*time.Hour + time.Minute),
			DurationMs:  60000,
			Metrics:     reportMetrics(120, 180, 900, 0.2),
			Passed:      true,
		},
		{
			ID:                 "01TESTRUN0000000000000002B",
			TestName:           "checkout",
			TestType:           "load",
			StartedAt:          start.Add(6 * time.Hour),
			CompletedAt:        start.Add(6*time.Hour + time.Minute),
			DurationMs:         61000,
			Metrics:            reportMetrics(310, 520, 640, 1.4),
			RegressionDetected: true,
			Recommendations:    []string{"Mean response time exceeds 1s; profile slow endpoints and consider caching"},
		},
		{
			ID:          "01TESTRUN0000000000000003C",
			TestName:    "api-load",
			TestType:    "load",
			StartedAt:   start.Add(12 * time.Hour),
			CompletedAt: start.Add(12*time.Hour + time.Minute),
			DurationMs:  60000,
			Metrics:     reportMetrics(130, 190, 880, 0.3),
			Passed:      true,
		},
	}

	return &perftest.PerformanceReport{
		ID:          "01REPORT000000000000000001",
		GeneratedAt: now,
		TimeRange:   stats.TimeRange{Start: start, End: now},
		Summary: perftest.ReportSummary{
			TotalTests:  3,
			Passed:      2,
			Failed:      1,
			Regressions: 1,
			Anomalies:   1,
		},
		TestResults: results,
		TrendAnalysis: stats.TrendReport{
			GeneratedAt: now,
			Performance: stats.PerformanceOverview{
				Overall:      stats.TrendDegrading,
				OverallScore: -1.8,
				Tests: map[string]stats.TestTrends{
					"api-load": {
						TestName:    "api-load",
						SampleCount: 12,
						Trends: []stats.TrendAnalysis{
							{
								TestName:    "api-load",
								Metric:      stats.MetricResponseTime,
								Direction:   stats.TrendDegrading,
								Slope:       1.2,
								RSquared:    0.85,
								Strength:    0.7,
								Confidence:  0.9,
								SampleCount: 12,
								AnalyzedAt:  now,
							},
						},
					},
				},
			},
			Predictions: map[string][]stats.PerformancePrediction{
				"api-load": {
					{
						TestName:        "api-load",
						Metric:          stats.MetricResponseTime,
						PredictedValue:  240,
						Interval:        stats.ConfidenceInterval{Lower: 210, Upper: 270},
						Confidence:      0.95,
						Model:           "linear_regression",
						TargetTimestamp: now.Add(24 * time.Hour),
						GeneratedAt:     now,
					},
				},
			},
			Anomalies: []stats.AnomalyDetection{
				{
					TestName:   "checkout",
					Metric:     stats.MetricResponseTime,
					Timestamp:  start.Add(6 * time.Hour),
					Value:      310,
					Expected:   180,
					Deviation:  3.4,
					Severity:   stats.AnomalyHigh,
					Confidence: 0.99,
					Window:     stats.WindowContext{Size: 20, Mean: 180, StdDev: 38},
				},
			},
		},
		Baselines: []*baseline.Record{
			{
				ID:          "bl-api-load",
				TestType:    "load",
				Descriptor:  "api-load",
				Metrics:     reportMetrics(120, 180, 900, 0.2),
				SampleCount: 8,
				RecordedAt:  start,
				UpdatedAt:   now,
			},
		},
		ActiveAlerts: []alerting.Alert{
			{
				ID:        "al-checkout",
				Timestamp: start.Add(6 * time.Hour),
				Severity:  alerting.SeverityMajor,
				TestType:  "load",
				TestName:  "checkout",
				Message:   "responseTime regressed 35.0% over baseline",
				Comparison: &alerting.ComparisonDetails{
					Metric:        "responseTime",
					Baseline:      230,
					Current:       310,
					ChangePercent: 35,
					Threshold:     20,
				},
			},
		},
		Recommendations: []string{
			"1 of 3 runs regressed against baseline; review recent changes to the affected tests",
			"Overall performance trend is degrading; prioritize performance work in the next iteration",
		},
		ActionItems: []perftest.ActionItem{
			{
				Priority:    "high",
				Category:    "trend",
				Description: "Overall performance trend is degrading; schedule an investigation",
			},
			{
				Priority:    "medium",
				Category:    "baseline",
				Description: "Review recorded baselines against current traffic patterns",
			},
		},
	}
}
