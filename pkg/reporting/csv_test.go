package reporting

import (
	"strings"
	"testing"
	"time"

	"github.com/perfwatch/perfwatch/internal/perftest"
	"github.com/perfwatch/perfwatch/internal/stats"
)

func TestCSVGenerator_Generate(t *testing.T) {
	report := createTestReport()

	gen := NewCSVGenerator()
	result, err := gen.Generate(report)
	if err != nil {
		t.Fatalf("CSV generation failed: %v", err)
	}

	csv := string(result)

	// Check header
	if !strings.Contains(csv, "# PerfWatch Performance Report") {
		t.Error("Missing report header")
	}
	if !strings.Contains(csv, report.ID) {
		t.Error("Missing report ID")
	}
	if !strings.Contains(csv, "# Test Runs:,3") {
		t.Error("Missing run count")
	}

	// Check summary section
	if !strings.Contains(csv, "# SUMMARY") {
		t.Error("Missing summary section")
	}
	if !strings.Contains(csv, "Total Runs,Passed,Failed,Regressions,Anomalies,Overall Trend,Trend Score") {
		t.Error("Missing summary column headers")
	}
	if !strings.Contains(csv, "3,2,1,1,1,degrading,-1.80") {
		t.Error("Missing summary values row")
	}

	// Check results section
	if !strings.Contains(csv, "# RESULTS") {
		t.Error("Missing results section")
	}
	if !strings.Contains(csv, "Timestamp,Test,Type,Regression,Mean Response (ms),Throughput (req/s),Error Rate (%)") {
		t.Error("Missing results column headers")
	}

	// Check anomalies and trends sections
	if !strings.Contains(csv, "# ANOMALIES") {
		t.Error("Missing anomalies section")
	}
	if !strings.Contains(csv, "# TRENDS") {
		t.Error("Missing trends section")
	}
}

func TestCSVGenerator_ResultRows(t *testing.T) {
	report := createTestReport()

	result, err := NewCSVGenerator().Generate(report)
	if err != nil {
		t.Fatalf("CSV generation failed: %v", err)
	}

	csv := string(result)

	// One row per run with the regression flag and core metrics.
	passing := "2025-11-02T14:00:00Z,api-load,load,false,120.00,900.00,0.20"
	if !strings.Contains(csv, passing) {
		t.Errorf("Missing passing result row %q", passing)
	}
	regressed := "2025-11-02T18:00:00Z,checkout,load,true,310.00,640.00,1.40"
	if !strings.Contains(csv, regressed) {
		t.Errorf("Missing regressed result row %q", regressed)
	}

	// Rows are ordered by start time even when input is shuffled.
	shuffled := createTestReport()
	shuffled.TestResults[0], shuffled.TestResults[2] = shuffled.TestResults[2], shuffled.TestResults[0]
	result, err = NewCSVGenerator().Generate(shuffled)
	if err != nil {
		t.Fatalf("CSV generation failed: %v", err)
	}
	csv = string(result)
	first := strings.Index(csv, "2025-11-02T14:00:00Z")
	last := strings.Index(csv, "2025-11-03T00:00:00Z")
	if first == -1 || last == -1 || first > last {
		t.Errorf("Result rows not ordered by timestamp (first at %d, last at %d)", first, last)
	}
}

func TestCSVGenerator_AnomalyAndTrendRows(t *testing.T) {
	result, err := NewCSVGenerator().Generate(createTestReport())
	if err != nil {
		t.Fatalf("CSV generation failed: %v", err)
	}

	csv := string(result)

	if !strings.Contains(csv, "checkout,Response Time,high,310.0,180.0,3.40") {
		t.Error("Missing anomaly row")
	}
	if !strings.Contains(csv, "api-load,Response Time,degrading,1.2000,0.850,0.90,12") {
		t.Error("Missing trend row")
	}
}

func TestCSVGenerator_EmptyReport(t *testing.T) {
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	report := &perftest.PerformanceReport{
		ID:          "01REPORT000000000000000002",
		GeneratedAt: now,
		TimeRange:   stats.TimeRange{Start: now.Add(-time.Hour), End: now},
	}

	result, err := NewCSVGenerator().Generate(report)
	if err != nil {
		t.Fatalf("CSV generation failed for empty report: %v", err)
	}

	csv := string(result)
	if !strings.Contains(csv, "# PerfWatch Performance Report") {
		t.Error("Missing header in empty report")
	}
	if !strings.Contains(csv, "# SUMMARY") {
		t.Error("Missing summary section in empty report")
	}
	if !strings.Contains(csv, "# RESULTS") {
		t.Error("Missing results section in empty report")
	}

	// Optional sections are omitted when there is nothing to list.
	if strings.Contains(csv, "# ANOMALIES") {
		t.Error("Unexpected anomalies section in empty report")
	}
	if strings.Contains(csv, "# TRENDS") {
		t.Error("Unexpected trends section in empty report")
	}
}
