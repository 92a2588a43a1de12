package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/perfwatch/perfwatch/internal/perftest"
)

// CSVGenerator handles CSV report generation.
type CSVGenerator struct{}

// NewCSVGenerator creates a new CSV generator.
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Generate creates a CSV report from the provided data.
func (g *CSVGenerator) Generate(report *perftest.PerformanceReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := g.writeHeader(w, report); err != nil {
		return nil, fmt.Errorf("write CSV header section: %w", err)
	}
	if err := g.writeSummary(w, report); err != nil {
		return nil, fmt.Errorf("write CSV summary section: %w", err)
	}
	if err := g.writeResults(w, report); err != nil {
		return nil, fmt.Errorf("write CSV results section: %w", err)
	}
	if err := g.writeAnomalies(w, report); err != nil {
		return nil, fmt.Errorf("write CSV anomalies section: %w", err)
	}
	if err := g.writeTrends(w, report); err != nil {
		return nil, fmt.Errorf("write CSV trends section: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("CSV write error: %w", err)
	}

	return buf.Bytes(), nil
}

// writeHeader writes the report header information.
func (g *CSVGenerator) writeHeader(w *csv.Writer, report *perftest.PerformanceReport) error {
	start, end := reportPeriod(report)
	headers := [][]string{
		{"# PerfWatch Performance Report"},
		{"# Report ID:", report.ID},
		{"# Period:", fmt.Sprintf("%s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))},
		{"# Generated:", report.GeneratedAt.Format(time.RFC3339)},
		{"# Test Runs:", fmt.Sprintf("%d", report.Summary.TotalTests)},
		{""}, // Empty row as separator
	}

	for _, row := range headers {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write header row %q: %w", row[0], err)
		}
	}

	return nil
}

// writeSummary writes the run-count summary section.
func (g *CSVGenerator) writeSummary(w *csv.Writer, report *perftest.PerformanceReport) error {
	if err := w.Write([]string{"# SUMMARY"}); err != nil {
		return fmt.Errorf("write summary section heading: %w", err)
	}

	if err := w.Write([]string{"Total Runs", "Passed", "Failed", "Regressions", "Anomalies", "Overall Trend", "Trend Score"}); err != nil {
		return fmt.Errorf("write summary column headers: %w", err)
	}

	s := report.Summary
	row := []string{
		strconv.Itoa(s.TotalTests),
		strconv.Itoa(s.Passed),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Regressions),
		strconv.Itoa(s.Anomalies),
		string(report.TrendAnalysis.Performance.Overall),
		fmt.Sprintf("%.2f", report.TrendAnalysis.Performance.OverallScore),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write summary row: %w", err)
	}

	if err := w.Write([]string{""}); err != nil {
		return fmt.Errorf("write summary separator row: %w", err)
	}

	return nil
}

// writeResults writes one row per test run, ordered by start time.
func (g *CSVGenerator) writeResults(w *csv.Writer, report *perftest.PerformanceReport) error {
	if err := w.Write([]string{"# RESULTS"}); err != nil {
		return fmt.Errorf("write results section heading: %w", err)
	}

	columns := []string{"Timestamp", "Test", "Type", "Regression", "Mean Response (ms)", "Throughput (req/s)", "Error Rate (%)"}
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write results column headers: %w", err)
	}

	results := make([]*perftest.PerformanceTestResult, len(report.TestResults))
	copy(results, report.TestResults)
	sort.Slice(results, func(i, j int) bool { return results[i].StartedAt.Before(results[j].StartedAt) })

	for _, r := range results {
		row := []string{
			r.StartedAt.Format(time.RFC3339),
			r.TestName,
			r.TestType,
			strconv.FormatBool(r.RegressionDetected),
			fmt.Sprintf("%.2f", r.Metrics.ResponseTime.Mean),
			fmt.Sprintf("%.2f", r.Metrics.Throughput.RequestsPerSecond),
			fmt.Sprintf("%.2f", r.Metrics.ErrorRate),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write result row for test %q: %w", r.TestName, err)
		}
	}

	if err := w.Write([]string{""}); err != nil {
		return fmt.Errorf("write results separator row: %w", err)
	}

	return nil
}

// writeAnomalies writes the detected anomalies, when any exist.
func (g *CSVGenerator) writeAnomalies(w *csv.Writer, report *perftest.PerformanceReport) error {
	anomalies := report.TrendAnalysis.Anomalies
	if len(anomalies) == 0 {
		return nil
	}

	if err := w.Write([]string{"# ANOMALIES"}); err != nil {
		return fmt.Errorf("write anomalies section heading: %w", err)
	}

	columns := []string{"Timestamp", "Test", "Metric", "Severity", "Value", "Expected", "Deviation (stddev)"}
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write anomalies column headers: %w", err)
	}

	for _, a := range anomalies {
		unit := GetMetricUnit(a.Metric)
		row := []string{
			a.Timestamp.Format(time.RFC3339),
			a.TestName,
			GetMetricDisplayName(a.Metric),
			string(a.Severity),
			formatValue(a.Value, unit),
			formatValue(a.Expected, unit),
			fmt.Sprintf("%.2f", a.Deviation),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write anomaly row for test %q: %w", a.TestName, err)
		}
	}

	if err := w.Write([]string{""}); err != nil {
		return fmt.Errorf("write anomalies separator row: %w", err)
	}

	return nil
}

// writeTrends writes the per-test trend verdicts, when any exist.
func (g *CSVGenerator) writeTrends(w *csv.Writer, report *perftest.PerformanceReport) error {
	tests := report.TrendAnalysis.Performance.Tests
	if len(tests) == 0 {
		return nil
	}

	if err := w.Write([]string{"# TRENDS"}); err != nil {
		return fmt.Errorf("write trends section heading: %w", err)
	}

	columns := []string{"Test", "Metric", "Direction", "Slope", "R-Squared", "Confidence", "Samples"}
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write trends column headers: %w", err)
	}

	names := make([]string, 0, len(tests))
	for name := range tests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, tr := range tests[name].Trends {
			row := []string{
				tr.TestName,
				GetMetricDisplayName(tr.Metric),
				string(tr.Direction),
				fmt.Sprintf("%.4f", tr.Slope),
				fmt.Sprintf("%.3f", tr.RSquared),
				fmt.Sprintf("%.2f", tr.Confidence),
				strconv.Itoa(tr.SampleCount),
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write trend row for test %q metric %q: %w", tr.TestName, tr.Metric, err)
			}
		}
	}

	return nil
}
