package perftest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/baseline"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/internal/storage"
)

// Action item thresholds.
const (
	criticalP99Ms        = 5000
	criticalErrorRatePct = 5
)

// ActionItem is one prioritized follow-up in a report.
type ActionItem struct {
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Tests       []string `json:"tests,omitempty"`
}

// ReportSummary counts the runs a report covers.
type ReportSummary struct {
	TotalTests  int `json:"totalTests"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	Regressions int `json:"regressions"`
	Anomalies   int `json:"anomalies"`
}

// PerformanceReport is the outcome of one regression analysis pass.
type PerformanceReport struct {
	ID              string                   `json:"id"`
	GeneratedAt     time.Time                `json:"generatedAt"`
	TimeRange       stats.TimeRange          `json:"timeRange"`
	Summary         ReportSummary            `json:"summary"`
	TestResults     []*PerformanceTestResult `json:"testResults"`
	TrendAnalysis   stats.TrendReport        `json:"trendAnalysis"`
	Baselines       []*baseline.Record       `json:"baselines,omitempty"`
	ActiveAlerts    []alerting.Alert         `json:"activeAlerts,omitempty"`
	Recommendations []string                 `json:"recommendations,omitempty"`
	ActionItems     []ActionItem             `json:"actionItems"`
}

// baselineLister is the optional listing side of a baseline recorder.
// Reports include the recorded baselines when the recorder provides it.
type baselineLister interface {
	Records() []*baseline.Record
}

// RunRegressionAnalysis aggregates the stored results in range into a
// report: pass/fail counts, a full trend analysis pass, generated
// recommendations, and prioritized action items.
func (f *Framework) RunRegressionAnalysis(ctx context.Context, tr stats.TimeRange) (*PerformanceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := f.ResultsInRange(tr)
	report := &PerformanceReport{
		ID:          newID(),
		GeneratedAt: time.Now(),
		TimeRange:   tr,
		TestResults: results,
	}

	for _, r := range results {
		report.Summary.TotalTests++
		if r.Passed {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
		}
		if r.RegressionDetected {
			report.Summary.Regressions++
		}
	}

	report.TrendAnalysis = f.stats.AnalyzeTrends(tr)
	report.Summary.Anomalies = len(report.TrendAnalysis.Anomalies)

	if lister, ok := f.recorder.(baselineLister); ok {
		report.Baselines = lister.Records()
	}
	report.ActiveAlerts = f.alerts.GetActiveAlerts()

	report.Recommendations = reportRecommendations(results, report.TrendAnalysis)
	report.ActionItems = buildActionItems(results, report.TrendAnalysis)

	f.bus.Publish(EventAnalysisCompleted, report)
	log.Info().
		Int("tests", report.Summary.TotalTests).
		Int("regressions", report.Summary.Regressions).
		Int("anomalies", report.Summary.Anomalies).
		Str("overall", string(report.TrendAnalysis.Performance.Overall)).
		Msg("Regression analysis completed")
	return report, nil
}

// ExportReport writes the report as an indented JSON document.
func (f *Framework) ExportReport(report *PerformanceReport, path string) error {
	if report == nil {
		return errors.New("no report to export")
	}
	return storage.SaveJSONFile(path, report)
}

// reportRecommendations rolls the per-run findings up into report-level
// guidance.
func reportRecommendations(results []*PerformanceTestResult, trends stats.TrendReport) []string {
	var recs []string

	regressions := 0
	for _, r := range results {
		if r.RegressionDetected {
			regressions++
		}
	}
	if regressions > 0 {
		recs = append(recs, fmt.Sprintf("%d of %d runs regressed against baseline; review recent changes to the affected tests", regressions, len(results)))
	}
	if n := len(trends.Anomalies); n > 0 {
		recs = append(recs, fmt.Sprintf("%d anomalies in the analysis window; correlate with deploys and infrastructure events", n))
	}
	if trends.Performance.Overall == stats.TrendDegrading {
		recs = append(recs, "Overall performance trend is degrading; prioritize performance work in the next iteration")
	}

	seen := make(map[string]bool)
	for _, r := range results {
		for _, rec := range r.Recommendations {
			if !seen[rec] {
				seen[rec] = true
				recs = append(recs, rec)
			}
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Performance is stable; no action required")
	}
	return recs
}

// buildActionItems derives the prioritized follow-ups: critical for
// severe latency or error spikes, high for a degrading overall trend,
// and the standing baseline-review and monitoring items.
func buildActionItems(results []*PerformanceTestResult, trends stats.TrendReport) []ActionItem {
	var items []ActionItem

	var critical []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Metrics.ResponseTime.P99 > criticalP99Ms || r.Metrics.ErrorRate > criticalErrorRatePct {
			if !seen[r.TestName] {
				seen[r.TestName] = true
				critical = append(critical, r.TestName)
			}
		}
	}
	if len(critical) > 0 {
		sort.Strings(critical)
		items = append(items, ActionItem{
			Priority:    "critical",
			Category:    "performance",
			Description: "Resolve severe latency or error spikes before the next release",
			Tests:       critical,
		})
	}

	if trends.Performance.Overall == stats.TrendDegrading {
		items = append(items, ActionItem{
			Priority:    "high",
			Category:    "trend",
			Description: "Overall performance trend is degrading; schedule an investigation",
		})
	}

	items = append(items,
		ActionItem{
			Priority:    "medium",
			Category:    "baseline",
			Description: "Review recorded baselines against current traffic patterns",
		},
		ActionItem{
			Priority:    "low",
			Category:    "monitoring",
			Description: "Extend metric coverage and alert channels where gaps were found",
		},
	)
	return items
}
