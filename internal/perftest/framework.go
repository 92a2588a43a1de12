// Package perftest orchestrates performance test execution. It runs the
// measured function, records baselines and checks for regressions
// through the configured collaborators, feeds samples to the statistics
// engine, routes findings through the alerting pipeline, and fans
// events out to subscribers.
package perftest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/baseline"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/internal/storage"
	"github.com/perfwatch/perfwatch/internal/sysmetrics"
)

const resultsFile = "results.json"

// Default schedules for the background jobs.
const (
	DefaultMaintenanceInterval = 6 * time.Hour
	DefaultAnalysisInterval    = 2 * time.Hour
	DefaultAutomatedInterval   = 4 * time.Hour
	DefaultRetention           = 30 * 24 * time.Hour

	// analysisWindow bounds the trailing range scheduled analysis covers.
	analysisWindow = 24 * time.Hour
)

// TestFunc produces the measured metrics of one test execution.
type TestFunc func(ctx context.Context) (stats.PerformanceMetrics, error)

// VisualCaptureFunc captures a visual comparison for a finished run.
type VisualCaptureFunc func(ctx context.Context) (*alerting.VisualRegressionResult, error)

// RunOptions tune a single test execution.
type RunOptions struct {
	// Descriptor keys the baseline the run is recorded under and
	// compared against. Defaults to the test name.
	Descriptor string
	// Tags are attached to the stored metric sample.
	Tags map[string]string
	// Meta is forwarded to the baseline collaborators.
	Meta map[string]string
	// CaptureVisual, when set, runs after the test function; its
	// outcome is attached to the result and a detected visual
	// regression is routed through the alerting pipeline.
	CaptureVisual VisualCaptureFunc
	// SkipBaseline leaves baselines untouched and skips the
	// regression check.
	SkipBaseline bool
}

// PerformanceTestResult is the outcome of one orchestrated run.
type PerformanceTestResult struct {
	ID                 string                           `json:"id"`
	TestName           string                           `json:"testName"`
	TestType           string                           `json:"testType"`
	StartedAt          time.Time                        `json:"startedAt"`
	CompletedAt        time.Time                        `json:"completedAt"`
	DurationMs         int64                            `json:"durationMs"`
	Metrics            stats.PerformanceMetrics         `json:"metrics"`
	Tags               map[string]string                `json:"tags,omitempty"`
	Baseline           *baseline.Record                 `json:"baseline,omitempty"`
	RegressionDetected bool                             `json:"regressionDetected"`
	Alerts             []alerting.Alert                 `json:"alerts,omitempty"`
	Deliveries         []alerting.DeliveryResult        `json:"deliveries,omitempty"`
	Visual             *alerting.VisualRegressionResult `json:"visual,omitempty"`
	Recommendations    []string                         `json:"recommendations,omitempty"`
	Passed             bool                             `json:"passed"`
}

// ComparisonOutcome is the payload published after each baseline
// comparison, whether or not it found a regression.
type ComparisonOutcome struct {
	TestName           string          `json:"testName"`
	TestType           string          `json:"testType"`
	RegressionDetected bool            `json:"regressionDetected"`
	Alert              *alerting.Alert `json:"alert,omitempty"`
}

// TrendChange is the payload published when the overall trend
// direction moves between analysis passes.
type TrendChange struct {
	Previous stats.TrendDirection `json:"previous"`
	Current  stats.TrendDirection `json:"current"`
	Score    float64              `json:"score"`
}

// EscalationNotice is the payload published when an unacknowledged
// alert escalates.
type EscalationNotice struct {
	Alert *alerting.Alert `json:"alert"`
	Level int             `json:"level"`
}

// Options configure the framework.
type Options struct {
	// DataDir enables result persistence and screenshot pruning when
	// set.
	DataDir string
	// Retention bounds how long results and screenshots are kept.
	Retention time.Duration

	MaintenanceInterval time.Duration
	AnalysisInterval    time.Duration
	AutomatedInterval   time.Duration
}

func (o *Options) applyDefaults() {
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.MaintenanceInterval <= 0 {
		o.MaintenanceInterval = DefaultMaintenanceInterval
	}
	if o.AnalysisInterval <= 0 {
		o.AnalysisInterval = DefaultAnalysisInterval
	}
	if o.AutomatedInterval <= 0 {
		o.AutomatedInterval = DefaultAutomatedInterval
	}
}

// UsageSampler reads host CPU and memory usage for runs that did not
// measure their own.
type UsageSampler interface {
	Sample(ctx context.Context) (sysmetrics.Usage, error)
}

// Dependencies are the collaborators the framework drives. Nil Stats,
// Alerts, Sampler, Bus, or Telemetry fields get working defaults. Nil
// Recorder or Detector disables that stage; the framework consumes
// only the interfaces.
type Dependencies struct {
	Stats     *stats.Engine
	Alerts    *alerting.Engine
	Recorder  baseline.Manager
	Detector  baseline.Detector
	Sampler   UsageSampler
	Bus       *EventBus
	Telemetry *Telemetry
}

// Framework drives performance test runs end to end and owns the
// stored run history.
type Framework struct {
	mu sync.RWMutex

	opts     Options
	stats    *stats.Engine
	alerts   *alerting.Engine
	recorder baseline.Manager
	detector baseline.Detector
	sampler  UsageSampler
	bus      *EventBus
	tele     *Telemetry

	results   []*PerformanceTestResult
	automated []AutomatedTest
	started   bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds a framework, restores any persisted run history, and
// wires the engine callbacks onto the event bus.
func New(opts Options, deps Dependencies) *Framework {
	opts.applyDefaults()
	f := &Framework{
		opts:     opts,
		stats:    deps.Stats,
		alerts:   deps.Alerts,
		recorder: deps.Recorder,
		detector: deps.Detector,
		sampler:  deps.Sampler,
		bus:      deps.Bus,
		tele:     deps.Telemetry,
		stopCh:   make(chan struct{}),
	}
	if f.stats == nil {
		f.stats = stats.NewEngine(stats.Config{}, nil)
	}
	if f.alerts == nil {
		f.alerts = alerting.NewEngine(alerting.DefaultConfig())
	}
	if f.sampler == nil {
		f.sampler = sysmetrics.NewSampler(0)
	}
	if f.bus == nil {
		f.bus = NewEventBus()
	}
	if f.tele == nil {
		f.tele = getTelemetry()
	}

	f.stats.SetAnomalyCallback(func(anomaly stats.AnomalyDetection) {
		f.tele.RecordAnomaly(string(anomaly.Severity))
		f.bus.Publish(EventAnomalyDetected, anomaly)
	})
	f.stats.SetTrendChangeCallback(func(previous, current stats.TrendDirection, score float64) {
		f.bus.Publish(EventTrendChange, TrendChange{Previous: previous, Current: current, Score: score})
	})
	f.alerts.SetEscalateCallback(func(alert *alerting.Alert, level int) {
		f.bus.Publish(EventAlertEscalated, EscalationNotice{Alert: alert, Level: level})
	})

	f.loadResults()
	return f
}

// Events returns the bus the framework publishes on.
func (f *Framework) Events() *EventBus {
	return f.bus
}

// Alerts returns the alerting engine the framework routes findings to.
func (f *Framework) Alerts() *alerting.Engine {
	return f.alerts
}

// Stats returns the statistics engine the framework feeds.
func (f *Framework) Stats() *stats.Engine {
	return f.stats
}

// RunPerformanceTest executes fn, runs its metrics through the
// baseline, statistics, and alerting stages, and returns the stored
// result. An error from fn aborts the run and propagates to the
// caller; failures in the analysis stages are logged and absorbed.
func (f *Framework) RunPerformanceTest(ctx context.Context, name, testType string, fn TestFunc, opts RunOptions) (*PerformanceTestResult, error) {
	if name == "" {
		return nil, errors.New("performance test requires a name")
	}
	if fn == nil {
		return nil, errors.New("performance test requires a test function")
	}
	if testType == "" {
		testType = "load"
	}

	start := time.Now()
	log.Info().Str("test", name).Str("type", testType).Msg("Starting performance test")

	metrics, err := fn(ctx)
	if err != nil {
		f.tele.RecordRun(testType, "error", time.Since(start))
		return nil, fmt.Errorf("test %s failed: %w", name, err)
	}

	f.fillHostUsage(ctx, &metrics)

	result := &PerformanceTestResult{
		ID:        newID(),
		TestName:  name,
		TestType:  testType,
		StartedAt: start,
		Metrics:   metrics,
		Tags:      cloneStringMap(opts.Tags),
	}

	if opts.CaptureVisual != nil {
		f.captureVisual(ctx, result, opts.CaptureVisual)
	}

	if !opts.SkipBaseline {
		f.runBaselineStage(result, opts)
	}

	f.stats.AnalyzeMetrics(stats.MetricSample{
		TestName:  name,
		TestType:  testType,
		Timestamp: start,
		Metrics:   metrics,
		Tags:      opts.Tags,
	})

	result.Recommendations = buildRecommendations(metrics)
	result.Passed = !result.RegressionDetected && (result.Visual == nil || !result.Visual.RegressionDetected)
	result.CompletedAt = time.Now()
	result.DurationMs = result.CompletedAt.Sub(start).Milliseconds()

	f.mu.Lock()
	f.results = append(f.results, result)
	f.persistLocked()
	f.mu.Unlock()

	outcome := "passed"
	if !result.Passed {
		outcome = "regression"
	}
	f.tele.RecordRun(testType, outcome, result.CompletedAt.Sub(start))
	f.tele.SetActiveAlerts(len(f.alerts.GetActiveAlerts()))
	f.bus.Publish(EventTestCompleted, result)

	log.Info().
		Str("test", name).
		Bool("regression", result.RegressionDetected).
		Int64("durationMs", result.DurationMs).
		Msg("Performance test completed")
	return result, nil
}

// fillHostUsage backfills CPU and memory from the host sampler when
// the test function did not measure them itself.
func (f *Framework) fillHostUsage(ctx context.Context, metrics *stats.PerformanceMetrics) {
	if metrics.CPUUsage != 0 && metrics.MemoryUsage != 0 {
		return
	}
	usage, err := f.sampler.Sample(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Host usage sampling failed")
		return
	}
	if metrics.CPUUsage == 0 {
		metrics.CPUUsage = usage.CPUPercent
	}
	if metrics.MemoryUsage == 0 {
		metrics.MemoryUsage = usage.MemoryPercent
	}
}

func (f *Framework) captureVisual(ctx context.Context, result *PerformanceTestResult, capture VisualCaptureFunc) {
	visual, err := capture(ctx)
	if err != nil {
		log.Warn().Err(err).Str("test", result.TestName).Msg("Visual capture failed")
		return
	}
	if visual == nil {
		return
	}
	result.Visual = visual
	if !visual.RegressionDetected {
		return
	}
	deliveries := f.alerts.ProcessVisualRegression(*visual)
	result.Deliveries = append(result.Deliveries, deliveries...)
	f.bus.Publish(EventVisualRegressionDetected, visual)
}

// runBaselineStage records the run against its baseline and checks for
// a regression. Collaborator failures are logged, never fatal.
func (f *Framework) runBaselineStage(result *PerformanceTestResult, opts RunOptions) {
	descriptor := opts.Descriptor
	if descriptor == "" {
		descriptor = result.TestName
	}

	if f.recorder != nil {
		record, err := f.recorder.RecordBaseline(result.TestType, descriptor, result.Metrics, opts.Meta)
		if err != nil {
			log.Warn().Err(err).Str("test", result.TestName).Msg("Baseline recording failed")
		} else {
			result.Baseline = record
			f.bus.Publish(EventBaselineRecorded, record)
		}
	}

	if f.detector == nil {
		return
	}
	alert, err := f.detector.CheckRegression(result.TestType, result.TestName, result.Metrics, opts.Meta)
	if err != nil {
		log.Warn().Err(err).Str("test", result.TestName).Msg("Regression check failed")
		return
	}
	f.bus.Publish(EventComparisonCompleted, ComparisonOutcome{
		TestName:           result.TestName,
		TestType:           result.TestType,
		RegressionDetected: alert != nil,
		Alert:              alert,
	})
	if alert == nil {
		return
	}

	result.RegressionDetected = true
	deliveries := f.alerts.ProcessAlert(alert)
	result.Alerts = append(result.Alerts, *alert)
	result.Deliveries = append(result.Deliveries, deliveries...)
	f.tele.RecordRegression(result.TestType, string(alert.Severity))
	f.bus.Publish(EventRegressionDetected, alert)
	log.Warn().
		Str("test", result.TestName).
		Str("severity", string(alert.Severity)).
		Msg("Regression detected")
}

// Results returns a copy of the stored run history, oldest first.
func (f *Framework) Results() []*PerformanceTestResult {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*PerformanceTestResult, len(f.results))
	copy(out, f.results)
	return out
}

// ResultsInRange returns stored results whose start time falls inside
// the range. A zero range matches everything.
func (f *Framework) ResultsInRange(tr stats.TimeRange) []*PerformanceTestResult {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*PerformanceTestResult
	for _, r := range f.results {
		if tr.Contains(r.StartedAt) {
			out = append(out, r)
		}
	}
	return out
}

// ExportTrendData returns the derived statistics for the range.
func (f *Framework) ExportTrendData(tr stats.TimeRange) stats.ExportData {
	return f.stats.ExportTrendData(tr)
}

func (f *Framework) loadResults() {
	if f.opts.DataDir == "" {
		return
	}
	var results []*PerformanceTestResult
	if err := storage.LoadJSONFile(filepath.Join(f.opts.DataDir, resultsFile), &results); err != nil {
		log.Warn().Err(err).Msg("Failed to load test result history, starting empty")
		return
	}
	f.results = results
	if len(results) > 0 {
		log.Info().Int("results", len(results)).Msg("Restored test result history")
	}
}

// persistLocked writes the run history through to disk. Failures leave
// the in-memory history authoritative and are only logged.
func (f *Framework) persistLocked() {
	if f.opts.DataDir == "" {
		return
	}
	if err := storage.SaveJSONFile(filepath.Join(f.opts.DataDir, resultsFile), f.results); err != nil {
		log.Warn().Err(err).Msg("Failed to persist test results")
	}
}

// buildRecommendations flags the standing thresholds a run crossed.
func buildRecommendations(m stats.PerformanceMetrics) []string {
	var recs []string
	if m.ResponseTime.Mean > 1000 {
		recs = append(recs, "Mean response time exceeds 1s; profile slow endpoints and consider caching")
	}
	if m.ErrorRate > 1 {
		recs = append(recs, "Error rate exceeds 1%; investigate failing requests before the next run")
	}
	if m.CPUUsage > 80 {
		recs = append(recs, "CPU usage exceeds 80%; check for hot paths or add capacity")
	}
	if m.MemoryUsage > 80 {
		recs = append(recs, "Memory usage exceeds 80%; look for leaks or oversized working sets")
	}
	return recs
}

func cloneStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func newID() string {
	return ulid.Make().String()
}
