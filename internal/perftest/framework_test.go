package perftest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/baseline"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/internal/sysmetrics"
)

// stubSampler returns scripted host usage.
type stubSampler struct {
	usage sysmetrics.Usage
	err   error
}

func (s stubSampler) Sample(context.Context) (sysmetrics.Usage, error) {
	return s.usage, s.err
}

// stubBaselines is a scripted baseline Manager and Detector.
type stubBaselines struct {
	mu       sync.Mutex
	recorded []string
	checked  []string
	alert    *alerting.Alert
	checkErr error
}

func (s *stubBaselines) RecordBaseline(testType, descriptor string, metrics stats.PerformanceMetrics, _ map[string]string) (*baseline.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, testType+"/"+descriptor)
	return &baseline.Record{
		ID:          "bl-1",
		TestType:    testType,
		Descriptor:  descriptor,
		Metrics:     metrics,
		SampleCount: 1,
	}, nil
}

func (s *stubBaselines) CheckRegression(testType, testName string, _ stats.PerformanceMetrics, _ map[string]string) (*alerting.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = append(s.checked, testType+"/"+testName)
	if s.checkErr != nil {
		return nil, s.checkErr
	}
	return s.alert, nil
}

func (s *stubBaselines) recordedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.recorded...)
}

func (s *stubBaselines) checkedCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.checked...)
}

// captureChannel records every alert the engine delivers.
type captureChannel struct {
	mu    sync.Mutex
	sends []alerting.EnhancedAlert
}

func (c *captureChannel) Name() string { return "capture" }
func (c *captureChannel) Type() string { return "test" }

func (c *captureChannel) Send(_ context.Context, alert *alerting.EnhancedAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, *alert)
	return nil
}

func (c *captureChannel) all() []alerting.EnhancedAlert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]alerting.EnhancedAlert(nil), c.sends...)
}

type frameworkFixture struct {
	fw      *Framework
	bl      *stubBaselines
	channel *captureChannel
	events  <-chan Event
	reg     *prometheus.Registry
}

// newFixture builds a framework with a pass-through alerting pipeline,
// scripted collaborators, and an isolated telemetry registry.
func newFixture(t *testing.T, opts Options, mutate ...func(*Dependencies)) *frameworkFixture {
	t.Helper()

	alerts := alerting.NewEngine(alerting.Config{})
	t.Cleanup(alerts.Stop)
	channel := &captureChannel{}
	alerts.RegisterChannel(alerting.ChannelConfig{Name: "capture", Type: "test", Enabled: true}, channel)

	bl := &stubBaselines{}
	reg := prometheus.NewRegistry()
	bus := NewEventBus()
	deps := Dependencies{
		Stats:     stats.NewEngine(stats.Config{}, nil),
		Alerts:    alerts,
		Recorder:  bl,
		Detector:  bl,
		Sampler:   stubSampler{usage: sysmetrics.Usage{CPUPercent: 35, MemoryPercent: 45}},
		Bus:       bus,
		Telemetry: newTelemetry(reg),
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	fw := New(opts, deps)
	t.Cleanup(fw.Stop)
	_, events := bus.Subscribe(128)
	return &frameworkFixture{fw: fw, bl: bl, channel: channel, events: events, reg: reg}
}

func cleanMetrics() stats.PerformanceMetrics {
	return stats.PerformanceMetrics{
		ResponseTime: stats.ResponseTimeStats{Mean: 120, Median: 110, P95: 180, P99: 240, Min: 60, Max: 300},
		Throughput:   stats.ThroughputStats{RequestsPerSecond: 850, TotalRequests: 51000},
		ErrorRate:    0.2,
		CPUUsage:     40,
		MemoryUsage:  50,
	}
}

func passingTest(m stats.PerformanceMetrics) TestFunc {
	return func(context.Context) (stats.PerformanceMetrics, error) {
		return m, nil
	}
}

func runCounts(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	counts := make(map[string]float64)
	family := findFamily(t, reg, "perfwatch_framework_test_runs_total")
	if family == nil {
		return counts
	}
	for _, m := range family.GetMetric() {
		key := labelValue(m, "test_type") + "/" + labelValue(m, "outcome")
		counts[key] = m.GetCounter().GetValue()
	}
	return counts
}

func TestNewAppliesDefaults(t *testing.T) {
	fw := New(Options{}, Dependencies{})
	t.Cleanup(fw.Stop)
	t.Cleanup(func() { fw.Alerts().Stop() })

	require.NotNil(t, fw.Stats())
	require.NotNil(t, fw.Alerts())
	require.NotNil(t, fw.Events())
	assert.Equal(t, DefaultRetention, fw.opts.Retention)
	assert.Equal(t, DefaultMaintenanceInterval, fw.opts.MaintenanceInterval)
	assert.Equal(t, DefaultAnalysisInterval, fw.opts.AnalysisInterval)
	assert.Equal(t, DefaultAutomatedInterval, fw.opts.AutomatedInterval)
}

func TestRunPerformanceTestHappyPath(t *testing.T) {
	fx := newFixture(t, Options{})

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load",
		passingTest(cleanMetrics()), RunOptions{Meta: map[string]string{"env": "ci"}})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Len(t, result.ID, 26)
	assert.Equal(t, "api-load", result.TestName)
	assert.Equal(t, "load", result.TestType)
	assert.True(t, result.Passed)
	assert.False(t, result.RegressionDetected)
	assert.Empty(t, result.Alerts)
	assert.Empty(t, result.Recommendations)
	assert.False(t, result.CompletedAt.Before(result.StartedAt))
	require.NotNil(t, result.Baseline)
	assert.Equal(t, "bl-1", result.Baseline.ID)

	assert.Equal(t, []string{"load/api-load"}, fx.bl.recordedCalls())
	assert.Equal(t, []string{"load/api-load"}, fx.bl.checkedCalls())
	assert.Equal(t, 1, fx.fw.Stats().SampleCount("api-load"))
	assert.Len(t, fx.fw.Results(), 1)

	types := eventTypes(drainEvents(fx.events))
	assert.Equal(t, []EventType{EventBaselineRecorded, EventComparisonCompleted, EventTestCompleted}, types)

	assert.Equal(t, 1.0, runCounts(t, fx.reg)["load/passed"])
}

func TestRunPerformanceTestValidation(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	_, err := fx.fw.RunPerformanceTest(ctx, "", "load", passingTest(cleanMetrics()), RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a name")

	_, err = fx.fw.RunPerformanceTest(ctx, "api-load", "load", nil, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a test function")
}

func TestRunPerformanceTestDefaultsTestType(t *testing.T) {
	fx := newFixture(t, Options{})

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "", passingTest(cleanMetrics()), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "load", result.TestType)
}

func TestRunPerformanceTestPropagatesTestFnError(t *testing.T) {
	fx := newFixture(t, Options{})
	sentinel := errors.New("connection refused")
	failing := func(context.Context) (stats.PerformanceMetrics, error) {
		return stats.PerformanceMetrics{}, sentinel
	}

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", failing, RunOptions{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "test api-load failed")

	// The measured system failed: nothing is recorded or published.
	assert.Empty(t, fx.fw.Results())
	assert.Equal(t, 0, fx.fw.Stats().SampleCount("api-load"))
	assert.Empty(t, fx.bl.recordedCalls())
	assert.Empty(t, drainEvents(fx.events))
	assert.Equal(t, 1.0, runCounts(t, fx.reg)["load/error"])
}

func TestRunPerformanceTestRegressionFlow(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.bl.alert = &alerting.Alert{
		Severity: alerting.SeverityMajor,
		TestType: "load",
		TestName: "api-load",
		Message:  "responseTime regressed 25.0% over baseline",
		Comparison: &alerting.ComparisonDetails{
			Metric:        "responseTime",
			Baseline:      100,
			Current:       125,
			ChangePercent: 25,
			Threshold:     20,
		},
	}

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(cleanMetrics()), RunOptions{})
	require.NoError(t, err)

	assert.True(t, result.RegressionDetected)
	assert.False(t, result.Passed)
	require.Len(t, result.Alerts, 1)
	assert.NotEmpty(t, result.Alerts[0].ID, "pipeline assigns the alert ID")
	require.Len(t, result.Deliveries, 1)
	assert.True(t, result.Deliveries[0].Sent)

	sends := fx.channel.all()
	require.Len(t, sends, 1)
	assert.Equal(t, "api-load", sends[0].TestName)
	assert.Equal(t, alerting.SeverityMajor, sends[0].Severity)

	events := drainEvents(fx.events)
	assert.True(t, hasEvent(events, EventRegressionDetected))
	var outcome ComparisonOutcome
	for _, ev := range events {
		if ev.Type == EventComparisonCompleted {
			outcome = ev.Data.(ComparisonOutcome)
		}
	}
	assert.True(t, outcome.RegressionDetected)
	require.NotNil(t, outcome.Alert)

	assert.Equal(t, 1.0, runCounts(t, fx.reg)["load/regression"])
	regressions := findFamily(t, fx.reg, "perfwatch_framework_regressions_total")
	require.NotNil(t, regressions)
	require.Len(t, regressions.GetMetric(), 1)
	assert.Equal(t, "major", labelValue(regressions.GetMetric()[0], "severity"))
}

func TestRunPerformanceTestFillsHostUsage(t *testing.T) {
	fx := newFixture(t, Options{})
	metrics := cleanMetrics()
	metrics.CPUUsage = 0
	metrics.MemoryUsage = 0

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(metrics), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 35.0, result.Metrics.CPUUsage)
	assert.Equal(t, 45.0, result.Metrics.MemoryUsage)
}

func TestRunPerformanceTestKeepsMeasuredUsage(t *testing.T) {
	fx := newFixture(t, Options{})
	metrics := cleanMetrics()
	metrics.CPUUsage = 70
	metrics.MemoryUsage = 0

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(metrics), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 70.0, result.Metrics.CPUUsage, "measured value wins")
	assert.Equal(t, 45.0, result.Metrics.MemoryUsage, "missing value is backfilled")
}

func TestRunPerformanceTestToleratesSamplerFailure(t *testing.T) {
	fx := newFixture(t, Options{}, func(d *Dependencies) {
		d.Sampler = stubSampler{err: errors.New("no procfs")}
	})
	metrics := cleanMetrics()
	metrics.CPUUsage = 0
	metrics.MemoryUsage = 0

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(metrics), RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, result.Metrics.CPUUsage)
	assert.Zero(t, result.Metrics.MemoryUsage)
}

func TestRunPerformanceTestRecommendations(t *testing.T) {
	fx := newFixture(t, Options{})
	metrics := cleanMetrics()
	metrics.ResponseTime.Mean = 1500
	metrics.ErrorRate = 2.5
	metrics.CPUUsage = 90
	metrics.MemoryUsage = 85

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(metrics), RunOptions{})
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 4)

	joined := strings.Join(result.Recommendations, "\n")
	assert.Contains(t, joined, "Mean response time exceeds 1s")
	assert.Contains(t, joined, "Error rate exceeds 1%")
	assert.Contains(t, joined, "CPU usage exceeds 80%")
	assert.Contains(t, joined, "Memory usage exceeds 80%")
}

func TestRunPerformanceTestSkipBaseline(t *testing.T) {
	fx := newFixture(t, Options{})

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load",
		passingTest(cleanMetrics()), RunOptions{SkipBaseline: true})
	require.NoError(t, err)

	assert.Nil(t, result.Baseline)
	assert.Empty(t, fx.bl.recordedCalls())
	assert.Empty(t, fx.bl.checkedCalls())

	types := eventTypes(drainEvents(fx.events))
	assert.Equal(t, []EventType{EventTestCompleted}, types)
}

func TestRunPerformanceTestDescriptorOverride(t *testing.T) {
	fx := newFixture(t, Options{})

	_, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load",
		passingTest(cleanMetrics()), RunOptions{Descriptor: "checkout-flow"})
	require.NoError(t, err)

	assert.Equal(t, []string{"load/checkout-flow"}, fx.bl.recordedCalls(), "recording keys on the descriptor")
	assert.Equal(t, []string{"load/api-load"}, fx.bl.checkedCalls(), "checking keys on the test name")
}

func TestRunPerformanceTestVisualCapture(t *testing.T) {
	fx := newFixture(t, Options{})
	visual := &alerting.VisualRegressionResult{
		TestName:           "checkout",
		Score:              25,
		RegressionDetected: true,
		DiffImage:          "/tmp/diff.png",
		Timestamp:          time.Now(),
	}

	result, err := fx.fw.RunPerformanceTest(context.Background(), "checkout", "visual",
		passingTest(cleanMetrics()), RunOptions{
			CaptureVisual: func(context.Context) (*alerting.VisualRegressionResult, error) {
				return visual, nil
			},
		})
	require.NoError(t, err)

	assert.Same(t, visual, result.Visual)
	assert.False(t, result.Passed, "visual regression fails the run")
	assert.False(t, result.RegressionDetected, "metric regression flag stays independent")
	require.Len(t, result.Deliveries, 1)

	sends := fx.channel.all()
	require.Len(t, sends, 1)
	assert.Equal(t, alerting.SeverityCritical, sends[0].Severity)
	assert.Equal(t, "visual_regression", sends[0].TestType)

	assert.True(t, hasEvent(drainEvents(fx.events), EventVisualRegressionDetected))
}

func TestRunPerformanceTestVisualCaptureFailure(t *testing.T) {
	fx := newFixture(t, Options{})

	result, err := fx.fw.RunPerformanceTest(context.Background(), "checkout", "visual",
		passingTest(cleanMetrics()), RunOptions{
			CaptureVisual: func(context.Context) (*alerting.VisualRegressionResult, error) {
				return nil, errors.New("browser crashed")
			},
		})
	require.NoError(t, err, "capture failures never fail the run")
	assert.Nil(t, result.Visual)
	assert.True(t, result.Passed)
}

func TestRunPerformanceTestVisualCaptureClean(t *testing.T) {
	fx := newFixture(t, Options{})
	visual := &alerting.VisualRegressionResult{TestName: "checkout", Score: 96, Timestamp: time.Now()}

	result, err := fx.fw.RunPerformanceTest(context.Background(), "checkout", "visual",
		passingTest(cleanMetrics()), RunOptions{
			CaptureVisual: func(context.Context) (*alerting.VisualRegressionResult, error) {
				return visual, nil
			},
		})
	require.NoError(t, err)

	assert.Same(t, visual, result.Visual)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Deliveries)
	assert.False(t, hasEvent(drainEvents(fx.events), EventVisualRegressionDetected))
}

func TestRunPerformanceTestPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	fx := newFixture(t, Options{DataDir: dir})

	result, err := fx.fw.RunPerformanceTest(context.Background(), "api-load", "load", passingTest(cleanMetrics()), RunOptions{})
	require.NoError(t, err)

	restarted := newFixture(t, Options{DataDir: dir})
	results := restarted.fw.Results()
	require.Len(t, results, 1)
	assert.Equal(t, result.ID, results[0].ID)
	assert.Equal(t, "api-load", results[0].TestName)
}

func TestResultsInRange(t *testing.T) {
	fx := newFixture(t, Options{})
	now := time.Now()
	fx.fw.results = []*PerformanceTestResult{
		{ID: "a", StartedAt: now.Add(-3 * time.Hour)},
		{ID: "b", StartedAt: now.Add(-90 * time.Minute)},
		{ID: "c", StartedAt: now.Add(-10 * time.Minute)},
	}

	got := fx.fw.ResultsInRange(stats.TimeRange{
		Start: now.Add(-2 * time.Hour),
		End:   now.Add(-30 * time.Minute),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	assert.Len(t, fx.fw.ResultsInRange(stats.TimeRange{}), 3, "zero range matches everything")
}

func TestRunPerformanceTestWithFileBaselines(t *testing.T) {
	mgr, err := baseline.NewFileManager("", baseline.ModeFixed, baseline.Thresholds{})
	require.NoError(t, err)
	fx := newFixture(t, Options{}, func(d *Dependencies) {
		d.Recorder = mgr
		d.Detector = mgr
	})
	ctx := context.Background()

	first, err := fx.fw.RunPerformanceTest(ctx, "api-load", "load", passingTest(cleanMetrics()), RunOptions{})
	require.NoError(t, err)
	assert.False(t, first.RegressionDetected, "first run defines the baseline")

	slow := cleanMetrics()
	slow.ResponseTime.Mean *= 1.5
	slow.ResponseTime.P95 *= 1.5
	slow.ResponseTime.P99 *= 1.5

	second, err := fx.fw.RunPerformanceTest(ctx, "api-load", "load", passingTest(slow), RunOptions{})
	require.NoError(t, err)
	assert.True(t, second.RegressionDetected)
	require.Len(t, second.Alerts, 1)
	alert := second.Alerts[0]
	assert.Equal(t, alerting.SeverityMajor, alert.Severity)
	require.NotNil(t, alert.Comparison)
	assert.Equal(t, "responseTime", alert.Comparison.Metric)
	assert.InDelta(t, 50, alert.Comparison.ChangePercent, 0.01)
	require.Len(t, fx.channel.all(), 1)
}
