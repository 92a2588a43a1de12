package perftest

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry holds the Prometheus instruments for the framework.
type Telemetry struct {
	testDuration *prometheus.HistogramVec
	testRuns     *prometheus.CounterVec
	regressions  *prometheus.CounterVec
	anomalies    *prometheus.CounterVec
	activeAlerts prometheus.Gauge
}

var (
	telemetryInstance *Telemetry
	telemetryOnce     sync.Once
)

// getTelemetry returns the process-wide telemetry, registering it on
// the default registry on first use.
func getTelemetry() *Telemetry {
	telemetryOnce.Do(func() {
		telemetryInstance = newTelemetry(prometheus.DefaultRegisterer)
	})
	return telemetryInstance
}

func newTelemetry(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		testDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "perfwatch",
				Subsystem: "framework",
				Name:      "test_duration_seconds",
				Help:      "Duration of performance test executions",
				Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"test_type"},
		),
		testRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perfwatch",
				Subsystem: "framework",
				Name:      "test_runs_total",
				Help:      "Completed performance test runs by outcome",
			},
			[]string{"test_type", "outcome"},
		),
		regressions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perfwatch",
				Subsystem: "framework",
				Name:      "regressions_total",
				Help:      "Regressions detected against recorded baselines",
			},
			[]string{"test_type", "severity"},
		),
		anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "perfwatch",
				Subsystem: "framework",
				Name:      "anomalies_total",
				Help:      "Anomalies flagged during metric ingestion",
			},
			[]string{"severity"},
		),
		activeAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "perfwatch",
				Subsystem: "framework",
				Name:      "active_alerts",
				Help:      "Alerts currently awaiting acknowledgment",
			},
		),
	}

	reg.MustRegister(
		t.testDuration,
		t.testRuns,
		t.regressions,
		t.anomalies,
		t.activeAlerts,
	)

	return t
}

// RecordRun observes one finished test execution.
func (t *Telemetry) RecordRun(testType, outcome string, duration time.Duration) {
	if t == nil {
		return
	}
	t.testDuration.WithLabelValues(testType).Observe(duration.Seconds())
	t.testRuns.With(prometheus.Labels{
		"test_type": testType,
		"outcome":   outcome,
	}).Inc()
}

// RecordRegression counts one detected regression.
func (t *Telemetry) RecordRegression(testType, severity string) {
	if t == nil {
		return
	}
	t.regressions.With(prometheus.Labels{
		"test_type": testType,
		"severity":  severity,
	}).Inc()
}

// RecordAnomaly counts one flagged anomaly.
func (t *Telemetry) RecordAnomaly(severity string) {
	if t == nil {
		return
	}
	t.anomalies.WithLabelValues(severity).Inc()
}

// SetActiveAlerts tracks the number of unacknowledged alerts.
func (t *Telemetry) SetActiveAlerts(n int) {
	if t == nil {
		return
	}
	t.activeAlerts.Set(float64(n))
}
