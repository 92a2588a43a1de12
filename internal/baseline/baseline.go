// Package baseline owns the reference measurements regressions are
// judged against. The orchestrator consumes only the Manager and
// Detector interfaces; FileManager is the built-in threshold
// implementation backing the CLI.
package baseline

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/internal/stats"
	"github.com/perfwatch/perfwatch/internal/storage"
)

const baselinesFile = "baselines.json"

// Manager records reference measurements.
type Manager interface {
	RecordBaseline(testType, descriptor string, metrics stats.PerformanceMetrics, meta map[string]string) (*Record, error)
}

// Detector compares a measurement against its baseline and returns an
// alert when a threshold is breached, nil when the run is clean.
type Detector interface {
	CheckRegression(testType, testName string, metrics stats.PerformanceMetrics, meta map[string]string) (*alerting.Alert, error)
}

// Mode selects how repeated recordings update a baseline.
type Mode string

const (
	// ModeRolling folds every recording into a cumulative average.
	ModeRolling Mode = "rolling"
	// ModeFixed pins the first recording until the baseline is reset.
	ModeFixed Mode = "fixed"
)

// Record is one stored baseline.
type Record struct {
	ID          string                   `json:"id"`
	TestType    string                   `json:"testType"`
	Descriptor  string                   `json:"descriptor"`
	Metrics     stats.PerformanceMetrics `json:"metrics"`
	Meta        map[string]string        `json:"meta,omitempty"`
	SampleCount int                      `json:"sampleCount"`
	RecordedAt  time.Time                `json:"recordedAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func (r *Record) clone() *Record {
	out := *r
	if r.Meta != nil {
		out.Meta = make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}

// Thresholds are the allowed drifts before a run counts as a
// regression. Percent fields are relative to the baseline value, the
// error rate bound is in absolute percentage points.
type Thresholds struct {
	ResponseTimePercent float64 `json:"responseTimePercent"`
	ThroughputPercent   float64 `json:"throughputPercent"`
	ErrorRatePoints     float64 `json:"errorRatePoints"`
	ResourcePercent     float64 `json:"resourcePercent"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ResponseTimePercent: 20,
		ThroughputPercent:   20,
		ErrorRatePoints:     2,
		ResourcePercent:     30,
	}
}

// FileManager keeps baselines in memory with write-through JSON
// persistence. It implements both Manager and Detector.
type FileManager struct {
	mu         sync.RWMutex
	dataDir    string
	mode       Mode
	thresholds Thresholds
	records    map[string]*Record
}

var (
	_ Manager  = (*FileManager)(nil)
	_ Detector = (*FileManager)(nil)
)

// NewFileManager loads any persisted baselines from dataDir. An empty
// dataDir keeps baselines in memory only.
func NewFileManager(dataDir string, mode Mode, thresholds Thresholds) (*FileManager, error) {
	if mode == "" {
		mode = ModeRolling
	}
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	m := &FileManager{
		dataDir:    dataDir,
		mode:       mode,
		thresholds: thresholds,
		records:    make(map[string]*Record),
	}
	if dataDir != "" {
		var loaded []*Record
		if err := storage.LoadJSONFile(m.filePath(), &loaded); err != nil {
			return nil, fmt.Errorf("loading baselines: %w", err)
		}
		for _, rec := range loaded {
			m.records[baselineKey(rec.TestType, rec.Descriptor)] = rec
		}
		if len(loaded) > 0 {
			log.Info().Int("count", len(loaded)).Msg("Loaded baselines")
		}
	}
	return m, nil
}

func (m *FileManager) filePath() string {
	return filepath.Join(m.dataDir, baselinesFile)
}

func baselineKey(testType, descriptor string) string {
	return testType + "|" + descriptor
}

// RecordBaseline stores or updates the baseline for one test. Rolling
// mode folds the measurement into a cumulative average; fixed mode
// keeps the first measurement and only counts the sample.
func (m *FileManager) RecordBaseline(testType, descriptor string, metrics stats.PerformanceMetrics, meta map[string]string) (*Record, error) {
	if testType == "" || descriptor == "" {
		return nil, fmt.Errorf("baseline requires a test type and descriptor")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	key := baselineKey(testType, descriptor)
	rec, ok := m.records[key]
	switch {
	case !ok:
		rec = &Record{
			ID:          uuid.NewString(),
			TestType:    testType,
			Descriptor:  descriptor,
			Metrics:     metrics,
			SampleCount: 1,
			RecordedAt:  now,
			UpdatedAt:   now,
		}
		if len(meta) > 0 {
			rec.Meta = make(map[string]string, len(meta))
			for k, v := range meta {
				rec.Meta[k] = v
			}
		}
		m.records[key] = rec
	case m.mode == ModeFixed:
		rec.SampleCount++
		rec.UpdatedAt = now
	default:
		rec.SampleCount++
		blendMetrics(&rec.Metrics, metrics, rec.SampleCount)
		rec.UpdatedAt = now
	}

	m.saveLocked()
	return rec.clone(), nil
}

// Baseline returns the stored record for a test, if any.
func (m *FileManager) Baseline(testType, descriptor string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[baselineKey(testType, descriptor)]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Records lists every baseline, ordered by test type then descriptor.
func (m *FileManager) Records() []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TestType != out[j].TestType {
			return out[i].TestType < out[j].TestType
		}
		return out[i].Descriptor < out[j].Descriptor
	})
	return out
}

// Reset drops the baseline for one test so the next recording starts
// fresh.
func (m *FileManager) Reset(testType, descriptor string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := baselineKey(testType, descriptor)
	if _, ok := m.records[key]; !ok {
		return false
	}
	delete(m.records, key)
	m.saveLocked()
	return true
}

// CheckRegression compares a run against its baseline and reports the
// worst threshold breach as an alert. No baseline means no verdict.
func (m *FileManager) CheckRegression(testType, testName string, metrics stats.PerformanceMetrics, meta map[string]string) (*alerting.Alert, error) {
	m.mu.RLock()
	rec, ok := m.records[baselineKey(testType, testName)]
	var base stats.PerformanceMetrics
	if ok {
		base = rec.Metrics
	}
	thresholds := m.thresholds
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var worst *breach
	consider := func(b *breach) {
		if b != nil && (worst == nil || b.ratio > worst.ratio) {
			worst = b
		}
	}

	consider(checkIncrease("responseTime", base.ResponseTime.Mean, metrics.ResponseTime.Mean, thresholds.ResponseTimePercent))
	consider(checkIncrease("responseTimeP95", base.ResponseTime.P95, metrics.ResponseTime.P95, thresholds.ResponseTimePercent))
	consider(checkIncrease("responseTimeP99", base.ResponseTime.P99, metrics.ResponseTime.P99, thresholds.ResponseTimePercent))
	consider(checkDecrease("throughput", base.Throughput.RequestsPerSecond, metrics.Throughput.RequestsPerSecond, thresholds.ThroughputPercent))
	consider(checkErrorRate(base.ErrorRate, metrics.ErrorRate, thresholds.ErrorRatePoints))
	consider(checkIncrease("cpuUsage", base.CPUUsage, metrics.CPUUsage, thresholds.ResourcePercent))
	consider(checkIncrease("memoryUsage", base.MemoryUsage, metrics.MemoryUsage, thresholds.ResourcePercent))

	if worst == nil {
		return nil, nil
	}

	log.Debug().
		Str("testName", testName).
		Str("metric", worst.metric).
		Float64("changePercent", worst.changePercent).
		Msg("Regression threshold breached")

	return &alerting.Alert{
		Severity: severityForRatio(worst.ratio),
		TestType: testType,
		TestName: testName,
		Message:  worst.message,
		Comparison: &alerting.ComparisonDetails{
			Metric:        worst.metric,
			Baseline:      worst.baseline,
			Current:       worst.current,
			ChangePercent: worst.changePercent,
			Threshold:     worst.threshold,
		},
	}, nil
}

type breach struct {
	metric        string
	baseline      float64
	current       float64
	changePercent float64
	threshold     float64
	// ratio measures how far past the threshold the change landed.
	ratio   float64
	message string
}

func checkIncrease(metric string, base, current, thresholdPercent float64) *breach {
	if base <= 0 || current <= 0 {
		return nil
	}
	changePercent := (current - base) / base * 100
	if changePercent <= thresholdPercent {
		return nil
	}
	return &breach{
		metric:        metric,
		baseline:      base,
		current:       current,
		changePercent: changePercent,
		threshold:     thresholdPercent,
		ratio:         changePercent / thresholdPercent,
		message: fmt.Sprintf("%s regressed %.1f%% over baseline (%.2f -> %.2f, threshold %.0f%%)",
			metric, changePercent, base, current, thresholdPercent),
	}
}

func checkDecrease(metric string, base, current, thresholdPercent float64) *breach {
	if base <= 0 || current <= 0 {
		return nil
	}
	changePercent := (current - base) / base * 100
	if -changePercent <= thresholdPercent {
		return nil
	}
	return &breach{
		metric:        metric,
		baseline:      base,
		current:       current,
		changePercent: changePercent,
		threshold:     thresholdPercent,
		ratio:         -changePercent / thresholdPercent,
		message: fmt.Sprintf("%s dropped %.1f%% below baseline (%.2f -> %.2f, threshold %.0f%%)",
			metric, -changePercent, base, current, thresholdPercent),
	}
}

func checkErrorRate(base, current, thresholdPoints float64) *breach {
	delta := current - base
	if thresholdPoints <= 0 || delta <= thresholdPoints {
		return nil
	}
	changePercent := 0.0
	if base > 0 {
		changePercent = delta / base * 100
	}
	return &breach{
		metric:        "errorRate",
		baseline:      base,
		current:       current,
		changePercent: changePercent,
		threshold:     thresholdPoints,
		ratio:         delta / thresholdPoints,
		message: fmt.Sprintf("errorRate rose %.1f points over baseline (%.2f%% -> %.2f%%, threshold %.1f points)",
			delta, base, current, thresholdPoints),
	}
}

func severityForRatio(ratio float64) alerting.Severity {
	switch {
	case ratio >= 3:
		return alerting.SeverityCritical
	case ratio >= 2:
		return alerting.SeverityMajor
	case ratio >= 1.5:
		return alerting.SeverityModerate
	default:
		return alerting.SeverityMinor
	}
}

// blendMetrics folds a new measurement into the cumulative average at
// sample n. Min and max widen instead of averaging.
func blendMetrics(base *stats.PerformanceMetrics, incoming stats.PerformanceMetrics, n int) {
	base.ResponseTime.Mean = blendValue(base.ResponseTime.Mean, incoming.ResponseTime.Mean, n)
	base.ResponseTime.Median = blendValue(base.ResponseTime.Median, incoming.ResponseTime.Median, n)
	base.ResponseTime.P95 = blendValue(base.ResponseTime.P95, incoming.ResponseTime.P95, n)
	base.ResponseTime.P99 = blendValue(base.ResponseTime.P99, incoming.ResponseTime.P99, n)
	if incoming.ResponseTime.Min < base.ResponseTime.Min {
		base.ResponseTime.Min = incoming.ResponseTime.Min
	}
	if incoming.ResponseTime.Max > base.ResponseTime.Max {
		base.ResponseTime.Max = incoming.ResponseTime.Max
	}
	base.Throughput.RequestsPerSecond = blendValue(base.Throughput.RequestsPerSecond, incoming.Throughput.RequestsPerSecond, n)
	base.Throughput.TotalRequests += (incoming.Throughput.TotalRequests - base.Throughput.TotalRequests) / int64(n)
	base.ErrorRate = blendValue(base.ErrorRate, incoming.ErrorRate, n)
	base.CPUUsage = blendValue(base.CPUUsage, incoming.CPUUsage, n)
	base.MemoryUsage = blendValue(base.MemoryUsage, incoming.MemoryUsage, n)
}

func blendValue(old, incoming float64, n int) float64 {
	return old + (incoming-old)/float64(n)
}

func (m *FileManager) saveLocked() {
	if m.dataDir == "" {
		return
	}
	out := make([]*Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return baselineKey(out[i].TestType, out[i].Descriptor) < baselineKey(out[j].TestType, out[j].Descriptor)
	})
	if err := storage.SaveJSONFile(m.filePath(), out); err != nil {
		log.Warn().Err(err).Msg("Failed to save baselines")
	}
}

// String renders a one-line summary for CLI listings.
func (r *Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: mean %.2fms p99 %.2fms %.2f req/s err %.2f%% (%d samples)",
		r.TestType, r.Descriptor,
		r.Metrics.ResponseTime.Mean, r.Metrics.ResponseTime.P99,
		r.Metrics.Throughput.RequestsPerSecond, r.Metrics.ErrorRate,
		r.SampleCount)
	return b.String()
}
