package stats

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMinDataPoints   = 10
	DefaultTrendWindowDays = 30
)

// trendMetrics are the series fed into regression and prediction.
var trendMetrics = []string{
	MetricResponseTime,
	MetricThroughput,
	MetricErrorRate,
}

// Config tunes the analysis engine. Zero values fall back to defaults.
type Config struct {
	MinDataPoints   int         `json:"minDataPoints"`
	TrendWindowDays int         `json:"trendWindowDays"`
	Sensitivity     Sensitivity `json:"sensitivity"`
}

func (c *Config) applyDefaults() {
	if c.MinDataPoints <= 0 {
		c.MinDataPoints = DefaultMinDataPoints
	}
	if c.TrendWindowDays <= 0 {
		c.TrendWindowDays = DefaultTrendWindowDays
	}
	if c.Sensitivity == "" {
		c.Sensitivity = SensitivityMedium
	}
}

// Engine ingests metric samples and keeps derived trends, anomalies,
// predictions, and seasonal patterns, persisting a snapshot after every
// mutation. All methods are safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	cfg  Config
	repo Repository

	dataPoints  map[string][]MetricSample
	trends      []TrendAnalysis
	anomalies   []AnomalyDetection
	predictions map[string][]PerformancePrediction
	seasonal    []SeasonalPattern

	lastOverall TrendDirection

	onAnomaly     func(AnomalyDetection)
	onTrendChange func(previous, current TrendDirection, score float64)
}

// NewEngine builds an engine and restores any snapshot the repository
// holds. A nil repository keeps state in memory only.
func NewEngine(cfg Config, repo Repository) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:         cfg,
		repo:        repo,
		dataPoints:  make(map[string][]MetricSample),
		predictions: make(map[string][]PerformancePrediction),
		lastOverall: TrendStable,
	}
	if repo != nil {
		snap, err := repo.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load statistics history, starting empty")
		} else if snap != nil {
			e.restore(snap)
			log.Info().
				Int("tests", len(e.dataPoints)).
				Int("anomalies", len(e.anomalies)).
				Msg("Restored statistics history")
		}
	}
	return e
}

// SetAnomalyCallback registers the function invoked for each anomaly
// detected at ingest time.
func (e *Engine) SetAnomalyCallback(fn func(AnomalyDetection)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAnomaly = fn
}

// SetTrendChangeCallback registers the function invoked when the
// overall trend direction moves between analysis passes.
func (e *Engine) SetTrendChangeCallback(fn func(previous, current TrendDirection, score float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrendChange = fn
}

// AnalyzeMetrics appends one sample to its test series, prunes samples
// outside the trend window, and runs anomaly detection on the updated
// series once it reaches the minimum size. Anomalies stamped with the
// new sample's timestamp fire the anomaly callback. Persistence
// failures are logged and do not fail the call.
func (e *Engine) AnalyzeMetrics(sample MetricSample) {
	if sample.TestName == "" {
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	e.mu.Lock()
	series := append(e.dataPoints[sample.TestName], sample)
	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	cutoff := time.Now().AddDate(0, 0, -e.cfg.TrendWindowDays)
	series = pruneSamples(series, cutoff)
	e.dataPoints[sample.TestName] = series

	var emitted []AnomalyDetection
	if len(series) >= e.cfg.MinDataPoints {
		for _, metric := range anomalyMetrics {
			for _, a := range detectAnomalies(sample.TestName, metric, series, e.cfg.Sensitivity) {
				if a.Timestamp.Equal(sample.Timestamp) {
					e.anomalies = append(e.anomalies, a)
					emitted = append(emitted, a)
				}
			}
		}
	}
	e.anomalies = pruneAnomalies(e.anomalies, cutoff)
	cb := e.onAnomaly
	e.persistLocked()
	e.mu.Unlock()

	if cb != nil {
		for _, a := range emitted {
			cb(a)
		}
	}
}

// AnalyzeTrends recomputes trends, predictions, anomalies, and seasonal
// patterns for every test with enough samples in range, stores the
// results, and returns the in-range report. A zero range covers all
// history.
func (e *Engine) AnalyzeTrends(tr TimeRange) TrendReport {
	now := time.Now()

	e.mu.Lock()
	report := TrendReport{
		GeneratedAt: now,
		Performance: PerformanceOverview{
			Overall: TrendStable,
			Tests:   make(map[string]TestTrends),
		},
	}

	var allTrends []TrendAnalysis
	var allPatterns []SeasonalPattern
	var storedAnomalies []AnomalyDetection
	predictions := make(map[string][]PerformancePrediction)

	for _, testName := range sortedTestNames(e.dataPoints) {
		full := e.dataPoints[testName]

		// Stored anomalies are recomputed from the full series so the
		// accessor never serves stale window judgments.
		for _, metric := range anomalyMetrics {
			storedAnomalies = append(storedAnomalies, detectAnomalies(testName, metric, full, e.cfg.Sensitivity)...)
		}

		filtered := filterSamples(full, tr)
		if len(filtered) < e.cfg.MinDataPoints {
			continue
		}
		timespan := filtered[len(filtered)-1].Timestamp.Sub(filtered[0].Timestamp).Milliseconds()

		tt := TestTrends{TestName: testName, SampleCount: len(filtered)}
		for _, metric := range trendMetrics {
			values := make([]float64, len(filtered))
			for i, s := range filtered {
				values[i] = s.Value(metric)
			}
			trend := analyzeTrend(testName, metric, values, timespan, now)
			tt.Trends = append(tt.Trends, trend)
			allTrends = append(allTrends, trend)

			predictions[testName] = append(predictions[testName], predictMetric(testName, metric, values, now))

			if pattern, ok := detectSeasonalPattern(testName, metric, filtered, now); ok {
				allPatterns = append(allPatterns, pattern)
			}
		}
		report.Performance.Tests[testName] = tt

		for _, metric := range anomalyMetrics {
			report.Anomalies = append(report.Anomalies, detectAnomalies(testName, metric, filtered, e.cfg.Sensitivity)...)
		}
	}

	overall, score := overallDirection(allTrends)
	report.Performance.Overall = overall
	report.Performance.OverallScore = score
	report.Predictions = predictions

	e.trends = allTrends
	e.anomalies = storedAnomalies
	e.predictions = predictions
	e.seasonal = allPatterns

	previous := e.lastOverall
	e.lastOverall = overall
	trendCB := e.onTrendChange
	e.persistLocked()
	e.mu.Unlock()

	if trendCB != nil && previous != overall {
		trendCB(previous, overall, score)
	}
	return report
}

// GetPerformanceTrends is the coarse dashboard projection: split each
// series at its midpoint and compare half averages. A relative change
// above 5% moves the direction off stable. Deliberately less sensitive
// than the regression in AnalyzeTrends. Empty testName covers all
// tests; timespanMs limits how far back samples are considered.
func (e *Engine) GetPerformanceTrends(testName string, timespanMs int64) map[string][]TrendSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var since time.Time
	if timespanMs > 0 {
		since = time.Now().Add(-time.Duration(timespanMs) * time.Millisecond)
	}

	out := make(map[string][]TrendSnapshot)
	for _, name := range sortedTestNames(e.dataPoints) {
		if testName != "" && name != testName {
			continue
		}
		samples := filterSamples(e.dataPoints[name], TimeRange{Start: since})
		if len(samples) < 2 {
			continue
		}
		for _, metric := range trendMetrics {
			out[name] = append(out[name], twoHalfTrend(name, metric, samples))
		}
	}
	return out
}

// GetRecentAnomalies returns stored anomalies from the trailing number
// of hours, oldest first.
func (e *Engine) GetRecentAnomalies(hours int) []AnomalyDetection {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []AnomalyDetection
	for _, a := range e.anomalies {
		if !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// GetSeasonalPatterns returns stored seasonal patterns, optionally
// restricted to one test.
func (e *Engine) GetSeasonalPatterns(testName string) []SeasonalPattern {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []SeasonalPattern
	for _, p := range e.seasonal {
		if testName == "" || p.TestName == testName {
			out = append(out, p)
		}
	}
	return out
}

// ExportTrendData returns the stored derived results filtered to the
// given range. A zero range exports everything.
func (e *Engine) ExportTrendData(tr TimeRange) ExportData {
	e.mu.RLock()
	defer e.mu.RUnlock()

	data := ExportData{Predictions: make(map[string][]PerformancePrediction)}
	for _, t := range e.trends {
		if tr.Contains(t.AnalyzedAt) {
			data.Trends = append(data.Trends, t)
		}
	}
	for _, a := range e.anomalies {
		if tr.Contains(a.Timestamp) {
			data.Anomalies = append(data.Anomalies, a)
		}
	}
	for name, preds := range e.predictions {
		for _, p := range preds {
			if tr.Contains(p.GeneratedAt) {
				data.Predictions[name] = append(data.Predictions[name], p)
			}
		}
	}
	for _, p := range e.seasonal {
		if tr.Contains(p.AnalyzedAt) {
			data.SeasonalPatterns = append(data.SeasonalPatterns, p)
		}
	}
	return data
}

// ImportHistory replaces the engine state with the given snapshot and
// persists it. Used to restore exported history across restarts.
func (e *Engine) ImportHistory(snap *HistorySnapshot) error {
	if snap == nil {
		return fmt.Errorf("nil history snapshot")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restore(snap)
	e.persistLocked()
	return nil
}

// Snapshot returns a deep copy of the engine state.
func (e *Engine) Snapshot() *HistorySnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// SampleCount reports how many samples a test currently holds.
func (e *Engine) SampleCount(testName string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.dataPoints[testName])
}

// TestNames lists the tracked tests in sorted order.
func (e *Engine) TestNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sortedTestNames(e.dataPoints)
}

func (e *Engine) snapshotLocked() *HistorySnapshot {
	snap := &HistorySnapshot{
		DataPoints:       make(map[string][]MetricSample, len(e.dataPoints)),
		Trends:           append([]TrendAnalysis(nil), e.trends...),
		Anomalies:        append([]AnomalyDetection(nil), e.anomalies...),
		Predictions:      make(map[string][]PerformancePrediction, len(e.predictions)),
		SeasonalPatterns: append([]SeasonalPattern(nil), e.seasonal...),
		SavedAt:          time.Now(),
	}
	for name, samples := range e.dataPoints {
		snap.DataPoints[name] = append([]MetricSample(nil), samples...)
	}
	for name, preds := range e.predictions {
		snap.Predictions[name] = append([]PerformancePrediction(nil), preds...)
	}
	return snap
}

func (e *Engine) restore(snap *HistorySnapshot) {
	e.dataPoints = make(map[string][]MetricSample, len(snap.DataPoints))
	for name, samples := range snap.DataPoints {
		sorted := append([]MetricSample(nil), samples...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		})
		e.dataPoints[name] = sorted
	}
	e.trends = append([]TrendAnalysis(nil), snap.Trends...)
	e.anomalies = append([]AnomalyDetection(nil), snap.Anomalies...)
	e.predictions = make(map[string][]PerformancePrediction, len(snap.Predictions))
	for name, preds := range snap.Predictions {
		e.predictions[name] = append([]PerformancePrediction(nil), preds...)
	}
	e.seasonal = append([]SeasonalPattern(nil), snap.SeasonalPatterns...)
}

// persistLocked writes the current snapshot through the repository.
// Failures leave in-memory state authoritative and are only logged.
func (e *Engine) persistLocked() {
	if e.repo == nil {
		return
	}
	if err := e.repo.Save(e.snapshotLocked()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist statistics history")
	}
}

func pruneSamples(samples []MetricSample, cutoff time.Time) []MetricSample {
	idx := 0
	for idx < len(samples) && samples[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return samples
	}
	return append(samples[:0:0], samples[idx:]...)
}

func pruneAnomalies(anomalies []AnomalyDetection, cutoff time.Time) []AnomalyDetection {
	var out []AnomalyDetection
	for _, a := range anomalies {
		if !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

func filterSamples(samples []MetricSample, tr TimeRange) []MetricSample {
	if tr.Start.IsZero() && tr.End.IsZero() {
		return samples
	}
	var out []MetricSample
	for _, s := range samples {
		if tr.Contains(s.Timestamp) {
			out = append(out, s)
		}
	}
	return out
}

func sortedTestNames(m map[string][]MetricSample) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// twoHalfTrend compares the first and second half averages of a series.
// Whether a rise is an improvement depends on the metric.
func twoHalfTrend(testName, metric string, samples []MetricSample) TrendSnapshot {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value(metric)
	}
	mid := len(values) / 2
	firstAvg := mean(values[:mid])
	secondAvg := mean(values[mid:])

	change := 0.0
	if firstAvg != 0 {
		change = (secondAvg - firstAvg) / firstAvg * 100
	}

	direction := TrendStable
	if change > 5 || change < -5 {
		rising := change > 0
		if metric == MetricThroughput {
			if rising {
				direction = TrendImproving
			} else {
				direction = TrendDegrading
			}
		} else {
			if rising {
				direction = TrendDegrading
			} else {
				direction = TrendImproving
			}
		}
	}

	return TrendSnapshot{
		TestName:      testName,
		Metric:        metric,
		Direction:     direction,
		ChangePercent: change,
		FirstHalfAvg:  firstAvg,
		SecondHalfAvg: secondAvg,
		SampleCount:   len(samples),
	}
}
