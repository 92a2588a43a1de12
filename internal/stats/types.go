// Package stats maintains per-test metric history and derives trends,
// anomalies, predictions, and seasonal patterns from it.
package stats

import "time"

// Metric names used across trend analysis and anomaly detection.
const (
	MetricResponseTime = "responseTime"
	MetricThroughput   = "throughput"
	MetricErrorRate    = "errorRate"
	MetricCPUUsage     = "cpuUsage"
	MetricMemoryUsage  = "memoryUsage"
)

// Sensitivity selects the z-score threshold for anomaly detection.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Threshold returns the z-score above which a value is anomalous.
func (s Sensitivity) Threshold() float64 {
	switch s {
	case SensitivityLow:
		return 3.0
	case SensitivityHigh:
		return 2.0
	default:
		return 2.5
	}
}

// TrendDirection classifies the movement of a metric series.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendDegrading TrendDirection = "degrading"
	TrendStable    TrendDirection = "stable"
)

// AnomalySeverity grades how far an anomalous value sits beyond the threshold.
type AnomalySeverity string

const (
	AnomalyLow    AnomalySeverity = "low"
	AnomalyMedium AnomalySeverity = "medium"
	AnomalyHigh   AnomalySeverity = "high"
)

// ResponseTimeStats carries the latency profile of one test run.
type ResponseTimeStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// ThroughputStats carries the request volume of one test run.
type ThroughputStats struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
	TotalRequests     int64   `json:"totalRequests"`
}

// PerformanceMetrics is the measured payload of a single sample.
type PerformanceMetrics struct {
	ResponseTime ResponseTimeStats `json:"responseTime"`
	Throughput   ThroughputStats   `json:"throughput"`
	ErrorRate    float64           `json:"errorRate"`
	CPUUsage     float64           `json:"cpuUsage,omitempty"`
	MemoryUsage  float64           `json:"memoryUsage,omitempty"`
}

// MetricSample is one observation of a test, appended to its history.
type MetricSample struct {
	TestName  string             `json:"testName"`
	TestType  string             `json:"testType,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Metrics   PerformanceMetrics `json:"metrics"`
	Tags      map[string]string  `json:"tags,omitempty"`
}

// Value extracts the named metric from the sample. Response time uses the
// mean, throughput uses requests per second.
func (s MetricSample) Value(metric string) float64 {
	switch metric {
	case MetricResponseTime:
		return s.Metrics.ResponseTime.Mean
	case MetricThroughput:
		return s.Metrics.Throughput.RequestsPerSecond
	case MetricErrorRate:
		return s.Metrics.ErrorRate
	case MetricCPUUsage:
		return s.Metrics.CPUUsage
	case MetricMemoryUsage:
		return s.Metrics.MemoryUsage
	default:
		return 0
	}
}

// TrendAnalysis is the regression verdict for one test+metric series.
type TrendAnalysis struct {
	TestName    string         `json:"testName"`
	Metric      string         `json:"metric"`
	Direction   TrendDirection `json:"direction"`
	Slope       float64        `json:"slope"`
	RSquared    float64        `json:"rSquared"`
	Strength    float64        `json:"strength"`
	Confidence  float64        `json:"confidence"`
	SampleCount int            `json:"sampleCount"`
	TimespanMs  int64          `json:"timespanMs"`
	AnalyzedAt  time.Time      `json:"analyzedAt"`
}

// WindowContext describes the sliding window an anomaly was judged against.
type WindowContext struct {
	Size   int     `json:"size"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// AnomalyDetection records a value flagged by the sliding z-score check.
type AnomalyDetection struct {
	TestName   string          `json:"testName"`
	Metric     string          `json:"metric"`
	Timestamp  time.Time       `json:"timestamp"`
	Value      float64         `json:"value"`
	Expected   float64         `json:"expectedValue"`
	Deviation  float64         `json:"deviationInStdDevs"`
	Severity   AnomalySeverity `json:"severity"`
	Confidence float64         `json:"confidence"`
	Window     WindowContext   `json:"windowContext"`
}

// ConfidenceInterval bounds a prediction at the 95% level.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PerformancePrediction extrapolates a metric series 24 hours ahead.
type PerformancePrediction struct {
	TestName        string             `json:"testName"`
	Metric          string             `json:"metric"`
	PredictedValue  float64            `json:"predictedValue"`
	Interval        ConfidenceInterval `json:"confidenceInterval"`
	Confidence      float64            `json:"confidenceLevel"`
	Model           string             `json:"model"`
	TargetTimestamp time.Time          `json:"targetTimestamp"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// SeasonalPattern captures recurring hourly or weekday peaks in a series.
type SeasonalPattern struct {
	TestName    string    `json:"testName"`
	Metric      string    `json:"metric"`
	HasDaily    bool      `json:"hasDaily"`
	HasWeekly   bool      `json:"hasWeekly"`
	PeakHours   []int     `json:"peakHours,omitempty"`
	PeakDays    []string  `json:"peakDays,omitempty"`
	SampleCount int       `json:"sampleCount"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// SummaryStats is the descriptive profile of a metric series.
type SummaryStats struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"stdDev"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// TimeRange bounds a query. Zero fields leave that side open.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// TestTrends groups the per-metric regression trends of one test.
type TestTrends struct {
	TestName    string          `json:"testName"`
	Trends      []TrendAnalysis `json:"trends"`
	SampleCount int             `json:"sampleCount"`
}

// PerformanceOverview is the per-test trend map plus the weighted
// overall direction across every computed trend.
type PerformanceOverview struct {
	Overall      TrendDirection        `json:"overall"`
	OverallScore float64               `json:"overallScore"`
	Tests        map[string]TestTrends `json:"tests"`
}

// TrendReport is the result of one full analysis pass.
type TrendReport struct {
	GeneratedAt time.Time                          `json:"generatedAt"`
	Performance PerformanceOverview                `json:"performance"`
	Predictions map[string][]PerformancePrediction `json:"predictions"`
	Anomalies   []AnomalyDetection                 `json:"anomalies"`
}

// TrendSnapshot is the coarse two-half comparison for one test+metric,
// independent of the regression-based TrendAnalysis.
type TrendSnapshot struct {
	TestName      string         `json:"testName"`
	Metric        string         `json:"metric"`
	Direction     TrendDirection `json:"direction"`
	ChangePercent float64        `json:"changePercent"`
	FirstHalfAvg  float64        `json:"firstHalfAvg"`
	SecondHalfAvg float64        `json:"secondHalfAvg"`
	SampleCount   int            `json:"sampleCount"`
}

// ExportData is the derived-results bundle returned by ExportTrendData.
type ExportData struct {
	Trends           []TrendAnalysis                    `json:"trends"`
	Anomalies        []AnomalyDetection                 `json:"anomalies"`
	Predictions      map[string][]PerformancePrediction `json:"predictions"`
	SeasonalPatterns []SeasonalPattern                  `json:"seasonalPatterns"`
}

// HistorySnapshot is the full persisted state of the engine.
type HistorySnapshot struct {
	DataPoints       map[string][]MetricSample          `json:"dataPoints"`
	Trends           []TrendAnalysis                    `json:"trends"`
	Anomalies        []AnomalyDetection                 `json:"anomalies"`
	Predictions      map[string][]PerformancePrediction `json:"predictions"`
	SeasonalPatterns []SeasonalPattern                  `json:"seasonalPatterns"`
	SavedAt          time.Time                          `json:"savedAt"`
}

// Repository persists engine state. Implementations live in
// internal/storage; the engine saves a snapshot after every mutation
// and loads one at startup.
type Repository interface {
	Save(snap *HistorySnapshot) error
	Load() (*HistorySnapshot, error)
}
