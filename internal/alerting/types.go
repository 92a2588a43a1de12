// Package alerting turns detected regressions and anomalies into
// rate-limited, aggregated, escalating notifications. Channel
// implementations live in internal/notifications; this package owns the
// pipeline and its state.
package alerting

import (
	"context"
	"time"
)

// Severity orders alerts from minor to critical.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Rank returns the sort weight of a severity, higher is worse. Unknown
// severities rank below minor.
func (s Severity) Rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ComparisonDetails carries the regression measurement behind an alert.
type ComparisonDetails struct {
	Metric        string  `json:"metric"`
	Baseline      float64 `json:"baseline"`
	Current       float64 `json:"current"`
	ChangePercent float64 `json:"changePercent"`
	Threshold     float64 `json:"threshold,omitempty"`
}

// AggregationRange marks the span covered by an aggregated alert.
type AggregationRange struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Alert is the pipeline input. Aggregated alerts carry the count and
// time range of the alerts they replaced.
type Alert struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	Severity   Severity           `json:"severity"`
	TestType   string             `json:"testType"`
	TestName   string             `json:"testName"`
	Message    string             `json:"message"`
	Comparison *ComparisonDetails `json:"comparisonDetails,omitempty"`
	// Channels restricts delivery to the named channels. Empty means
	// every configured channel.
	Channels []string `json:"channels,omitempty"`
	// Artifacts links supporting files, such as visual diff images.
	Artifacts map[string]string `json:"artifacts,omitempty"`

	Acknowledged   bool      `json:"acknowledged"`
	AcknowledgedBy string    `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledgedAt,omitempty"`
	AckNotes       string    `json:"ackNotes,omitempty"`

	AggregatedCount int               `json:"aggregatedCount,omitempty"`
	TimeRange       *AggregationRange `json:"timeRange,omitempty"`
}

// DeliveryStatus tracks one enhanced alert's delivery outcome.
type DeliveryStatus struct {
	Sent          bool      `json:"sent"`
	SentAt        time.Time `json:"sentAt,omitempty"`
	Failed        bool      `json:"failed"`
	FailureReason string    `json:"failureReason,omitempty"`
	RetryCount    int       `json:"retryCount"`
}

// EnhancedAlert is the per-channel delivery form of an alert.
type EnhancedAlert struct {
	Alert
	Channel         string         `json:"channel"`
	EscalationLevel int            `json:"escalationLevel"`
	TemplateData    map[string]any `json:"templateData,omitempty"`
	Delivery        DeliveryStatus `json:"deliveryStatus"`
}

// DeliveryResult reports one channel attempt.
type DeliveryResult struct {
	Channel     string    `json:"channel"`
	Sent        bool      `json:"sent"`
	Error       string    `json:"error,omitempty"`
	RetryCount  int       `json:"retryCount,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

// Channel delivers enhanced alerts. Implementations may mutate the
// alert's delivery status to record retries.
type Channel interface {
	Name() string
	Type() string
	Send(ctx context.Context, alert *EnhancedAlert) error
}

// ChannelConfig describes one configured delivery target.
type ChannelConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
	// SeverityFilter limits delivery to the listed severities. Empty
	// admits all of them.
	SeverityFilter []Severity `json:"severityFilter,omitempty"`
	// TestFilter is a wildcard pattern matched against test names.
	TestFilter string `json:"testFilter,omitempty"`
	// Options carries type-specific settings: file→path, webhook→url,
	// chatops→channel, email→recipients.
	Options map[string]string `json:"config,omitempty"`
}

// VisualRegressionResult is the outcome of a visual comparison run.
// Scores run 0-100, higher is closer to the baseline.
type VisualRegressionResult struct {
	TestName           string    `json:"testName"`
	Score              float64   `json:"score"`
	RegressionDetected bool      `json:"regressionDetected"`
	BaselineImage      string    `json:"baselineImage,omitempty"`
	CurrentImage       string    `json:"currentImage,omitempty"`
	DiffImage          string    `json:"diffImage,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// ChannelStats counts one channel's outcomes.
type ChannelStats struct {
	Sent   int64 `json:"sent"`
	Failed int64 `json:"failed"`
}

// Statistics summarizes pipeline activity, lifetime or over a
// trailing window.
type Statistics struct {
	// WindowHours is the trailing window the counts cover, zero for
	// lifetime.
	WindowHours       int                     `json:"windowHours,omitempty"`
	TotalReceived     int64                   `json:"totalReceived"`
	TotalDelivered    int64                   `json:"totalDelivered"`
	TotalRateLimited  int64                   `json:"totalRateLimited"`
	TotalAggregated   int64                   `json:"totalAggregated"`
	TotalEscalations  int64                   `json:"totalEscalations"`
	TotalAcknowledged int64                   `json:"totalAcknowledged"`
	DeliveryFailures  int64                   `json:"deliveryFailures"`
	ActiveAlerts      int                     `json:"activeAlerts"`
	PendingBuffered   int                     `json:"pendingBuffered"`
	BySeverity        map[Severity]int64      `json:"bySeverity"`
	ByChannel         map[string]ChannelStats `json:"byChannel"`

	DeliverySuccessRate  float64 `json:"deliverySuccessRate"`
	AvgDeliveryLatencyMs float64 `json:"avgDeliveryLatencyMs"`
	EscalationRate       float64 `json:"escalationRate"`
}

// SeverityForVisualScore maps a visual comparison score to an alert
// severity. Lower scores mean larger visual drift.
func SeverityForVisualScore(score float64) Severity {
	switch {
	case score <= 30:
		return SeverityCritical
	case score <= 50:
		return SeverityMajor
	case score <= 70:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}
