// Package notifications implements the delivery channels behind the
// alerting engine: console, file, webhook, chat-ops, and email. Each
// channel satisfies alerting.Channel and reports per-delivery status
// through the alert's DeliveryStatus.
package notifications

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

const maxDeliveryHistory = 100

// WebhookDelivery records one outbound delivery attempt for debugging.
type WebhookDelivery struct {
	ChannelName   string    `json:"channelName"`
	URL           string    `json:"url"`
	Service       string    `json:"service,omitempty"`
	AlertID       string    `json:"alertId"`
	Timestamp     time.Time `json:"timestamp"`
	StatusCode    int       `json:"statusCode,omitempty"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	RetryAttempts int       `json:"retryAttempts"`
	PayloadSize   int       `json:"payloadSize"`
}

// DeliveryLog keeps the last deliveries across HTTP-backed channels.
type DeliveryLog struct {
	mu      sync.Mutex
	entries []WebhookDelivery
}

func NewDeliveryLog() *DeliveryLog {
	return &DeliveryLog{entries: make([]WebhookDelivery, 0, maxDeliveryHistory)}
}

// Record appends a delivery, dropping the oldest past the cap.
func (l *DeliveryLog) Record(d WebhookDelivery) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, d)
	if len(l.entries) > maxDeliveryHistory {
		l.entries = l.entries[1:]
	}
}

// Recent returns a copy of the recorded deliveries, oldest first.
func (l *DeliveryLog) Recent() []WebhookDelivery {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]WebhookDelivery, len(l.entries))
	copy(out, l.entries)
	return out
}

// PayloadData is the flat view of an alert available to payload
// templates and formatters.
type PayloadData struct {
	ID              string
	Severity        string
	TestType        string
	TestName        string
	Message         string
	Metric          string
	Baseline        float64
	Current         float64
	ChangePercent   float64
	Threshold       float64
	Timestamp       string
	TimeRangeStart  string
	TimeRangeEnd    string
	AggregatedCount int
	EscalationLevel int
	CustomFields    map[string]any
}

// buildPayloadData flattens an enhanced alert for template rendering.
// Channel custom fields overlay the engine's template data.
func buildPayloadData(alert *alerting.EnhancedAlert, custom map[string]any) PayloadData {
	data := PayloadData{
		ID:              alert.ID,
		Severity:        string(alert.Severity),
		TestType:        alert.TestType,
		TestName:        alert.TestName,
		Message:         alert.Message,
		Timestamp:       alert.Timestamp.Format(time.RFC3339),
		AggregatedCount: alert.AggregatedCount,
		EscalationLevel: alert.EscalationLevel,
	}
	if c := alert.Comparison; c != nil {
		data.Metric = c.Metric
		data.Baseline = c.Baseline
		data.Current = c.Current
		data.ChangePercent = c.ChangePercent
		data.Threshold = c.Threshold
	}
	if tr := alert.TimeRange; tr != nil {
		data.TimeRangeStart = tr.First.Format(time.RFC3339)
		data.TimeRangeEnd = tr.Last.Format(time.RFC3339)
	}

	fields := make(map[string]any, len(alert.TemplateData)+len(custom))
	for k, v := range alert.TemplateData {
		fields[k] = v
	}
	for k, v := range custom {
		fields[k] = v
	}
	if len(fields) > 0 {
		data.CustomFields = fields
	}
	return data
}

// titleFirst capitalizes the first letter only, ASCII-safe.
func titleFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// severityColor maps alert severities to the hex colors used in chat
// and email rendering.
func severityColor(s alerting.Severity) string {
	switch s {
	case alerting.SeverityCritical:
		return "#dc2626"
	case alerting.SeverityMajor:
		return "#ea580c"
	case alerting.SeverityModerate:
		return "#d97706"
	default:
		return "#2563eb"
	}
}

// formatAlertLine renders the single-line form used by the console and
// file channels.
func formatAlertLine(alert *alerting.EnhancedAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s/%s: %s",
		alert.Timestamp.Format(time.RFC3339),
		strings.ToUpper(string(alert.Severity)),
		alert.TestType, alert.TestName, alert.Message)
	if c := alert.Comparison; c != nil {
		fmt.Fprintf(&b, " (%s %.2f -> %.2f, %+.1f%%)", c.Metric, c.Baseline, c.Current, c.ChangePercent)
	}
	if alert.AggregatedCount > 1 {
		fmt.Fprintf(&b, " [aggregated x%d]", alert.AggregatedCount)
	}
	if alert.EscalationLevel > 0 {
		fmt.Fprintf(&b, " [escalation %d]", alert.EscalationLevel)
	}
	return b.String()
}

// formatAlertDuration renders a duration the way humans read it in
// notifications.
func formatAlertDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
