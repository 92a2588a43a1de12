package notifications

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

func TestConsoleChannelWritesLine(t *testing.T) {
	var buf bytes.Buffer
	ch := &ConsoleChannel{name: "console", out: &buf}

	alert := testEnhancedAlert()
	if err := ch.Send(context.Background(), alert); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Error("expected a trailing newline")
	}
	for _, want := range []string{"[MAJOR]", "load/api-load", "p99 response time above baseline", "responseTime 120.00 -> 180.00", "+50.0%"} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing %q: %s", want, line)
		}
	}
}

func TestFileChannelAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "alerts.log")
	ch, err := NewFileChannel("file", path)
	if err != nil {
		t.Fatalf("NewFileChannel failed: %v", err)
	}

	first := testEnhancedAlert()
	second := testEnhancedAlert()
	second.TestName = "checkout-load"
	if err := ch.Send(context.Background(), first); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}
	if err := ch.Send(context.Background(), second); err != nil {
		t.Fatalf("second Send failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading alert log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "api-load") || !strings.Contains(lines[1], "checkout-load") {
		t.Errorf("lines out of order or incomplete: %q", lines)
	}
}

func TestFileChannelRequiresPath(t *testing.T) {
	if _, err := NewFileChannel("file", ""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestFormatAlertLine(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	alert := &alerting.EnhancedAlert{
		Alert: alerting.Alert{
			Timestamp: ts,
			Severity:  alerting.SeverityCritical,
			TestType:  "stress",
			TestName:  "db-writes",
			Message:   "error rate spike",
		},
	}
	line := formatAlertLine(alert)
	want := "2025-06-01T12:30:00Z [CRITICAL] stress/db-writes: error rate spike"
	if line != want {
		t.Errorf("got %q, want %q", line, want)
	}

	alert.AggregatedCount = 5
	alert.EscalationLevel = 2
	line = formatAlertLine(alert)
	if !strings.Contains(line, "[aggregated x5]") || !strings.Contains(line, "[escalation 2]") {
		t.Errorf("aggregation or escalation markers missing: %q", line)
	}
}

func TestFormatAlertDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3*time.Hour + 20*time.Minute, "3h 20m"},
		{26 * time.Hour, "1d 2h"},
	}
	for _, tc := range tests {
		if got := formatAlertDuration(tc.d); got != tc.want {
			t.Errorf("formatAlertDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestTitleFirst(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"major", "Major"},
		{"CRITICAL", "Critical"},
		{"", ""},
		{"x", "X"},
	}
	for _, tc := range tests {
		if got := titleFirst(tc.in); got != tc.want {
			t.Errorf("titleFirst(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildPayloadData(t *testing.T) {
	alert := testEnhancedAlert()
	alert.TimeRange = &alerting.AggregationRange{
		First: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Last:  time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	}
	alert.TemplateData = map[string]any{"team": "storage", "region": "eu"}

	data := buildPayloadData(alert, map[string]any{"team": "platform"})
	if data.Metric != "responseTime" || data.Baseline != 120 || data.Current != 180 {
		t.Errorf("comparison not flattened: %+v", data)
	}
	if data.TimeRangeStart != "2025-06-01T10:00:00Z" || data.TimeRangeEnd != "2025-06-01T11:00:00Z" {
		t.Errorf("time range not flattened: %+v", data)
	}
	if data.CustomFields["team"] != "platform" {
		t.Error("channel custom fields should overlay template data")
	}
	if data.CustomFields["region"] != "eu" {
		t.Error("template data should survive when not overridden")
	}
}

func TestBuildPayloadDataWithoutComparison(t *testing.T) {
	alert := &alerting.EnhancedAlert{
		Alert: alerting.Alert{
			ID:        "a1",
			Timestamp: time.Now(),
			Severity:  alerting.SeverityMinor,
			TestType:  "soak",
			TestName:  "slow-burn",
			Message:   "drift",
		},
	}
	data := buildPayloadData(alert, nil)
	if data.Metric != "" || data.Baseline != 0 {
		t.Errorf("expected zero comparison values: %+v", data)
	}
	if data.CustomFields != nil {
		t.Errorf("expected nil custom fields, got %v", data.CustomFields)
	}
}
