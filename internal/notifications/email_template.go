package notifications

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

// titleCase capitalizes the first letter of each word, ASCII-safe.
func titleCase(s string) string {
	var result strings.Builder
	capitalizeNext := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			capitalizeNext = true
			result.WriteRune(r)
		} else if capitalizeNext {
			result.WriteRune(unicode.ToUpper(r))
			capitalizeNext = false
		} else {
			result.WriteRune(unicode.ToLower(r))
		}
	}
	return result.String()
}

func severityBackground(s alerting.Severity) string {
	switch s {
	case alerting.SeverityCritical:
		return "#fee2e2"
	case alerting.SeverityMajor:
		return "#ffedd5"
	case alerting.SeverityModerate:
		return "#fffbeb"
	default:
		return "#eff6ff"
	}
}

// emailContent renders the subject, HTML body, and plain-text fallback
// for one alert.
func emailContent(alert *alerting.EnhancedAlert) (subject, htmlBody, textBody string) {
	color := severityColor(alert.Severity)
	background := severityBackground(alert.Severity)

	subject = fmt.Sprintf("[PerfWatch] %s: %s regression in %s",
		titleCase(string(alert.Severity)), titleCase(alert.TestType), alert.TestName)
	if alert.AggregatedCount > 1 {
		subject = fmt.Sprintf("[PerfWatch] %s: %d alerts for %s",
			titleCase(string(alert.Severity)), alert.AggregatedCount, alert.TestName)
	}
	if alert.EscalationLevel > 0 {
		subject = fmt.Sprintf("[ESCALATION %d] %s", alert.EscalationLevel, subject)
	}

	baseline, current, change := "n/a", "n/a", "n/a"
	metric := "n/a"
	if c := alert.Comparison; c != nil {
		metric = c.Metric
		baseline = fmt.Sprintf("%.2f", c.Baseline)
		current = fmt.Sprintf("%.2f", c.Current)
		change = fmt.Sprintf("%+.1f%%", c.ChangePercent)
	}

	age := formatAlertDuration(time.Since(alert.Timestamp))

	escapedSeverity := html.EscapeString(string(alert.Severity))
	escapedTestName := html.EscapeString(alert.TestName)
	escapedTestType := html.EscapeString(alert.TestType)
	escapedMessage := html.EscapeString(alert.Message)
	escapedMetric := html.EscapeString(metric)
	escapedID := html.EscapeString(alert.ID)
	escapedStarted := html.EscapeString(alert.Timestamp.Format("Jan 2, 2006 at 3:04 PM"))

	htmlBody = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; background: #f5f5f5; margin: 0; padding: 0; }
        .container { max-width: 600px; margin: 20px auto; background: #fff; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .header { background: #1a1a1a; color: #fff; padding: 20px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; font-weight: 500; }
        .content { padding: 30px; }
        .alert-box { background: %s; border-left: 4px solid %s; padding: 20px; margin: 20px 0; border-radius: 4px; }
        .alert-severity { color: %s; font-weight: bold; text-transform: uppercase; font-size: 14px; }
        .alert-test { font-size: 18px; font-weight: 500; margin: 10px 0; color: #1a1a1a; }
        .metrics { display: grid; grid-template-columns: 1fr 1fr; gap: 20px; margin: 20px 0; }
        .metric { background: #f8f9fa; padding: 15px; border-radius: 4px; }
        .metric-label { color: #666; font-size: 12px; text-transform: uppercase; letter-spacing: 0.5px; }
        .metric-value { font-size: 24px; font-weight: 500; color: #1a1a1a; margin-top: 5px; }
        .details { background: #f8f9fa; padding: 20px; border-radius: 4px; margin: 20px 0; }
        .detail-row { display: flex; justify-content: space-between; align-items: center; margin: 10px 0; padding-bottom: 10px; border-bottom: 1px solid #e9ecef; gap: 20px; }
        .detail-row:last-child { border-bottom: none; padding-bottom: 0; }
        .detail-label { color: #666; min-width: 120px; }
        .detail-value { font-weight: 500; color: #1a1a1a; text-align: right; flex: 1; }
        .footer { background: #f8f9fa; padding: 20px; text-align: center; color: #666; font-size: 12px; }
        @media (max-width: 600px) {
            .metrics { grid-template-columns: 1fr; }
            .container { margin: 0; border-radius: 0; }
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>PerfWatch Alert</h1>
        </div>
        <div class="content">
            <div class="alert-box">
                <div class="alert-severity">%s Alert</div>
                <div class="alert-test">%s</div>
                <div>%s</div>
            </div>

            <div class="metrics">
                <div class="metric">
                    <div class="metric-label">Baseline</div>
                    <div class="metric-value">%s</div>
                </div>
                <div class="metric">
                    <div class="metric-label">Current</div>
                    <div class="metric-value">%s</div>
                </div>
            </div>

            <div class="details">
                <div class="detail-row">
                    <span class="detail-label">Test Type</span>
                    <span class="detail-value">%s</span>
                </div>
                <div class="detail-row">
                    <span class="detail-label">Metric</span>
                    <span class="detail-value">%s</span>
                </div>
                <div class="detail-row">
                    <span class="detail-label">Change</span>
                    <span class="detail-value">%s</span>
                </div>
                <div class="detail-row">
                    <span class="detail-label">Alert ID</span>
                    <span class="detail-value">%s</span>
                </div>
                <div class="detail-row">
                    <span class="detail-label">Raised</span>
                    <span class="detail-value">%s</span>
                </div>
                <div class="detail-row">
                    <span class="detail-label">Age</span>
                    <span class="detail-value">%s</span>
                </div>
            </div>
        </div>
        <div class="footer">
            <p>This is an automated notification from PerfWatch</p>
        </div>
    </div>
</body>
</html>`,
		background, color, color,
		escapedSeverity,
		escapedTestName,
		escapedMessage,
		html.EscapeString(baseline),
		html.EscapeString(current),
		escapedTestType,
		escapedMetric,
		html.EscapeString(change),
		escapedID,
		escapedStarted,
		html.EscapeString(age),
	)

	textBody = fmt.Sprintf(`PERFWATCH ALERT

%s ALERT: %s

%s

Test Type: %s
Metric: %s
Baseline: %s
Current: %s
Change: %s
Alert ID: %s
Raised: %s

This is an automated notification from PerfWatch.`,
		strings.ToUpper(string(alert.Severity)), alert.TestName,
		alert.Message,
		alert.TestType,
		metric,
		baseline,
		current,
		change,
		alert.ID,
		alert.Timestamp.Format(time.RFC3339),
	)

	return subject, htmlBody, textBody
}
