package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/pkg/httputil"
)

// ChatOpsOptions configures a Slack-compatible chat channel.
type ChatOpsOptions struct {
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
	// Mention is prepended to the message text, e.g. "@here" or a
	// user group.
	Mention    string        `json:"mention,omitempty"`
	RetryCount int           `json:"retryCount"`
	Timeout    time.Duration `json:"-"`
}

// ChatOpsChannel posts severity-colored attachments to Slack-style
// incoming webhooks.
type ChatOpsChannel struct {
	name    string
	opts    ChatOpsOptions
	client  *http.Client
	history *DeliveryLog
	backoff func(int) time.Duration
}

func NewChatOpsChannel(name string, opts ChatOpsOptions, history *DeliveryLog) *ChatOpsChannel {
	if opts.Username == "" {
		opts.Username = "PerfWatch"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatOpsChannel{
		name:    name,
		opts:    opts,
		client:  httputil.NewClient(timeout),
		history: history,
		backoff: calculateBackoff,
	}
}

func (c *ChatOpsChannel) Name() string { return c.name }
func (c *ChatOpsChannel) Type() string { return "chatops" }

type chatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type chatAttachment struct {
	Color     string      `json:"color"`
	Title     string      `json:"title"`
	Text      string      `json:"text"`
	Fields    []chatField `json:"fields,omitempty"`
	Footer    string      `json:"footer"`
	Timestamp int64       `json:"ts"`
}

type chatMessage struct {
	Username    string           `json:"username,omitempty"`
	Text        string           `json:"text,omitempty"`
	Attachments []chatAttachment `json:"attachments"`
}

func (c *ChatOpsChannel) Send(ctx context.Context, alert *alerting.EnhancedAlert) error {
	payload, err := json.Marshal(c.buildMessage(alert))
	if err != nil {
		return fmt.Errorf("building chat payload: %w", err)
	}

	var lastStatus int
	err = retryDelivery(ctx, c.name, alert, c.opts.RetryCount, c.backoff, func(ctx context.Context) error {
		status, sendErr := postJSON(ctx, c.client, c.opts.URL, payload)
		lastStatus = status
		return sendErr
	})

	record := WebhookDelivery{
		ChannelName:   c.name,
		URL:           c.opts.URL,
		Service:       "chatops",
		AlertID:       alert.ID,
		Timestamp:     time.Now(),
		StatusCode:    lastStatus,
		Success:       err == nil,
		RetryAttempts: alert.Delivery.RetryCount,
		PayloadSize:   len(payload),
	}
	if err != nil {
		record.ErrorMessage = err.Error()
	}
	c.history.Record(record)
	return err
}

func (c *ChatOpsChannel) buildMessage(alert *alerting.EnhancedAlert) chatMessage {
	title := fmt.Sprintf("%s: %s", titleFirst(string(alert.Severity)), alert.TestName)
	if alert.EscalationLevel > 0 {
		title = fmt.Sprintf("%s (escalation %d)", title, alert.EscalationLevel)
	}

	fields := []chatField{
		{Title: "Test", Value: alert.TestName, Short: true},
		{Title: "Type", Value: alert.TestType, Short: true},
	}
	if cmp := alert.Comparison; cmp != nil {
		fields = append(fields,
			chatField{Title: "Metric", Value: cmp.Metric, Short: true},
			chatField{Title: "Baseline", Value: fmt.Sprintf("%.1f", cmp.Baseline), Short: true},
			chatField{Title: "Current", Value: fmt.Sprintf("%.1f", cmp.Current), Short: true},
			chatField{Title: "Change", Value: fmt.Sprintf("%+.1f%%", cmp.ChangePercent), Short: true},
		)
	}
	if alert.AggregatedCount > 1 {
		fields = append(fields, chatField{Title: "Aggregated", Value: fmt.Sprintf("%d alerts", alert.AggregatedCount), Short: true})
	}

	text := alert.Message
	if c.opts.Mention != "" {
		text = c.opts.Mention + " " + text
	}

	return chatMessage{
		Username: c.opts.Username,
		Text:     text,
		Attachments: []chatAttachment{{
			Color:     severityColor(alert.Severity),
			Title:     title,
			Text:      alert.Message,
			Fields:    fields,
			Footer:    "PerfWatch",
			Timestamp: alert.Timestamp.Unix(),
		}},
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("chat endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
