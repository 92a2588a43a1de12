package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
	"github.com/perfwatch/perfwatch/pkg/httputil"
)

const webhookUserAgent = "PerfWatch/1.0"

// WebhookOptions configures one webhook endpoint.
type WebhookOptions struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	// Service selects a payload template for a known provider when no
	// custom template is given: discord, slack, teams, pagerduty,
	// generic.
	Service         string         `json:"service,omitempty"`
	PayloadTemplate string         `json:"payloadTemplate,omitempty"`
	CustomFields    map[string]any `json:"customFields,omitempty"`
	// RetryCount is the number of retries after the first attempt.
	RetryCount         int           `json:"retryCount"`
	InsecureSkipVerify bool          `json:"insecureSkipVerify,omitempty"`
	Timeout            time.Duration `json:"-"`
}

// WebhookChannel posts templated JSON payloads to an HTTP endpoint,
// retrying with exponential backoff.
type WebhookChannel struct {
	name    string
	opts    WebhookOptions
	client  *http.Client
	history *DeliveryLog
	backoff func(int) time.Duration
}

func NewWebhookChannel(name string, opts WebhookOptions, history *DeliveryLog) *WebhookChannel {
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := httputil.NewClient(timeout)
	if opts.InsecureSkipVerify {
		client = httputil.NewInsecureClient(timeout)
	}
	return &WebhookChannel{
		name:    name,
		opts:    opts,
		client:  client,
		history: history,
		backoff: calculateBackoff,
	}
}

func (c *WebhookChannel) Name() string { return c.name }
func (c *WebhookChannel) Type() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, alert *alerting.EnhancedAlert) error {
	data := buildPayloadData(alert, c.opts.CustomFields)

	templateStr := c.opts.PayloadTemplate
	if templateStr == "" {
		templateStr = TemplateForService(c.opts.Service)
	}
	payload, err := renderPayload(templateStr, data)
	if err != nil {
		return fmt.Errorf("building webhook payload: %w", err)
	}

	var lastStatus int
	err = retryDelivery(ctx, c.name, alert, c.opts.RetryCount, c.backoff, func(ctx context.Context) error {
		status, sendErr := c.post(ctx, payload)
		lastStatus = status
		return sendErr
	})

	record := WebhookDelivery{
		ChannelName:   c.name,
		URL:           c.opts.URL,
		Service:       c.opts.Service,
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

func (c *WebhookChannel) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, c.opts.Method, c.opts.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	for key, value := range c.opts.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// renderPayload executes a payload template and verifies it produced
// valid JSON.
func renderPayload(templateStr string, data PayloadData) ([]byte, error) {
	funcMap := template.FuncMap{
		"title":  titleFirst,
		"upper":  strings.ToUpper,
		"lower":  strings.ToLower,
		"printf": fmt.Sprintf,
	}

	tmpl, err := template.New("webhook").Funcs(funcMap).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("template execution failed: %w", err)
	}

	var check any
	if err := json.Unmarshal(buf.Bytes(), &check); err != nil {
		log.Error().
			Err(err).
			Str("payload", buf.String()).
			Msg("Rendered webhook payload is invalid JSON")
		return nil, fmt.Errorf("template produced invalid JSON: %w", err)
	}
	return buf.Bytes(), nil
}
