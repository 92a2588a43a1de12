package notifications

// WebhookTemplate describes a ready-made payload for a webhook service.
type WebhookTemplate struct {
	Service         string            `json:"service"`
	Name            string            `json:"name"`
	URLPattern      string            `json:"urlPattern"`
	Method          string            `json:"method"`
	Headers         map[string]string `json:"headers"`
	PayloadTemplate string            `json:"payloadTemplate"`
	Instructions    string            `json:"instructions"`
}

// TemplateForService returns the payload template for a known service,
// falling back to the generic JSON payload.
func TemplateForService(service string) string {
	for _, t := range WebhookTemplates() {
		if t.Service == service {
			return t.PayloadTemplate
		}
	}
	return genericPayloadTemplate
}

const genericPayloadTemplate = `{
	"alert": {
		"id": "{{.ID}}",
		"severity": "{{.Severity}}",
		"test_type": "{{.TestType}}",
		"test_name": "{{.TestName}}",
		"message": "{{.Message}}",
		"metric": "{{.Metric}}",
		"baseline": {{printf "%.4f" .Baseline}},
		"current": {{printf "%.4f" .Current}},
		"change_percent": {{printf "%.2f" .ChangePercent}},
		"aggregated_count": {{.AggregatedCount}},
		"escalation_level": {{.EscalationLevel}}
	},
	"timestamp": "{{.Timestamp}}",
	"source": "perfwatch"
}`

// WebhookTemplates returns payload templates for popular services.
func WebhookTemplates() []WebhookTemplate {
	return []WebhookTemplate{
		{
			Service:    "discord",
			Name:       "Discord Webhook",
			URLPattern: "https://discord.com/api/webhooks/{webhook_id}/{webhook_token}",
			Method:     "POST",
			Headers:    map[string]string{"Content-Type": "application/json"},
			PayloadTemplate: `{
				"username": "PerfWatch",
				"embeds": [{
					"title": "Performance Alert: {{.Severity | title}}",
					"description": "{{.Message}}",
					"color": {{if eq .Severity "critical"}}15158332{{else if eq .Severity "major"}}15105570{{else}}3447003{{end}},
					"fields": [
						{"name": "Test", "value": "{{.TestName}}", "inline": true},
						{"name": "Type", "value": "{{.TestType}}", "inline": true},
						{"name": "Metric", "value": "{{.Metric}}", "inline": true},
						{"name": "Baseline", "value": "{{printf "%.1f" .Baseline}}", "inline": true},
						{"name": "Current", "value": "{{printf "%.1f" .Current}}", "inline": true},
						{"name": "Change", "value": "{{printf "%+.1f" .ChangePercent}}%", "inline": true}
					],
					"timestamp": "{{.Timestamp}}",
					"footer": {
						"text": "PerfWatch"
					}
				}]
			}`,
			Instructions: "Create a webhook under Server Settings > Integrations and paste the URL here.",
		},
		{
			Service:    "slack",
			Name:       "Slack Incoming Webhook",
			URLPattern: "https://hooks.slack.com/services/{webhook_path}",
			Method:     "POST",
			Headers:    map[string]string{"Content-Type": "application/json"},
			PayloadTemplate: `{
				"text": "Performance Alert: {{.Severity | title}} - {{.TestName}}",
				"blocks": [
					{
						"type": "header",
						"text": {
							"type": "plain_text",
							"text": "Performance Alert: {{.Severity | title}}",
							"emoji": true
						}
					},
					{
						"type": "section",
						"text": {
							"type": "mrkdwn",
							"text": "{{.Message}}"
						}
					},
					{
						"type": "section",
						"fields": [
							{"type": "mrkdwn", "text": "*Test:*\n{{.TestName}}"},
							{"type": "mrkdwn", "text": "*Type:*\n{{.TestType}}"},
							{"type": "mrkdwn", "text": "*Metric:*\n{{.Metric}}"},
							{"type": "mrkdwn", "text": "*Change:*\n{{printf "%+.1f" .ChangePercent}}%"}
						]
					},
					{
						"type": "context",
						"elements": [
							{
								"type": "mrkdwn",
								"text": "Alert ID: {{.ID}}"
							}
						]
					}
				]
			}`,
			Instructions: "Add an Incoming Webhook in Slack, choose a channel, and paste the URL here.",
		},
		{
			Service:    "teams",
			Name:       "Microsoft Teams",
			URLPattern: "https://{tenant}.webhook.office.com/webhookb2/{webhook_path}",
			Method:     "POST",
			Headers:    map[string]string{"Content-Type": "application/json"},
			PayloadTemplate: `{
				"@type": "MessageCard",
				"@context": "http://schema.org/extensions",
				"themeColor": "{{if eq .Severity "critical"}}FF0000{{else if eq .Severity "major"}}FFA500{{else}}0076D7{{end}}",
				"summary": "Performance Alert: {{.Severity | title}} - {{.TestName}}",
				"sections": [{
					"activityTitle": "Performance Alert: {{.Severity | title}}",
					"activitySubtitle": "{{.Message}}",
					"facts": [
						{"name": "Test", "value": "{{.TestName}}"},
						{"name": "Type", "value": "{{.TestType}}"},
						{"name": "Metric", "value": "{{.Metric}}"},
						{"name": "Baseline", "value": "{{printf "%.1f" .Baseline}}"},
						{"name": "Current", "value": "{{printf "%.1f" .Current}}"},
						{"name": "Change", "value": "{{printf "%+.1f" .ChangePercent}}%"}
					],
					"markdown": true
				}]
			}`,
			Instructions: "Configure an Incoming Webhook connector on the Teams channel and paste the URL here.",
		},
		{
			Service:    "pagerduty",
			Name:       "PagerDuty Events API v2",
			URLPattern: "https://events.pagerduty.com/v2/enqueue",
			Method:     "POST",
			Headers: map[string]string{
				"Content-Type": "application/json",
				"Accept":       "application/vnd.pagerduty+json;version=2",
			},
			PayloadTemplate: `{
				"routing_key": "{{.CustomFields.routing_key}}",
				"event_action": "trigger",
				"dedup_key": "{{.ID}}",
				"payload": {
					"summary": "{{.Message}}",
					"timestamp": "{{.Timestamp}}",
					"severity": "{{if eq .Severity "critical"}}critical{{else if eq .Severity "major"}}error{{else if eq .Severity "moderate"}}warning{{else}}info{{end}}",
					"source": "perfwatch",
					"component": "{{.TestName}}",
					"group": "{{.TestType}}",
					"class": "{{.Metric}}",
					"custom_details": {
						"alert_id": "{{.ID}}",
						"baseline": "{{printf "%.2f" .Baseline}}",
						"current": "{{printf "%.2f" .Current}}",
						"change_percent": "{{printf "%+.1f" .ChangePercent}}%"
					}
				},
				"client": "PerfWatch"
			}`,
			Instructions: "Add an Events API V2 integration to the service and store the integration key as a custom field named routing_key.",
		},
		{
			Service:         "generic",
			Name:            "Generic JSON Webhook",
			URLPattern:      "",
			Method:          "POST",
			Headers:         map[string]string{"Content-Type": "application/json"},
			PayloadTemplate: genericPayloadTemplate,
			Instructions:    "Configure with your custom webhook endpoint.",
		},
	}
}
