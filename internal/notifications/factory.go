package notifications

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

// BuildChannel constructs the concrete sender for a channel
// configuration. Options keys prefixed "header." become HTTP headers,
// "field." become template custom fields.
func BuildChannel(cfg alerting.ChannelConfig, history *DeliveryLog) (alerting.Channel, error) {
	opts := cfg.Options
	switch cfg.Type {
	case "console":
		return NewConsoleChannel(cfg.Name), nil

	case "file":
		return NewFileChannel(cfg.Name, opts["path"])

	case "webhook":
		if opts["url"] == "" {
			return nil, fmt.Errorf("webhook channel %q requires a url", cfg.Name)
		}
		return NewWebhookChannel(cfg.Name, WebhookOptions{
			URL:                opts["url"],
			Method:             opts["method"],
			Service:            opts["service"],
			PayloadTemplate:    opts["template"],
			Headers:            prefixedValues(opts, "header."),
			CustomFields:       anyValues(prefixedValues(opts, "field.")),
			RetryCount:         parseInt(opts["retryCount"]),
			InsecureSkipVerify: parseBool(opts["insecureSkipVerify"]),
		}, history), nil

	case "chatops", "slack":
		if opts["url"] == "" {
			return nil, fmt.Errorf("chatops channel %q requires a url", cfg.Name)
		}
		return NewChatOpsChannel(cfg.Name, ChatOpsOptions{
			URL:        opts["url"],
			Username:   opts["username"],
			Mention:    opts["mention"],
			RetryCount: parseInt(opts["retryCount"]),
		}, history), nil

	case "email":
		return NewEmailChannel(cfg.Name, EmailOptions{
			Host:       opts["server"],
			Port:       parseInt(opts["port"]),
			Username:   opts["username"],
			Password:   opts["password"],
			From:       opts["from"],
			To:         splitList(opts["to"]),
			TLS:        parseBool(opts["tls"]),
			StartTLS:   parseBool(opts["startTLS"]),
			RateLimit:  parseInt(opts["rateLimit"]),
			RetryCount: parseInt(opts["retryCount"]),
		})

	default:
		return nil, fmt.Errorf("unknown channel type %q for %q", cfg.Type, cfg.Name)
	}
}

// BuildChannels constructs every configured channel, skipping broken
// configurations with a warning. The returned slices are parallel,
// ready for Engine.ReplaceChannels.
func BuildChannels(configs []alerting.ChannelConfig, history *DeliveryLog) ([]alerting.ChannelConfig, []alerting.Channel) {
	kept := make([]alerting.ChannelConfig, 0, len(configs))
	senders := make([]alerting.Channel, 0, len(configs))
	for _, cfg := range configs {
		sender, err := BuildChannel(cfg, history)
		if err != nil {
			log.Warn().
				Err(err).
				Str("channel", cfg.Name).
				Str("type", cfg.Type).
				Msg("Skipping misconfigured channel")
			continue
		}
		kept = append(kept, cfg)
		senders = append(senders, sender)
	}
	return kept, senders
}

func prefixedValues(opts map[string]string, prefix string) map[string]string {
	var out map[string]string
	for key, value := range opts {
		if strings.HasPrefix(key, prefix) {
			if out == nil {
				out = make(map[string]string)
			}
			out[strings.TrimPrefix(key, prefix)] = value
		}
	}
	return out
}

func anyValues(in map[string]string) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return b
}
