package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

const smtpDialTimeout = 10 * time.Second

// EmailOptions configures the SMTP channel.
type EmailOptions struct {
	Host     string   `json:"server"`
	Port     int      `json:"port"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	TLS      bool     `json:"tls"`
	StartTLS bool     `json:"startTLS"`
	// RateLimit caps sends per minute; zero disables the cap.
	RateLimit  int `json:"rateLimit"`
	RetryCount int `json:"retryCount"`
}

type emailRateLimiter struct {
	mu       sync.Mutex
	rate     int
	sent     int
	lastSent time.Time
}

func (r *emailRateLimiter) check() error {
	if r.rate <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if now.Sub(r.lastSent) > time.Minute {
		r.sent = 0
	}
	if r.sent >= r.rate {
		return fmt.Errorf("email rate limit exceeded (%d per minute)", r.rate)
	}
	r.sent++
	r.lastSent = now
	return nil
}

// EmailChannel delivers alerts over SMTP as multipart HTML mail.
type EmailChannel struct {
	name      string
	opts      EmailOptions
	rateLimit *emailRateLimiter
	backoff   func(int) time.Duration
}

func NewEmailChannel(name string, opts EmailOptions) (*EmailChannel, error) {
	if opts.Host == "" || opts.From == "" || len(opts.To) == 0 {
		return nil, fmt.Errorf("email channel %q requires server, from, and recipients", name)
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}
	return &EmailChannel{
		name:      name,
		opts:      opts,
		rateLimit: &emailRateLimiter{rate: opts.RateLimit},
		backoff:   calculateBackoff,
	}, nil
}

func (c *EmailChannel) Name() string { return c.name }
func (c *EmailChannel) Type() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, alert *alerting.EnhancedAlert) error {
	if err := c.rateLimit.check(); err != nil {
		alert.Delivery.Failed = true
		alert.Delivery.FailureReason = err.Error()
		return err
	}

	subject, htmlBody, textBody := emailContent(alert)
	msg, err := buildMIMEMessage(c.opts.From, c.opts.To, subject, htmlBody, textBody)
	if err != nil {
		return fmt.Errorf("building email message: %w", err)
	}

	return retryDelivery(ctx, c.name, alert, c.opts.RetryCount, c.backoff, func(context.Context) error {
		return c.send(msg)
	})
}

func (c *EmailChannel) send(msg []byte) error {
	addr := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))

	var client *smtp.Client
	if c.opts.TLS {
		conn, err := tls.DialWithDialer(&net.Dialer{Timeout: smtpDialTimeout}, "tcp", addr, &tls.Config{ServerName: c.opts.Host})
		if err != nil {
			return fmt.Errorf("TLS dial failed: %w", err)
		}
		client, err = smtp.NewClient(conn, c.opts.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("SMTP handshake failed: %w", err)
		}
	} else {
		conn, err := net.DialTimeout("tcp", addr, smtpDialTimeout)
		if err != nil {
			return fmt.Errorf("dial failed: %w", err)
		}
		client, err = smtp.NewClient(conn, c.opts.Host)
		if err != nil {
			conn.Close()
			return fmt.Errorf("SMTP handshake failed: %w", err)
		}
		if c.opts.StartTLS {
			if ok, _ := client.Extension("STARTTLS"); ok {
				if err := client.StartTLS(&tls.Config{ServerName: c.opts.Host}); err != nil {
					client.Close()
					return fmt.Errorf("STARTTLS failed: %w", err)
				}
			}
		}
	}
	defer client.Close()

	if c.opts.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", c.opts.Username, c.opts.Password, c.opts.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("SMTP auth failed: %w", err)
			}
		}
	}

	if err := client.Mail(c.opts.From); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range c.opts.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("writing message failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing message failed: %w", err)
	}
	return client.Quit()
}

// buildMIMEMessage assembles a multipart/alternative message with plain
// text and HTML parts.
func buildMIMEMessage(from string, to []string, subject, htmlBody, textBody string) ([]byte, error) {
	var b strings.Builder
	body := &strings.Builder{}
	writer := multipart.NewWriter(body)

	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", writer.Boundary())
	b.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(textBody)); err != nil {
		return nil, err
	}

	htmlHeader := textproto.MIMEHeader{}
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err = writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write([]byte(htmlBody)); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	b.WriteString(body.String())
	return []byte(b.String()), nil
}
