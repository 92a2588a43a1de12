package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

const maxRetryBackoff = 60 * time.Second

// calculateBackoff doubles the delay per retry attempt, starting at one
// second and capping at maxRetryBackoff.
func calculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 6 {
		return maxRetryBackoff
	}
	backoff := time.Second << uint(attempt)
	if backoff > maxRetryBackoff {
		backoff = maxRetryBackoff
	}
	return backoff
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryDelivery runs send up to retries+1 times with exponential
// backoff and records the outcome on the alert's delivery status.
func retryDelivery(ctx context.Context, channelName string, alert *alerting.EnhancedAlert, retries int, backoff func(int) time.Duration, send func(context.Context) error) error {
	if retries < 0 {
		retries = 0
	}
	if backoff == nil {
		backoff = calculateBackoff
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			alert.Delivery.RetryCount = attempt
			delay := backoff(attempt - 1)
			log.Debug().
				Str("channel", channelName).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying delivery after backoff")
			if err := sleepContext(ctx, delay); err != nil {
				alert.Delivery.Failed = true
				alert.Delivery.FailureReason = err.Error()
				return err
			}
		}

		if err := send(ctx); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("channel", channelName).
				Int("attempt", attempt).
				Msg("Delivery attempt failed")
			continue
		}

		alert.Delivery.Sent = true
		alert.Delivery.SentAt = time.Now()
		if attempt > 0 {
			log.Info().
				Str("channel", channelName).
				Int("attempt", attempt).
				Msg("Delivery succeeded after retry")
		}
		return nil
	}

	alert.Delivery.Failed = true
	if lastErr != nil {
		alert.Delivery.FailureReason = lastErr.Error()
	}
	if retries > 0 {
		return fmt.Errorf("delivery failed after %d attempts: %w", retries+1, lastErr)
	}
	return lastErr
}
