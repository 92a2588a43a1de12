package alerting

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	wildcard "github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/perfwatch/perfwatch/internal/storage"
)

const (
	activeAlertsFile = "active-alerts.json"

	bufferSweepInterval = 30 * time.Second
	cleanupInterval     = 10 * time.Minute
	ackRetention        = 24 * time.Hour
	deliveryTimeout     = 30 * time.Second
)

// RateLimitConfig caps deliveries per (alert type, severity) key over a
// sliding day.
type RateLimitConfig struct {
	Enabled    bool `json:"enabled"`
	MaxPerHour int  `json:"maxPerHour"`
	MaxPerDay  int  `json:"maxPerDay"`
}

// AggregationConfig folds same-key alerts arriving within the window
// into one combined alert.
type AggregationConfig struct {
	Enabled  bool          `json:"enabled"`
	Window   time.Duration `json:"window"`
	MaxCount int           `json:"maxCount"`
}

// EscalationConfig re-delivers unacknowledged alerts on a timer.
// Channels, when set, receive escalations instead of the alert's
// original targets.
type EscalationConfig struct {
	Enabled        bool          `json:"enabled"`
	TimeToEscalate time.Duration `json:"timeToEscalate"`
	MaxEscalations int           `json:"maxEscalations"`
	Channels       []string      `json:"channels,omitempty"`
}

// Config tunes the alerting pipeline.
type Config struct {
	RateLimit   RateLimitConfig   `json:"rateLimit"`
	Aggregation AggregationConfig `json:"aggregation"`
	Escalation  EscalationConfig  `json:"escalation"`
	// DataDir enables active-alert and history persistence when set.
	DataDir string `json:"-"`
}

// DefaultConfig enables the full pipeline with standard limits.
func DefaultConfig() Config {
	return Config{
		RateLimit:   RateLimitConfig{Enabled: true, MaxPerHour: 20, MaxPerDay: 100},
		Aggregation: AggregationConfig{Enabled: true, Window: 10 * time.Minute, MaxCount: 10},
		Escalation:  EscalationConfig{Enabled: true, TimeToEscalate: 30 * time.Minute, MaxEscalations: 3},
	}
}

func (c *Config) applyDefaults() {
	if c.RateLimit.MaxPerHour <= 0 {
		c.RateLimit.MaxPerHour = 20
	}
	if c.RateLimit.MaxPerDay <= 0 {
		c.RateLimit.MaxPerDay = 100
	}
	if c.Aggregation.Window <= 0 {
		c.Aggregation.Window = 10 * time.Minute
	}
	if c.Aggregation.MaxCount <= 0 {
		c.Aggregation.MaxCount = 10
	}
	if c.Escalation.TimeToEscalate <= 0 {
		c.Escalation.TimeToEscalate = 30 * time.Minute
	}
	if c.Escalation.MaxEscalations <= 0 {
		c.Escalation.MaxEscalations = 3
	}
}

type registeredChannel struct {
	cfg    ChannelConfig
	sender Channel
}

type aggregationBuffer struct {
	testType string
	testName string
	alerts   []*Alert
	firstAt  time.Time
	timer    *time.Timer
}

type escalationState struct {
	timer *time.Timer
	level int
}

// journalRetention bounds how far back windowed statistics can reach.
const journalRetention = 30 * 24 * time.Hour

type journalKind uint8

const (
	journalReceived journalKind = iota
	journalRateLimited
	journalAggregated
	journalDelivery
	journalEscalation
	journalAck
)

// journalEntry is one timestamped pipeline event, kept in memory so
// GetAlertStatistics can answer over a trailing window.
type journalEntry struct {
	at       time.Time
	kind     journalKind
	severity Severity
	channel  string
	sent     bool
	latency  time.Duration
	n        int64
}

type counters struct {
	received     int64
	delivered    int64
	rateLimited  int64
	aggregated   int64
	escalations  int64
	acknowledged int64
	failures     int64
	bySeverity   map[Severity]int64
	byChannel    map[string]ChannelStats
}

// Engine runs the alert pipeline: rate limit, aggregate, enhance,
// deliver, escalate. All methods are safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	cfg      Config
	channels []registeredChannel

	rateLimit   map[string][]time.Time
	buffers     map[string]*aggregationBuffer
	active      map[string]*Alert
	escalations map[string]*escalationState

	history *HistoryManager
	stats   counters
	journal []journalEntry

	onEscalate func(alert *Alert, level int)

	stopCh   chan struct{}
	stopOnce sync.Once
	stopped  bool
}

// NewEngine builds an engine, restores persisted active alerts, and
// starts the background sweeper.
func NewEngine(cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:         cfg,
		rateLimit:   make(map[string][]time.Time),
		buffers:     make(map[string]*aggregationBuffer),
		active:      make(map[string]*Alert),
		escalations: make(map[string]*escalationState),
		stats: counters{
			bySeverity: make(map[Severity]int64),
			byChannel:  make(map[string]ChannelStats),
		},
		stopCh: make(chan struct{}),
	}
	if cfg.DataDir != "" {
		e.history = NewHistoryManager(cfg.DataDir)
		e.loadActiveAlerts()
	}
	go e.sweeper()
	return e
}

// RegisterChannel adds a delivery target. Channels are matched in
// registration order.
func (e *Engine) RegisterChannel(cfg ChannelConfig, sender Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = append(e.channels, registeredChannel{cfg: cfg, sender: sender})
}

// ConfigureChannels replaces every registered channel, used when the
// channel configuration file changes at runtime.
func (e *Engine) ConfigureChannels(channels []registeredChannel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = channels
}

// ReplaceChannels swaps in a freshly built channel set.
func (e *Engine) ReplaceChannels(configs []ChannelConfig, senders []Channel) {
	if len(configs) != len(senders) {
		return
	}
	replacement := make([]registeredChannel, len(configs))
	for i := range configs {
		replacement[i] = registeredChannel{cfg: configs[i], sender: senders[i]}
	}
	e.ConfigureChannels(replacement)
}

// SetEscalateCallback registers the function invoked after each
// escalation delivery.
func (e *Engine) SetEscalateCallback(fn func(alert *Alert, level int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEscalate = fn
}

// ProcessAlert runs one alert through the pipeline. Rate-limited and
// buffered alerts return no results; buffered alerts are delivered
// later as one combined alert.
func (e *Engine) ProcessAlert(alert *Alert) []DeliveryResult {
	if alert == nil {
		return nil
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	prepareAlert(alert)
	e.stats.received++
	e.stats.bySeverity[alert.Severity]++
	e.journalLocked(journalEntry{kind: journalReceived, severity: alert.Severity})

	if e.cfg.RateLimit.Enabled && !e.allowLocked(alert) {
		e.stats.rateLimited++
		e.journalLocked(journalEntry{kind: journalRateLimited, severity: alert.Severity})
		log.Debug().
			Str("test", alert.TestName).
			Str("severity", string(alert.Severity)).
			Msg("Alert dropped by rate limit")
		e.mu.Unlock()
		return nil
	}

	if e.cfg.Aggregation.Enabled {
		combined := e.bufferLocked(alert)
		if combined == nil {
			e.mu.Unlock()
			return nil
		}
		alert = combined
	}
	e.mu.Unlock()

	return e.dispatch(alert, 0, nil)
}

// ProcessVisualRegression turns a failed visual comparison into an
// alert. Results without a detected regression are ignored.
func (e *Engine) ProcessVisualRegression(result VisualRegressionResult) []DeliveryResult {
	if !result.RegressionDetected {
		return nil
	}
	ts := result.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	alert := &Alert{
		Timestamp: ts,
		Severity:  SeverityForVisualScore(result.Score),
		TestType:  "visual_regression",
		TestName:  result.TestName,
		Message:   fmt.Sprintf("Visual regression detected for %s (similarity score %.1f)", result.TestName, result.Score),
		Comparison: &ComparisonDetails{
			Metric:        "visualScore",
			Baseline:      100,
			Current:       result.Score,
			ChangePercent: result.Score - 100,
		},
		Artifacts: visualArtifacts(result),
	}
	return e.ProcessAlert(alert)
}

// AcknowledgeAlert marks an active alert acknowledged and cancels its
// pending escalation. Returns false when the alert is unknown.
func (e *Engine) AcknowledgeAlert(id, by, notes string) bool {
	e.mu.Lock()
	alert, ok := e.active[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	alert.Acknowledged = true
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = time.Now()
	alert.AckNotes = notes
	if st, ok := e.escalations[id]; ok {
		st.timer.Stop()
		delete(e.escalations, id)
	}
	e.stats.acknowledged++
	e.journalLocked(journalEntry{kind: journalAck, severity: alert.Severity})
	e.persistActiveLocked()
	history := e.history
	e.mu.Unlock()

	if history != nil {
		history.MarkAcknowledged(id, by, notes)
	}
	log.Info().Str("alertID", id).Str("by", by).Msg("Alert acknowledged")
	return true
}

// TestAlertDelivery sends a synthetic alert to one named channel,
// bypassing rate limiting, aggregation, and filters. The error reports
// an unknown channel; delivery failures land in the result.
func (e *Engine) TestAlertDelivery(channelName string) (DeliveryResult, error) {
	e.mu.RLock()
	var target *registeredChannel
	for i := range e.channels {
		if e.channels[i].cfg.Name == channelName {
			target = &e.channels[i]
			break
		}
	}
	e.mu.RUnlock()
	if target == nil {
		return DeliveryResult{}, fmt.Errorf("channel %q is not configured", channelName)
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Severity:  SeverityMinor,
		TestType:  "delivery_test",
		TestName:  "alert-delivery-test",
		Message:   fmt.Sprintf("Test alert for channel %s", channelName),
	}
	startedAt := time.Now()
	results := e.deliver([]registeredChannel{*target}, alert, 0)
	e.mu.Lock()
	e.recordResultsLocked(startedAt, results)
	e.mu.Unlock()
	return results[0], nil
}

// GetAlertStatistics reports pipeline statistics. A positive hours
// restricts counts, delivery success rate, average latency, and
// escalation rate to the trailing window; zero or negative returns
// lifetime counters. ActiveAlerts and PendingBuffered always reflect
// current state.
func (e *Engine) GetAlertStatistics(hours int) Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var cutoff time.Time
	if hours > 0 {
		cutoff = time.Now().Add(-time.Duration(hours) * time.Hour)
	}
	stats := e.journalStatsLocked(cutoff)
	stats.WindowHours = hours

	if hours <= 0 {
		// Lifetime totals come from the counters, which survive
		// journal pruning.
		stats.TotalReceived = e.stats.received
		stats.TotalDelivered = e.stats.delivered
		stats.TotalRateLimited = e.stats.rateLimited
		stats.TotalAggregated = e.stats.aggregated
		stats.TotalEscalations = e.stats.escalations
		stats.TotalAcknowledged = e.stats.acknowledged
		stats.DeliveryFailures = e.stats.failures
		for sev, n := range e.stats.bySeverity {
			stats.BySeverity[sev] = n
		}
		for name, cs := range e.stats.byChannel {
			stats.ByChannel[name] = cs
		}
		if n := stats.TotalDelivered + stats.DeliveryFailures; n > 0 {
			stats.DeliverySuccessRate = float64(stats.TotalDelivered) / float64(n)
		}
		if stats.TotalReceived > 0 {
			stats.EscalationRate = float64(stats.TotalEscalations) / float64(stats.TotalReceived)
		}
	}

	stats.ActiveAlerts = len(e.active)
	for _, buf := range e.buffers {
		stats.PendingBuffered += len(buf.alerts)
	}
	return stats
}

// journalStatsLocked aggregates journal entries recorded after cutoff.
// A zero cutoff admits every retained entry.
func (e *Engine) journalStatsLocked(cutoff time.Time) Statistics {
	stats := Statistics{
		BySeverity: make(map[Severity]int64),
		ByChannel:  make(map[string]ChannelStats),
	}
	var latencySum time.Duration
	var latencyN int64
	for _, entry := range e.journal {
		if !cutoff.IsZero() && !entry.at.After(cutoff) {
			continue
		}
		switch entry.kind {
		case journalReceived:
			stats.TotalReceived += entry.n
			stats.BySeverity[entry.severity] += entry.n
		case journalRateLimited:
			stats.TotalRateLimited += entry.n
		case journalAggregated:
			stats.TotalAggregated += entry.n
		case journalDelivery:
			cs := stats.ByChannel[entry.channel]
			if entry.sent {
				stats.TotalDelivered += entry.n
				cs.Sent += entry.n
			} else {
				stats.DeliveryFailures += entry.n
				cs.Failed += entry.n
			}
			stats.ByChannel[entry.channel] = cs
			latencySum += entry.latency
			latencyN += entry.n
		case journalEscalation:
			stats.TotalEscalations += entry.n
		case journalAck:
			stats.TotalAcknowledged += entry.n
		}
	}
	if n := stats.TotalDelivered + stats.DeliveryFailures; n > 0 {
		stats.DeliverySuccessRate = float64(stats.TotalDelivered) / float64(n)
	}
	if latencyN > 0 {
		stats.AvgDeliveryLatencyMs = float64(latencySum.Microseconds()) / 1000 / float64(latencyN)
	}
	if stats.TotalReceived > 0 {
		stats.EscalationRate = float64(stats.TotalEscalations) / float64(stats.TotalReceived)
	}
	return stats
}

// GetActiveAlerts returns copies of the alerts awaiting acknowledgment
// or retention cleanup, oldest first.
func (e *Engine) GetActiveAlerts() []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Alert, 0, len(e.active))
	for _, alert := range e.active {
		out = append(out, *cloneAlert(alert))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// History exposes the delivery history manager, nil when persistence
// is disabled.
func (e *Engine) History() *HistoryManager {
	return e.history
}

// Stop flushes pending aggregation buffers, cancels escalations, and
// persists state.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)

		e.mu.Lock()
		e.stopped = true
		var pending []*Alert
		for key, buf := range e.buffers {
			buf.timer.Stop()
			if combined := combineBuffer(buf); combined != nil {
				pending = append(pending, combined)
			}
			delete(e.buffers, key)
		}
		for id, st := range e.escalations {
			st.timer.Stop()
			delete(e.escalations, id)
		}
		e.mu.Unlock()

		for _, alert := range pending {
			e.dispatch(alert, 0, nil)
		}

		e.mu.Lock()
		e.persistActiveLocked()
		e.mu.Unlock()
		if e.history != nil {
			e.history.Stop()
		}
	})
}

// allowLocked enforces the hourly and daily caps for the alert's
// (type, severity) key, pruning entries older than a day.
func (e *Engine) allowLocked(alert *Alert) bool {
	key := rateLimitKey(alert)
	now := time.Now()
	dayCutoff := now.Add(-24 * time.Hour)
	hourCutoff := now.Add(-time.Hour)

	var kept []time.Time
	hourly := 0
	for _, t := range e.rateLimit[key] {
		if t.After(dayCutoff) {
			kept = append(kept, t)
			if t.After(hourCutoff) {
				hourly++
			}
		}
	}
	if hourly >= e.cfg.RateLimit.MaxPerHour || len(kept) >= e.cfg.RateLimit.MaxPerDay {
		e.rateLimit[key] = kept
		return false
	}
	e.rateLimit[key] = append(kept, now)
	return true
}

// bufferLocked adds the alert to its aggregation buffer. It returns a
// combined alert when the buffer reaches its cap, otherwise nil; the
// buffer timer flushes the rest.
func (e *Engine) bufferLocked(alert *Alert) *Alert {
	key := aggregationKey(alert)
	buf, ok := e.buffers[key]
	if !ok {
		buf = &aggregationBuffer{
			testType: alert.TestType,
			testName: alert.TestName,
			firstAt:  time.Now(),
		}
		buf.timer = time.AfterFunc(e.cfg.Aggregation.Window, func() {
			e.flushBuffer(key)
		})
		e.buffers[key] = buf
	}
	buf.alerts = append(buf.alerts, alert)

	if len(buf.alerts) >= e.cfg.Aggregation.MaxCount {
		buf.timer.Stop()
		delete(e.buffers, key)
		return e.combineLocked(buf)
	}
	return nil
}

// flushBuffer delivers a buffer's contents as one combined alert.
func (e *Engine) flushBuffer(key string) {
	e.mu.Lock()
	buf, ok := e.buffers[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.buffers, key)
	combined := e.combineLocked(buf)
	e.mu.Unlock()

	if combined != nil {
		e.dispatch(combined, 0, nil)
	}
}

func (e *Engine) combineLocked(buf *aggregationBuffer) *Alert {
	combined := combineBuffer(buf)
	if combined != nil && combined.AggregatedCount > 1 {
		e.stats.aggregated += int64(combined.AggregatedCount)
		e.journalLocked(journalEntry{kind: journalAggregated, severity: combined.Severity, n: int64(combined.AggregatedCount)})
	}
	return combined
}

// journalLocked appends one pipeline event. Entries default to now and
// a count of one.
func (e *Engine) journalLocked(entry journalEntry) {
	if entry.at.IsZero() {
		entry.at = time.Now()
	}
	if entry.n == 0 {
		entry.n = 1
	}
	e.journal = append(e.journal, entry)
}

// combineBuffer folds buffered alerts into one. A single buffered alert
// passes through unchanged.
func combineBuffer(buf *aggregationBuffer) *Alert {
	switch len(buf.alerts) {
	case 0:
		return nil
	case 1:
		return buf.alerts[0]
	}

	highest := buf.alerts[0]
	channels := map[string]struct{}{}
	for _, a := range buf.alerts {
		if a.Severity.Rank() > highest.Severity.Rank() {
			highest = a
		}
		for _, ch := range a.Channels {
			channels[ch] = struct{}{}
		}
	}

	combined := &Alert{
		ID:              uuid.NewString(),
		Timestamp:       time.Now(),
		Severity:        highest.Severity,
		TestType:        buf.testType,
		TestName:        buf.testName,
		Message:         fmt.Sprintf("%d alerts for %s/%s", len(buf.alerts), buf.testType, buf.testName),
		Comparison:      highest.Comparison,
		AggregatedCount: len(buf.alerts),
		TimeRange: &AggregationRange{
			First: buf.alerts[0].Timestamp,
			Last:  buf.alerts[len(buf.alerts)-1].Timestamp,
		},
	}
	for ch := range channels {
		combined.Channels = append(combined.Channels, ch)
	}
	sort.Strings(combined.Channels)
	return combined
}

// dispatch enhances and delivers an alert, tracks it as active, and
// schedules escalation. Escalation deliveries pass their level and an
// optional channel override.
func (e *Engine) dispatch(alert *Alert, level int, override []string) []DeliveryResult {
	e.mu.Lock()
	clone := cloneAlert(alert)
	targets := e.matchChannelsLocked(clone, override)
	if level == 0 {
		e.active[alert.ID] = alert
		if e.cfg.Escalation.Enabled {
			e.scheduleEscalationLocked(alert.ID)
		}
	}
	e.mu.Unlock()

	startedAt := time.Now()
	results := e.deliver(targets, clone, level)

	e.mu.Lock()
	e.recordResultsLocked(startedAt, results)
	e.persistActiveLocked()
	history := e.history
	e.mu.Unlock()

	if history != nil {
		history.Record(clone, results, level)
	}
	return results
}

// matchChannelsLocked selects the channels an alert should reach:
// enabled, severity admitted, name targeted, and test filter matched.
func (e *Engine) matchChannelsLocked(alert *Alert, override []string) []registeredChannel {
	names := override
	if len(names) == 0 {
		names = alert.Channels
	}

	var targets []registeredChannel
	for _, rc := range e.channels {
		if !rc.cfg.Enabled {
			continue
		}
		if len(names) > 0 && !containsString(names, rc.cfg.Name) {
			continue
		}
		if len(rc.cfg.SeverityFilter) > 0 && !containsSeverity(rc.cfg.SeverityFilter, alert.Severity) {
			continue
		}
		if rc.cfg.TestFilter != "" && !wildcard.Match(rc.cfg.TestFilter, alert.TestName) {
			continue
		}
		targets = append(targets, rc)
	}
	return targets
}

// deliver fans the alert out to every target. Failures are isolated
// per channel and recorded in the results.
func (e *Engine) deliver(targets []registeredChannel, alert *Alert, level int) []DeliveryResult {
	if len(targets) == 0 {
		return nil
	}

	results := make([]DeliveryResult, len(targets))
	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			enhanced := &EnhancedAlert{
				Alert:           *alert,
				Channel:         target.cfg.Name,
				EscalationLevel: level,
				TemplateData:    buildTemplateData(alert, level),
			}
			ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
			defer cancel()

			err := target.sender.Send(ctx, enhanced)
			result := DeliveryResult{
				Channel:     target.cfg.Name,
				Sent:        err == nil,
				RetryCount:  enhanced.Delivery.RetryCount,
				CompletedAt: time.Now(),
			}
			if err != nil {
				result.Error = err.Error()
				log.Warn().
					Err(err).
					Str("channel", target.cfg.Name).
					Str("test", alert.TestName).
					Msg("Alert delivery failed")
			}
			results[i] = result
			return nil
		})
	}
	g.Wait()
	return results
}

func (e *Engine) recordResultsLocked(startedAt time.Time, results []DeliveryResult) {
	for _, r := range results {
		cs := e.stats.byChannel[r.Channel]
		if r.Sent {
			e.stats.delivered++
			cs.Sent++
		} else {
			e.stats.failures++
			cs.Failed++
		}
		e.stats.byChannel[r.Channel] = cs
		e.journalLocked(journalEntry{
			at:      r.CompletedAt,
			kind:    journalDelivery,
			channel: r.Channel,
			sent:    r.Sent,
			latency: r.CompletedAt.Sub(startedAt),
		})
	}
}

func (e *Engine) scheduleEscalationLocked(id string) {
	if e.stopped {
		return
	}
	if _, exists := e.escalations[id]; exists {
		return
	}
	st := &escalationState{}
	st.timer = time.AfterFunc(e.cfg.Escalation.TimeToEscalate, func() {
		e.escalate(id)
	})
	e.escalations[id] = st
}

// escalate re-delivers an unacknowledged alert and schedules the next
// level until maxEscalations is reached.
func (e *Engine) escalate(id string) {
	e.mu.Lock()
	alert, ok := e.active[id]
	st := e.escalations[id]
	if !ok || st == nil || alert.Acknowledged || e.stopped {
		delete(e.escalations, id)
		e.mu.Unlock()
		return
	}
	st.level++
	level := st.level
	e.stats.escalations++
	e.journalLocked(journalEntry{kind: journalEscalation, severity: alert.Severity})
	if st.level < e.cfg.Escalation.MaxEscalations {
		st.timer = time.AfterFunc(e.cfg.Escalation.TimeToEscalate, func() {
			e.escalate(id)
		})
	} else {
		delete(e.escalations, id)
	}
	override := e.cfg.Escalation.Channels
	clone := cloneAlert(alert)
	cb := e.onEscalate
	e.mu.Unlock()

	log.Info().
		Str("alertID", id).
		Int("level", level).
		Str("test", clone.TestName).
		Msg("Alert escalated")

	e.dispatch(clone, level, override)
	if cb != nil {
		cb(clone, level)
	}
}

// sweeper flushes over-age aggregation buffers and prunes old state.
func (e *Engine) sweeper() {
	ticker := time.NewTicker(bufferSweepInterval)
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flushStaleBuffers()
		case <-cleanupTicker.C:
			e.cleanup()
		case <-e.stopCh:
			return
		}
	}
}

// flushStaleBuffers is the safety net behind the per-buffer timers: no
// buffer may outlive the aggregation window plus sweep latency.
func (e *Engine) flushStaleBuffers() {
	e.mu.Lock()
	var stale []string
	for key, buf := range e.buffers {
		if time.Since(buf.firstAt) >= e.cfg.Aggregation.Window {
			buf.timer.Stop()
			stale = append(stale, key)
		}
	}
	e.mu.Unlock()

	for _, key := range stale {
		e.flushBuffer(key)
	}
}

// cleanup drops acknowledged alerts past retention and empty rate
// limit buckets.
func (e *Engine) cleanup() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := time.Now().Add(-ackRetention)
	for id, alert := range e.active {
		if alert.Acknowledged && alert.AcknowledgedAt.Before(cutoff) {
			delete(e.active, id)
		}
	}
	dayCutoff := time.Now().Add(-24 * time.Hour)
	for key, times := range e.rateLimit {
		var kept []time.Time
		for _, t := range times {
			if t.After(dayCutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(e.rateLimit, key)
		} else {
			e.rateLimit[key] = kept
		}
	}

	journalCutoff := time.Now().Add(-journalRetention)
	idx := 0
	for idx < len(e.journal) && e.journal[idx].at.Before(journalCutoff) {
		idx++
	}
	if idx > 0 {
		e.journal = append(e.journal[:0:0], e.journal[idx:]...)
	}

	e.persistActiveLocked()
}

func (e *Engine) persistActiveLocked() {
	if e.cfg.DataDir == "" {
		return
	}
	alerts := make([]*Alert, 0, len(e.active))
	for _, alert := range e.active {
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Timestamp.Before(alerts[j].Timestamp) })
	path := filepath.Join(e.cfg.DataDir, activeAlertsFile)
	if err := storage.SaveJSONFile(path, alerts); err != nil {
		log.Error().Err(err).Msg("Failed to save active alerts")
	}
}

func (e *Engine) loadActiveAlerts() {
	path := filepath.Join(e.cfg.DataDir, activeAlertsFile)
	var alerts []*Alert
	if err := storage.LoadJSONFile(path, &alerts); err != nil {
		log.Warn().Err(err).Msg("Failed to load active alerts, starting empty")
		return
	}
	if len(alerts) == 0 {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, alert := range alerts {
		if alert == nil || alert.ID == "" {
			continue
		}
		e.active[alert.ID] = alert
		if e.cfg.Escalation.Enabled && !alert.Acknowledged {
			e.scheduleEscalationLocked(alert.ID)
		}
	}
	log.Info().Int("count", len(e.active)).Msg("Restored active alerts")
}

func prepareAlert(alert *Alert) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.Severity.Rank() == 0 {
		alert.Severity = SeverityMinor
	}
}

func buildTemplateData(alert *Alert, level int) map[string]any {
	data := map[string]any{
		"alertId":   alert.ID,
		"testName":  alert.TestName,
		"testType":  alert.TestType,
		"severity":  string(alert.Severity),
		"message":   alert.Message,
		"timestamp": alert.Timestamp.Format(time.RFC3339),
	}
	if alert.AggregatedCount > 1 {
		data["aggregatedCount"] = alert.AggregatedCount
		if alert.TimeRange != nil {
			data["timeRangeStart"] = alert.TimeRange.First.Format(time.RFC3339)
			data["timeRangeEnd"] = alert.TimeRange.Last.Format(time.RFC3339)
		}
	}
	if c := alert.Comparison; c != nil {
		data["metric"] = c.Metric
		data["baseline"] = c.Baseline
		data["current"] = c.Current
		data["changePercent"] = c.ChangePercent
	}
	for k, v := range alert.Artifacts {
		data[k] = v
	}
	if level > 0 {
		data["escalationLevel"] = level
	}
	return data
}

func visualArtifacts(result VisualRegressionResult) map[string]string {
	artifacts := map[string]string{}
	if result.BaselineImage != "" {
		artifacts["baselineImage"] = result.BaselineImage
	}
	if result.CurrentImage != "" {
		artifacts["currentImage"] = result.CurrentImage
	}
	if result.DiffImage != "" {
		artifacts["diffImage"] = result.DiffImage
	}
	if len(artifacts) == 0 {
		return nil
	}
	return artifacts
}

func cloneAlert(alert *Alert) *Alert {
	clone := *alert
	if alert.Channels != nil {
		clone.Channels = append([]string(nil), alert.Channels...)
	}
	if alert.Comparison != nil {
		c := *alert.Comparison
		clone.Comparison = &c
	}
	if alert.TimeRange != nil {
		tr := *alert.TimeRange
		clone.TimeRange = &tr
	}
	if alert.Artifacts != nil {
		clone.Artifacts = make(map[string]string, len(alert.Artifacts))
		for k, v := range alert.Artifacts {
			clone.Artifacts[k] = v
		}
	}
	return &clone
}

func rateLimitKey(alert *Alert) string {
	alertType := alert.TestType
	if alertType == "" {
		alertType = "performance"
	}
	return alertType + "|" + string(alert.Severity)
}

func aggregationKey(alert *Alert) string {
	return alert.TestType + "|" + alert.TestName
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsSeverity(list []Severity, s Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
