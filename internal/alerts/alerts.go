// Package alerts fans out notable trading events to one or more
// notification channels (log, console, Telegram). It subscribes to the
// shared event bus rather than being called directly by producers, so
// adding or removing a channel never touches the scheduler, executor,
// or trailing engine.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/ees/internal/events"
)

// Severity levels for alerts, mirrored from events.Severity so this
// package's Alerter implementations don't need to import events types
// directly.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity maps a config string ("info"/"warning"/"critical",
// case-insensitive) to a Severity, defaulting to SeverityWarning for any
// unrecognized value so a typo in config doesn't silently mute every
// alert.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "info":
		return SeverityInfo
	case "critical":
		return SeverityCritical
	case "warning":
		return SeverityWarning
	default:
		return SeverityWarning
	}
}

func severityFromEvent(s events.Severity) Severity {
	switch s {
	case events.SeverityCritical:
		return SeverityCritical
	case events.SeverityWarning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Alert represents an alert message.
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// Manager manages multiple alert channels and implements events.Subscriber
// so it can be registered directly with an events.Bus.
type Manager struct {
	alerters []Alerter
	// minSeverity filters out events below this severity before they
	// reach any channel — avoids paging a Telegram chat on every info
	// event a busy scan tick produces.
	minSeverity Severity
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// NewManager creates a new alert manager. minSeverity filters events
// delivered through Handle; Send and the SendX convenience methods
// always deliver regardless of minSeverity.
func NewManager(minSeverity Severity, alerters ...Alerter) *Manager {
	return &Manager{
		alerters:    alerters,
		minSeverity: minSeverity,
	}
}

// Handle implements events.Subscriber, converting a bus event into an
// Alert and forwarding it to every configured channel.
func (m *Manager) Handle(ctx context.Context, ev events.Event) {
	sev := severityFromEvent(ev.Severity)
	if severityRank(sev) < severityRank(m.minSeverity) {
		return
	}
	_ = m.Send(ctx, Alert{
		Title:     string(ev.Kind),
		Message:   ev.Message,
		Severity:  sev,
		Timestamp: ev.Timestamp,
		Metadata:  ev.Metadata,
	})
}

// Send sends an alert to all configured alerters.
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	var lastErr error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Error().
				Err(err).
				Str("title", alert.Title).
				Msg("failed to send alert")
			lastErr = err
		}
	}

	return lastErr
}

// SendCritical is a convenience method for sending critical alerts.
func (m *Manager) SendCritical(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityCritical,
		Metadata: metadata,
	})
}

// SendWarning is a convenience method for sending warning alerts.
func (m *Manager) SendWarning(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityWarning,
		Metadata: metadata,
	})
}

// SendInfo is a convenience method for sending info alerts.
func (m *Manager) SendInfo(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityInfo,
		Metadata: metadata,
	})
}

// LogAlerter logs alerts using zerolog.
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter.
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

// Send sends an alert by logging it.
func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	event := log.Log()

	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	case SeverityInfo:
		event = log.Info()
	}

	if alert.Metadata != nil {
		for key, value := range alert.Metadata {
			event = event.Interface(key, value)
		}
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg(fmt.Sprintf("ALERT: %s", alert.Message))

	return nil
}

// ConsoleAlerter prints alerts to console with prominent formatting, for
// local/dev runs without a log aggregator handy.
type ConsoleAlerter struct{}

// NewConsoleAlerter creates a new console-based alerter.
func NewConsoleAlerter() *ConsoleAlerter {
	return &ConsoleAlerter{}
}

// Send sends an alert by printing to console.
func (c *ConsoleAlerter) Send(ctx context.Context, alert Alert) error {
	banner := ""
	switch alert.Severity {
	case SeverityCritical:
		banner = "*** CRITICAL ALERT ***"
	case SeverityWarning:
		banner = "--- WARNING ALERT ---"
	case SeverityInfo:
		banner = "--- INFO ALERT ---"
	}

	fmt.Println()
	fmt.Println("========================================")
	fmt.Println(banner)
	fmt.Println("========================================")
	fmt.Printf("Title: %s\n", alert.Title)
	fmt.Printf("Message: %s\n", alert.Message)
	fmt.Printf("Severity: %s\n", alert.Severity)
	fmt.Printf("Time: %s\n", alert.Timestamp.Format(time.RFC3339))

	if len(alert.Metadata) > 0 {
		fmt.Println("Metadata:")
		for key, value := range alert.Metadata {
			fmt.Printf("  - %s: %v\n", key, value)
		}
	}

	fmt.Println("========================================")
	fmt.Println()

	return nil
}
