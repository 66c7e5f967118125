package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ajitpratap0/ees/internal/events"
)

// mockAlerter is a test implementation of Alerter.
type mockAlerter struct {
	alerts []Alert
	err    error
}

func newMockAlerter(err error) *mockAlerter {
	return &mockAlerter{err: err}
}

func (m *mockAlerter) Send(ctx context.Context, alert Alert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

func TestNewManager(t *testing.T) {
	a1 := newMockAlerter(nil)
	a2 := newMockAlerter(nil)

	manager := NewManager(SeverityInfo, a1, a2)

	if manager == nil {
		t.Fatal("expected non-nil manager")
	}
	if len(manager.alerters) != 2 {
		t.Errorf("expected 2 alerters, got %d", len(manager.alerters))
	}
}

func TestManager_Send(t *testing.T) {
	tests := []struct {
		name           string
		alert          Alert
		mockErr        error
		expectErr      bool
		checkTimestamp bool
	}{
		{
			name:           "successful send",
			alert:          Alert{Title: "Test Alert", Message: "Test Message", Severity: SeverityInfo},
			checkTimestamp: true,
		},
		{
			name:      "send with error",
			alert:     Alert{Title: "Test Alert", Message: "Test Message", Severity: SeverityWarning},
			mockErr:   errors.New("send error"),
			expectErr: true,
		},
		{
			name: "send with explicit timestamp",
			alert: Alert{
				Title: "Test Alert", Message: "Test Message", Severity: SeverityCritical,
				Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name: "send with metadata",
			alert: Alert{
				Title: "Test Alert", Message: "Test Message", Severity: SeverityInfo,
				Metadata: map[string]interface{}{"key1": "value1", "key2": 123},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerter := newMockAlerter(tt.mockErr)
			manager := NewManager(SeverityInfo, alerter)

			err := manager.Send(context.Background(), tt.alert)

			if tt.expectErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if len(alerter.alerts) != 1 {
				t.Fatalf("expected 1 alert sent, got %d", len(alerter.alerts))
			}
			sent := alerter.alerts[0]
			if sent.Title != tt.alert.Title {
				t.Errorf("expected title %q, got %q", tt.alert.Title, sent.Title)
			}
			if tt.checkTimestamp && sent.Timestamp.IsZero() {
				t.Error("expected timestamp to be set, got zero value")
			}
		})
	}
}

func TestManager_SendToMultipleAlerters(t *testing.T) {
	a1 := newMockAlerter(nil)
	a2 := newMockAlerter(errors.New("alerter2 error"))
	a3 := newMockAlerter(nil)

	manager := NewManager(SeverityInfo, a1, a2, a3)

	err := manager.Send(context.Background(), Alert{
		Title: "Multi-send Test", Message: "Testing multiple alerters", Severity: SeverityWarning,
	})

	if err == nil {
		t.Error("expected error from alerter2, got nil")
	}
	if len(a1.alerts) != 1 || len(a2.alerts) != 1 || len(a3.alerts) != 1 {
		t.Errorf("expected all three alerters to receive the alert, got %d/%d/%d",
			len(a1.alerts), len(a2.alerts), len(a3.alerts))
	}
}

func TestManager_SendCritical(t *testing.T) {
	alerter := newMockAlerter(nil)
	manager := NewManager(SeverityInfo, alerter)

	err := manager.SendCritical(context.Background(), "Critical Test", "Critical message", map[string]interface{}{"test": "value"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerter.alerts))
	}
	if alerter.alerts[0].Severity != SeverityCritical {
		t.Errorf("expected severity CRITICAL, got %q", alerter.alerts[0].Severity)
	}
}

func TestManager_Handle_FiltersBelowMinSeverity(t *testing.T) {
	alerter := newMockAlerter(nil)
	manager := NewManager(SeverityWarning, alerter)

	manager.Handle(context.Background(), events.Event{
		Kind: events.KindScanTickCompleted, Severity: events.SeverityInfo, Message: "tick done",
	})
	if len(alerter.alerts) != 0 {
		t.Fatalf("expected info event to be filtered out, got %d alerts", len(alerter.alerts))
	}

	manager.Handle(context.Background(), events.Event{
		Kind: events.KindProviderBreakerOpened, Severity: events.SeverityCritical, Message: "breaker tripped",
	})
	if len(alerter.alerts) != 1 {
		t.Fatalf("expected critical event to pass the filter, got %d alerts", len(alerter.alerts))
	}
	if alerter.alerts[0].Severity != SeverityCritical {
		t.Errorf("expected mapped severity CRITICAL, got %q", alerter.alerts[0].Severity)
	}
	if alerter.alerts[0].Title != string(events.KindProviderBreakerOpened) {
		t.Errorf("expected title to be the event kind, got %q", alerter.alerts[0].Title)
	}
}

func TestLogAlerter_Send(t *testing.T) {
	alerter := NewLogAlerter()
	for _, sev := range []Severity{SeverityCritical, SeverityWarning, SeverityInfo} {
		alert := Alert{Title: "Log Test", Message: "Log test message", Severity: sev, Timestamp: time.Now()}
		if err := alerter.Send(context.Background(), alert); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

func TestConsoleAlerter_Send(t *testing.T) {
	alerter := NewConsoleAlerter()
	alert := Alert{
		Title: "Console Test", Message: "Console test message", Severity: SeverityWarning, Timestamp: time.Now(),
		Metadata: map[string]interface{}{"symbol": "AAPL"},
	}
	if err := alerter.Send(context.Background(), alert); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConsoleAlerter_SendWithoutMetadata(t *testing.T) {
	alerter := NewConsoleAlerter()
	alert := Alert{Title: "No Metadata Test", Message: "Testing without metadata", Severity: SeverityInfo, Timestamp: time.Now()}
	if err := alerter.Send(context.Background(), alert); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSeverityConstants(t *testing.T) {
	if SeverityInfo != "INFO" || SeverityWarning != "WARNING" || SeverityCritical != "CRITICAL" {
		t.Errorf("unexpected severity constant values: %q %q %q", SeverityInfo, SeverityWarning, SeverityCritical)
	}
}
