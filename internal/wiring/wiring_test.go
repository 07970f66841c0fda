package wiring

import (
	"context"
	"testing"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

func TestBuildManagerRegistersProvidersForExecution(t *testing.T) {
	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{
				Enabled:  true,
				Provider: config.ProviderGoogleCalendar,
			},
			CRM: config.CRMConfig{Enabled: true, APIKey: "k"},
		},
	}
	m := BuildManager(set, nil, nil)

	// The calendar slot must route to the configured provider; reaching the
	// provider at all (instead of "no service registered") proves the wiring.
	res := m.ExecuteAction(context.Background(), integration.Action{Type: "schedule_meeting", Payload: map[string]any{}})
	if res.Success {
		t.Fatal("unconfigured google tokens cannot succeed")
	}
	if res.Metadata["provider"] != "google_calendar" {
		t.Errorf("action did not reach the calendar provider: %+v", res)
	}
}

func TestBuildManagerCalendlyProvider(t *testing.T) {
	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{
				Enabled:  true,
				Provider: config.ProviderCalendly,
				APIKey:   "key",
			},
		},
	}
	m := BuildManager(set, nil, nil)
	res := m.ExecuteAction(context.Background(), integration.Action{Type: "cancel_meeting", Payload: map[string]any{"event_id": "x"}})
	if res.Metadata["provider"] != "calendly" {
		t.Errorf("expected the calendly provider to answer, got %+v", res)
	}
}

func TestBuildManagerWithoutCalendarProvider(t *testing.T) {
	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{Enabled: true},
		},
	}
	m := BuildManager(set, nil, nil)
	res := m.ExecuteAction(context.Background(), integration.Action{Type: "schedule_meeting"})
	if res.Success {
		t.Fatal("no provider registered for an empty provider enum")
	}
}

func TestBuildManagerDisabledServicesStayRegisteredButInert(t *testing.T) {
	set := &config.PersonaIntegrationSet{Persona: config.PersonaConfig{ID: "p1"}}
	m := BuildManager(set, nil, nil)

	// Every service is registered, but with nothing enabled no capability is
	// available and no action may execute.
	if caps := m.AvailableCapabilities(); len(caps) != 0 {
		t.Errorf("no integration enabled, yet capabilities available: %+v", caps)
	}
	if res := m.ExecuteAction(context.Background(), integration.Action{Type: "create_lead"}); res.Success {
		t.Error("disabled crm must not execute")
	}
}
