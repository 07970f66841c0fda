// Package wiring constructs provider services from configuration and
// secrets and registers them on an integration manager. Keeping
// construction here preserves the manager's dependency-injection seam:
// orchestration logic never touches tokens or storage directly.
package wiring

import (
	"log/slog"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
	"github.com/AgentDesk/AgentDesk/internal/integration/calendar"
	"github.com/AgentDesk/AgentDesk/internal/integration/crm"
	"github.com/AgentDesk/AgentDesk/internal/integration/email"
	"github.com/AgentDesk/AgentDesk/internal/integration/slack"
)

// BuildManager assembles a manager for one persona and registers a provider
// service for every integration with enough configuration to construct one.
// tokens may be nil (refreshed calendar tokens then stay in memory only);
// resolver may be nil (the email test will report no actor).
func BuildManager(set *config.PersonaIntegrationSet, tokens calendar.TokenStore, resolver identity.Resolver, opts ...integration.ManagerOption) *integration.Manager {
	m := integration.NewManager(set, nil, opts...)

	cal := set.Integrations.Calendar
	switch cal.Provider {
	case config.ProviderGoogleCalendar:
		m.RegisterService("calendar", calendar.NewGoogleService(cal, set.Persona.ID, tokens))
	case config.ProviderCalendly:
		m.RegisterService("calendar", calendar.NewCalendlyService(cal))
	case config.ProviderCalCom:
		m.RegisterService("calendar", calendar.NewCalComService(cal))
	default:
		slog.Info("No calendar provider configured", "persona", set.Persona.ID)
	}

	m.RegisterService("slack", slack.NewService(set.Integrations.Communication.Slack))
	m.RegisterService("email", email.NewService(set.Integrations.Communication.Email, resolver))
	m.RegisterService("crm", crm.NewLeadService(set.Integrations.CRM))
	m.RegisterService("support", crm.NewTicketService(set.Integrations.Support))

	return m
}
