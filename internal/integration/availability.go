package integration

import (
	"strings"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/config"
)

// requirementSatisfied resolves one dotted requirement path against the
// persona's integration set. The requirement vocabulary is closed and small,
// so resolution is an explicit match rather than reflective map traversal.
// Unknown or malformed paths are unsatisfied, never an error.
func requirementSatisfied(set *config.PersonaIntegrationSet, path string) bool {
	switch strings.TrimSpace(path) {
	case "calendar":
		return set.Integrations.Calendar.Active()
	case "crm":
		return set.Integrations.CRM.Active()
	case "support":
		return set.Integrations.Support.Active()
	case "communication.slack":
		return set.Integrations.Communication.Slack.Active()
	case "communication.email":
		return set.Integrations.Communication.Email.Active()
	case "communication.discord":
		return set.Integrations.Communication.Discord.Active()
	case "communication.teams":
		return set.Integrations.Communication.Teams.Active()
	default:
		return false
	}
}

// available reports whether a capability is currently invocable: its
// persona-level toggle is on and every required integration path resolves
// to an enabled integration.
func available(set *config.PersonaIntegrationSet, cap capability.Descriptor) bool {
	if !cap.Enabled {
		return false
	}
	for _, req := range cap.RequiredIntegrations {
		if !requirementSatisfied(set, req) {
			return false
		}
	}
	return true
}
