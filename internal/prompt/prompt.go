// Package prompt turns a persona's capability and integration state into
// natural-language operating instructions for the agent's system context.
// Pure text building: no network calls, no state.
package prompt

import (
	"fmt"
	"strings"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/config"
)

var categoryOrder = []capability.Category{
	capability.CategoryCalendar,
	capability.CategoryCommunication,
	capability.CategoryCRM,
	capability.CategorySupport,
}

var categoryHeading = map[capability.Category]string{
	capability.CategoryCalendar:      "Calendar",
	capability.CategoryCommunication: "Communication",
	capability.CategoryCRM:           "CRM",
	capability.CategorySupport:       "Support",
}

// PersonaSystemPrompt renders the instruction block for one persona. The
// output is deterministic for a given input and covers every enabled
// capability with provider-aware wording, since this text is the main way
// the agent learns what each action actually does.
func PersonaSystemPrompt(set *config.PersonaIntegrationSet) string {
	var b strings.Builder

	name := set.Persona.Name
	if name == "" {
		name = "Assistant"
	}
	fmt.Fprintf(&b, "You are %s", name)
	if set.Persona.Role != "" {
		fmt.Fprintf(&b, ", acting as %s", set.Persona.Role)
	}
	b.WriteString(".\n")
	if set.Persona.Description != "" {
		b.WriteString(set.Persona.Description)
		b.WriteString("\n")
	}
	b.WriteString("\n## What you can do\n")

	caps := enabledByCategory(set)
	any := false
	for _, cat := range categoryOrder {
		list := caps[cat]
		if len(list) == 0 {
			continue
		}
		any = true
		fmt.Fprintf(&b, "\n### %s\n", categoryHeading[cat])
		for _, c := range list {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
		}
		if cat == capability.CategoryCalendar {
			writeCalendarCaveats(&b, set.Integrations.Calendar)
		}
		if cat == capability.CategoryCommunication {
			writeCommunicationCaveats(&b, set.Integrations.Communication)
		}
	}
	if !any {
		b.WriteString("\nNo external actions are currently connected. Answer from knowledge and offer to help once integrations are set up.\n")
	}

	b.WriteString(`
## Guidelines
- Only offer actions listed above; never promise an action whose integration is not connected.
- Confirm details (times, addressees, names) with the user before executing an action.
- Report action outcomes honestly, including partial successes and caveats.
- Never expose tokens, API keys, or internal error details to the user.

## Response format
1. Acknowledge the request.
2. State which action you are taking, or why none applies.
3. Summarize the outcome, including links or ids returned by the action.
`)
	return b.String()
}

func enabledByCategory(set *config.PersonaIntegrationSet) map[capability.Category][]capability.Descriptor {
	out := make(map[capability.Category][]capability.Descriptor)
	for _, c := range set.CapabilitySet() {
		if c.Enabled {
			out[c.Category] = append(out[c.Category], c)
		}
	}
	return out
}

func writeCalendarCaveats(b *strings.Builder, cfg config.CalendarConfig) {
	switch cfg.Provider {
	case config.ProviderGoogleCalendar:
		b.WriteString("Bookings go directly onto the connected Google Calendar; attendees receive invitations, and availability is checked across all of the account's calendars.\n")
	case config.ProviderCalendly:
		b.WriteString("Scheduling runs through Calendly: share the booking link rather than proposing exact times, since Calendly controls the available slots.\n")
	case config.ProviderCalCom:
		b.WriteString("Scheduling runs through Cal.com: share the booking page link rather than proposing exact times, since Cal.com controls the available slots.\n")
	}
}

func writeCommunicationCaveats(b *strings.Builder, cfg config.CommunicationConfig) {
	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" && cfg.Slack.WebhookURL != "" {
			b.WriteString("Slack messages are delivered through an incoming webhook: they always land in the channel fixed when the webhook was created, so do not offer to post to other channels.\n")
		} else if cfg.Slack.BotToken != "" {
			b.WriteString("Slack messages can target a channel or be sent as a direct message to a specific user.\n")
		}
	}
	if cfg.Email.Enabled {
		b.WriteString("Emails are sent from the persona's configured address with the requesting user's identity shown as the sender context.\n")
	}
}
