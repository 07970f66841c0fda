// Package capability defines the fixed catalog of actions a persona can be
// granted. The catalog is pure data: availability decisions live in the
// integration manager, which combines these descriptors with the persona's
// integration configuration.
package capability

// Category groups capabilities by the kind of external system they touch.
type Category string

const (
	CategoryCalendar      Category = "calendar"
	CategoryCommunication Category = "communication"
	CategoryCRM           Category = "crm"
	CategorySupport       Category = "support"
)

// Descriptor describes one gateable action.
//
// RequiredIntegrations is an ordered list of dotted paths into the persona's
// integration configuration ("calendar", "communication.slack", ...). Every
// path must resolve to an enabled integration for the capability to be
// invocable. Persona-specific copies carry the Enabled flag and may be
// persisted with it overridden; the seeded defaults are never mutated.
type Descriptor struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Category             Category `json:"category"`
	Enabled              bool     `json:"enabled"`
	RequiredIntegrations []string `json:"requiredIntegrations"`
}

// Defaults returns the seed capability set for a new persona.
// Callers receive a fresh slice on every call and may mutate it freely.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			ID:                   "schedule_meeting",
			Name:                 "Schedule Meeting",
			Description:          "Book a meeting on the connected calendar and invite attendees",
			Category:             CategoryCalendar,
			Enabled:              true,
			RequiredIntegrations: []string{"calendar"},
		},
		{
			ID:                   "check_availability",
			Name:                 "Check Availability",
			Description:          "Check free/busy across all connected calendars and list open slots",
			Category:             CategoryCalendar,
			Enabled:              true,
			RequiredIntegrations: []string{"calendar"},
		},
		{
			ID:                   "cancel_meeting",
			Name:                 "Cancel Meeting",
			Description:          "Cancel a previously scheduled meeting",
			Category:             CategoryCalendar,
			Enabled:              true,
			RequiredIntegrations: []string{"calendar"},
		},
		{
			ID:                   "update_meeting",
			Name:                 "Update Meeting",
			Description:          "Change the time or details of a scheduled meeting",
			Category:             CategoryCalendar,
			Enabled:              true,
			RequiredIntegrations: []string{"calendar"},
		},
		{
			ID:                   "send_slack_message",
			Name:                 "Send Slack Message",
			Description:          "Post a message to the connected Slack workspace",
			Category:             CategoryCommunication,
			Enabled:              true,
			RequiredIntegrations: []string{"communication.slack"},
		},
		{
			ID:                   "send_email",
			Name:                 "Send Email",
			Description:          "Send an email through the configured outbound mail account",
			Category:             CategoryCommunication,
			Enabled:              true,
			RequiredIntegrations: []string{"communication.email"},
		},
		{
			ID:                   "create_lead",
			Name:                 "Create CRM Lead",
			Description:          "Create a new lead/contact in the connected CRM",
			Category:             CategoryCRM,
			Enabled:              true,
			RequiredIntegrations: []string{"crm"},
		},
		{
			ID:                   "create_ticket",
			Name:                 "Create Support Ticket",
			Description:          "Open a ticket in the connected support desk",
			Category:             CategorySupport,
			Enabled:              true,
			RequiredIntegrations: []string{"support"},
		},
	}
}

// Find returns the descriptor with the given id from list.
// An unknown id returns ok=false; it is never an error.
func Find(list []Descriptor, id string) (Descriptor, bool) {
	for _, d := range list {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
