package integration

import (
	"testing"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/config"
)

func TestAvailabilityNoRequirements(t *testing.T) {
	// With no required integrations, availability depends only on the
	// persona-level toggle.
	set := testSet(nil)
	cap := capability.Descriptor{ID: "x", Enabled: true}
	if !available(set, cap) {
		t.Error("capability with no requirements should be available when enabled")
	}
	cap.Enabled = false
	if available(set, cap) {
		t.Error("disabled capability should never be available")
	}
}

func TestAvailabilityDepthTwoPath(t *testing.T) {
	cap := capability.Descriptor{
		ID:                   "send_slack_message",
		Enabled:              true,
		RequiredIntegrations: []string{"communication.slack"},
	}

	set := testSet(nil)
	if available(set, cap) {
		t.Error("missing communication config must resolve to unavailable, not panic")
	}

	set.Integrations.Communication.Slack.Enabled = true
	if !available(set, cap) {
		t.Error("expected available once communication.slack is enabled")
	}

	set.Integrations.Communication.Slack.Status = config.StatusError
	if available(set, cap) {
		t.Error("error status must make the integration unusable")
	}
}

func TestAvailabilityMalformedPath(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.Calendar.Enabled = true
	})
	for _, path := range []string{"", "calendar.google.extra", "communication", "communication.pager", "bogus"} {
		cap := capability.Descriptor{ID: "x", Enabled: true, RequiredIntegrations: []string{path}}
		if available(set, cap) {
			t.Errorf("path %q must be treated as unsatisfied", path)
		}
	}
}

func TestAvailabilityAllRequirementsMustHold(t *testing.T) {
	cap := capability.Descriptor{
		ID:                   "x",
		Enabled:              true,
		RequiredIntegrations: []string{"calendar", "communication.email"},
	}
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.Calendar.Enabled = true
	})
	if available(set, cap) {
		t.Error("one unsatisfied requirement must make the capability unavailable")
	}
	set.Integrations.Communication.Email.Enabled = true
	if !available(set, cap) {
		t.Error("expected available once every requirement is satisfied")
	}
}

func TestServiceKeyRouting(t *testing.T) {
	cases := []struct {
		cap  capability.Descriptor
		key  string
		want bool
	}{
		{capability.Descriptor{Category: capability.CategoryCalendar}, "calendar", true},
		{capability.Descriptor{Category: capability.CategoryCRM}, "crm", true},
		{capability.Descriptor{Category: capability.CategorySupport}, "support", true},
		{capability.Descriptor{Category: capability.CategoryCommunication, RequiredIntegrations: []string{"communication.slack"}}, "slack", true},
		{capability.Descriptor{Category: capability.CategoryCommunication, RequiredIntegrations: []string{"communication.email"}}, "email", true},
		{capability.Descriptor{ID: "send_slack_message", Category: capability.CategoryCommunication}, "slack", true},
		{capability.Descriptor{ID: "ping", Category: capability.CategoryCommunication}, "", false},
		{capability.Descriptor{Category: "unknown"}, "", false},
	}
	for _, tc := range cases {
		key, ok := serviceKeyFor(tc.cap)
		if ok != tc.want || key != tc.key {
			t.Errorf("serviceKeyFor(%+v) = (%q, %v), want (%q, %v)", tc.cap, key, ok, tc.key, tc.want)
		}
	}
}
