package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
	"github.com/AgentDesk/AgentDesk/internal/notify"
)

// Deps carries everything a persona tool executor needs.
type Deps struct {
	Manager        *integration.Manager
	Identity       identity.Resolver
	Notifier       notify.Sink
	PersonaID      string
	ConversationID string
}

// family identifies one emitted tool. Several capability ids can share a
// family (schedule_meeting and check_availability both live on the calendar
// tool), so materialization deduplicates by family before emitting.
type family string

const (
	familyCalendar family = "calendar"
	familySlack    family = "slack"
	familyEmail    family = "email"
	familyCRM      family = "crm"
	familySupport  family = "support"
)

func familyFor(cap capability.Descriptor) (family, bool) {
	switch cap.Category {
	case capability.CategoryCalendar:
		return familyCalendar, true
	case capability.CategoryCRM:
		return familyCRM, true
	case capability.CategorySupport:
		return familySupport, true
	case capability.CategoryCommunication:
		for _, req := range cap.RequiredIntegrations {
			switch req {
			case "communication.slack":
				return familySlack, true
			case "communication.email":
				return familyEmail, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// PersonaTools materializes the currently available capabilities as callable
// tools, one per family. Availability is recomputed by the manager on every
// call, so the emitted set always reflects the latest configuration.
func PersonaTools(deps Deps) []Tool {
	byFamily := make(map[family][]capability.Descriptor)
	for _, cap := range deps.Manager.AvailableCapabilities() {
		if fam, ok := familyFor(cap); ok {
			byFamily[fam] = append(byFamily[fam], cap)
		}
	}

	var out []Tool
	if caps, ok := byFamily[familyCalendar]; ok {
		out = append(out, newCalendarTool(deps, caps))
	}
	if _, ok := byFamily[familySlack]; ok {
		out = append(out, newSlackTool(deps))
	}
	if _, ok := byFamily[familyEmail]; ok {
		out = append(out, newEmailTool(deps))
	}
	if _, ok := byFamily[familyCRM]; ok {
		out = append(out, newCRMTool(deps))
	}
	if _, ok := byFamily[familySupport]; ok {
		out = append(out, newSupportTool(deps))
	}
	return out
}

// integrationTool is the shared executor behind every persona tool: resolve
// the actor, build the action, route it through the manager, and emit an
// operational notification regardless of outcome.
type integrationTool struct {
	name        string
	description string
	parameters  map[string]any
	deps        Deps
	// actionType derives the capability id from the call parameters.
	actionType func(params map[string]any) string
}

func (t *integrationTool) Name() string               { return t.name }
func (t *integrationTool) Description() string        { return t.description }
func (t *integrationTool) Parameters() map[string]any { return t.parameters }
func (t *integrationTool) Tier() int                  { return TierHighRisk }

func (t *integrationTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	actionType := t.actionType(params)
	if actionType == "" {
		res := integration.Fail(t.name, "missing or unknown operation")
		return marshalResult(res), nil
	}

	actor := t.resolveActor(ctx)

	payload := make(map[string]any, len(params)+2)
	for k, v := range params {
		if k == "operation" {
			continue
		}
		payload[k] = v
	}
	var userID string
	if actor != nil {
		userID = actor.ID
		if actor.Name != "" {
			payload["actor_name"] = actor.Name
		}
		if actor.Email != "" {
			payload["actor_email"] = actor.Email
		}
	}

	res := t.deps.Manager.ExecuteAction(ctx, integration.Action{
		Type:           actionType,
		Payload:        payload,
		PersonaID:      t.deps.PersonaID,
		ConversationID: t.deps.ConversationID,
		UserID:         userID,
	})

	t.emitNotification(ctx, actionType, actor, res)
	return marshalResult(res), nil
}

// resolveActor finds who is acting: the live session actor first, then the
// identity attached to the active conversation, filling a missing email by
// a secondary identity-store lookup keyed by id. Every step is optional;
// an unresolved actor is an expected state.
func (t *integrationTool) resolveActor(ctx context.Context) *identity.Actor {
	if t.deps.Identity == nil {
		return nil
	}
	actor, err := t.deps.Identity.CurrentActor(ctx)
	if err != nil {
		slog.Warn("Actor resolution failed", "error", err)
	}
	if actor == nil && t.deps.ConversationID != "" {
		id, err := t.deps.Identity.ActorForConversation(ctx, t.deps.ConversationID)
		if err != nil {
			slog.Warn("Conversation actor lookup failed", "conversation", t.deps.ConversationID, "error", err)
		}
		if id != "" {
			actor, _ = t.deps.Identity.LookupByID(ctx, id)
			if actor == nil {
				actor = &identity.Actor{ID: id}
			}
		}
	}
	if actor != nil && actor.Email == "" && actor.ID != "" {
		if full, _ := t.deps.Identity.LookupByID(ctx, actor.ID); full != nil {
			if actor.Name == "" {
				actor.Name = full.Name
			}
			actor.Email = full.Email
		}
	}
	return actor
}

// emitNotification reports what was attempted and whether it succeeded.
// Strictly best-effort and non-blocking: sink failures are logged and
// discarded, never surfaced to the tool's caller.
func (t *integrationTool) emitNotification(ctx context.Context, actionType string, actor *identity.Actor, res integration.Result) {
	if t.deps.Notifier == nil {
		return
	}
	severity := notify.SeverityInfo
	message := fmt.Sprintf("Action %s completed", actionType)
	if !res.Success {
		severity = notify.SeverityWarning
		message = fmt.Sprintf("Action %s failed: %s", actionType, res.Error)
	}
	scope := t.deps.PersonaID
	if actor != nil && actor.ID != "" {
		scope = actor.ID
	}
	n := notify.New(scope, "Integration action", message, severity, map[string]any{
		"persona": t.deps.PersonaID,
		"action":  actionType,
		"success": res.Success,
	})

	bg := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Warn("Notification sink panicked", "panic", r)
			}
		}()
		if err := t.deps.Notifier.Notify(bg, n); err != nil {
			slog.Warn("Notification delivery failed", "action", actionType, "error", err)
		}
	}()
}

func marshalResult(res integration.Result) string {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"encode result: %v"}`, err)
	}
	return string(data)
}

// ---------------------------------------------------------------------------
// Per-family tool constructors
// ---------------------------------------------------------------------------

func newCalendarTool(deps Deps, caps []capability.Descriptor) Tool {
	ops := make([]string, 0, len(caps))
	for _, c := range caps {
		ops = append(ops, c.ID)
	}
	sort.Strings(ops)
	return &integrationTool{
		name: "calendar",
		description: "Manage the connected calendar. Operations currently available: " +
			strings.Join(ops, ", "),
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type":        "string",
					"enum":        ops,
					"description": "Calendar operation to perform",
				},
				"title":       map[string]any{"type": "string", "description": "Meeting title"},
				"description": map[string]any{"type": "string", "description": "Meeting description"},
				"start_time":  map[string]any{"type": "string", "description": "Start time, RFC3339"},
				"end_time":    map[string]any{"type": "string", "description": "End time, RFC3339"},
				"timezone":    map[string]any{"type": "string", "description": "IANA time zone, default UTC"},
				"attendees": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Attendee email addresses",
				},
				"duration_minutes": map[string]any{"type": "integer", "description": "Slot length for availability checks, default 30"},
				"video_conference": map[string]any{"type": "boolean", "description": "Request a video conference link"},
				"location":         map[string]any{"type": "string", "description": "Meeting location"},
				"event_id":         map[string]any{"type": "string", "description": "Event id for cancel/update"},
			},
			"required": []string{"operation"},
		},
		deps: deps,
		actionType: func(params map[string]any) string {
			op := GetString(params, "operation", "")
			for _, candidate := range ops {
				if candidate == op {
					return op
				}
			}
			return ""
		},
	}
}

func newSlackTool(deps Deps) Tool {
	return &integrationTool{
		name:        "send_slack_message",
		description: "Post a message to the connected Slack workspace, optionally as a direct message to a user",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":    map[string]any{"type": "string", "description": "Message text"},
				"channel": map[string]any{"type": "string", "description": "Channel override (ignored in webhook mode)"},
				"user_id": map[string]any{"type": "string", "description": "Slack user id for a direct message"},
			},
			"required": []string{"text"},
		},
		deps:       deps,
		actionType: func(map[string]any) string { return "send_slack_message" },
	}
}

func newEmailTool(deps Deps) Tool {
	return &integrationTool{
		name:        "send_email",
		description: "Send an email through the configured outbound mail account",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "description": "Recipient email address"},
				"subject": map[string]any{"type": "string", "description": "Email subject"},
				"body":    map[string]any{"type": "string", "description": "Email body text"},
			},
			"required": []string{"to", "subject", "body"},
		},
		deps:       deps,
		actionType: func(map[string]any) string { return "send_email" },
	}
}

func newCRMTool(deps Deps) Tool {
	return &integrationTool{
		name:        "create_lead",
		description: "Create a new lead/contact in the connected CRM",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    map[string]any{"type": "string", "description": "Lead full name"},
				"email":   map[string]any{"type": "string", "description": "Lead email address"},
				"company": map[string]any{"type": "string", "description": "Company name"},
				"notes":   map[string]any{"type": "string", "description": "Context notes"},
			},
			"required": []string{"name"},
		},
		deps:       deps,
		actionType: func(map[string]any) string { return "create_lead" },
	}
}

func newSupportTool(deps Deps) Tool {
	return &integrationTool{
		name:        "create_ticket",
		description: "Open a ticket in the connected support desk",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":       map[string]any{"type": "string", "description": "Ticket title"},
				"description": map[string]any{"type": "string", "description": "Problem description"},
				"priority":    map[string]any{"type": "string", "enum": []string{"low", "normal", "high", "urgent"}},
				"category":    map[string]any{"type": "string", "description": "Ticket category tag"},
				"assignee":    map[string]any{"type": "string", "description": "Assignee email"},
			},
			"required": []string{"title", "description"},
		},
		deps:       deps,
		actionType: func(map[string]any) string { return "create_ticket" },
	}
}
