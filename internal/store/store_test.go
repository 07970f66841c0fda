package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "agentdesk.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPersonaRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1", Name: "Morgan", Role: "assistant"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{
				Enabled:  true,
				Provider: config.ProviderGoogleCalendar,
			},
			CRM: config.CRMConfig{Enabled: true, APIKey: "k"},
		},
	}
	if err := st.SavePersona(ctx, set); err != nil {
		t.Fatalf("save persona: %v", err)
	}

	loaded, err := st.LoadPersona(ctx, "p1")
	if err != nil {
		t.Fatalf("load persona: %v", err)
	}
	if loaded.Persona.Name != "Morgan" || !loaded.Integrations.Calendar.Enabled || loaded.Integrations.CRM.APIKey != "k" {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

func TestPersonaUpsert(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	set := &config.PersonaIntegrationSet{Persona: config.PersonaConfig{ID: "p1", Name: "v1"}}
	st.SavePersona(ctx, set)
	set.Persona.Name = "v2"
	if err := st.SavePersona(ctx, set); err != nil {
		t.Fatalf("second save must upsert: %v", err)
	}
	loaded, err := st.LoadPersona(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Persona.Name != "v2" {
		t.Errorf("expected updated persona, got %q", loaded.Persona.Name)
	}
}

func TestLoadPersonaNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.LoadPersona(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistedTokensOverrideConfigSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{
				Enabled:      true,
				Provider:     config.ProviderGoogleCalendar,
				AccessToken:  "stale-access",
				RefreshToken: "stale-refresh",
			},
		},
	}
	st.SavePersona(ctx, set)
	if err := st.SaveTokens(ctx, "p1", string(config.ProviderGoogleCalendar), "fresh-access", "fresh-refresh"); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	loaded, err := st.LoadPersona(ctx, "p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Integrations.Calendar.AccessToken != "fresh-access" || loaded.Integrations.Calendar.RefreshToken != "fresh-refresh" {
		t.Errorf("persisted tokens must win over the config snapshot, got %+v", loaded.Integrations.Calendar)
	}
}

func TestSaveTokensUpsertsPerProvider(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	st.SaveTokens(ctx, "p1", "google_calendar", "a1", "r1")
	if err := st.SaveTokens(ctx, "p1", "google_calendar", "a2", "r2"); err != nil {
		t.Fatalf("token upsert: %v", err)
	}

	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1"},
		Integrations: config.IntegrationsConfig{
			Calendar: config.CalendarConfig{Provider: config.ProviderGoogleCalendar},
		},
	}
	st.SavePersona(ctx, set)
	loaded, _ := st.LoadPersona(ctx, "p1")
	if loaded.Integrations.Calendar.AccessToken != "a2" {
		t.Errorf("expected the latest pair, got %q", loaded.Integrations.Calendar.AccessToken)
	}
}

func TestAuditRecordAndRecent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	st.Record(ctx, integration.AuditEntry{
		PersonaID: "p1", Provider: "crm", ActionType: "create_lead",
		Success: true, Timestamp: base,
	})
	st.Record(ctx, integration.AuditEntry{
		PersonaID: "p1", Provider: "slack", ActionType: "send_slack_message",
		Success: false, Error: "webhook dead", Timestamp: base.Add(time.Second),
	})
	st.Record(ctx, integration.AuditEntry{
		PersonaID: "other", Provider: "crm", ActionType: "create_lead",
		Success: true, Timestamp: base,
	})

	entries, err := st.RecentAudit(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("recent audit: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for p1, got %d", len(entries))
	}
	// Newest first.
	if entries[0].ActionType != "send_slack_message" || entries[0].Success {
		t.Errorf("ordering or fields wrong: %+v", entries[0])
	}
	if entries[0].Error != "webhook dead" {
		t.Errorf("error text lost: %+v", entries[0])
	}
	if !entries[1].Timestamp.Equal(base) {
		t.Errorf("timestamp round trip lost precision: %v != %v", entries[1].Timestamp, base)
	}
}

func TestRecentAuditLimitDefault(t *testing.T) {
	st := openTestStore(t)
	entries, err := st.RecentAudit(context.Background(), "p1", 0)
	if err != nil {
		t.Fatalf("recent audit: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty result, got %d", len(entries))
	}
}

func TestActorDirectory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	actor := identity.Actor{ID: "u1", Name: "Ada", Email: "ada@example.com"}
	if err := st.SaveActor(ctx, actor); err != nil {
		t.Fatalf("save actor: %v", err)
	}

	got, err := st.LookupByID(ctx, "u1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got == nil || got.Email != "ada@example.com" {
		t.Errorf("lookup mismatch: %+v", got)
	}

	if got, err := st.LookupByID(ctx, "ghost"); err != nil || got != nil {
		t.Errorf("unknown actor must be (nil, nil), got (%+v, %v)", got, err)
	}

	if got, err := st.CurrentActor(ctx); err != nil || got != nil {
		t.Errorf("store has no live session; CurrentActor must be (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestConversationBinding(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.BindConversation(ctx, "c1", "u1"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := st.BindConversation(ctx, "c1", "u2"); err != nil {
		t.Fatalf("rebind must upsert: %v", err)
	}

	id, err := st.ActorForConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("lookup binding: %v", err)
	}
	if id != "u2" {
		t.Errorf("expected latest binding u2, got %q", id)
	}

	if id, err := st.ActorForConversation(ctx, "ghost"); err != nil || id != "" {
		t.Errorf("unbound conversation must be (\"\", nil), got (%q, %v)", id, err)
	}
}

func TestStoreSatisfiesContracts(t *testing.T) {
	var _ identity.Resolver = (*Store)(nil)
	var _ integration.AuditLogger = (*Store)(nil)
}
