package integration

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/config"
)

type fakeService struct {
	name     string
	enabled  bool
	executed int64
	result   Result
	testFn   func(ctx context.Context) Result
}

func (f *fakeService) Name() string { return f.name }
func (f *fakeService) Execute(ctx context.Context, action Action) Result {
	atomic.AddInt64(&f.executed, 1)
	return f.result
}
func (f *fakeService) Validate(ctx context.Context) bool { return f.enabled }
func (f *fakeService) Test(ctx context.Context) Result {
	if f.testFn != nil {
		return f.testFn(ctx)
	}
	return Ok(nil)
}
func (f *fakeService) Enabled() bool { return f.enabled }

func testSet(mutate func(*config.PersonaIntegrationSet)) *config.PersonaIntegrationSet {
	set := &config.PersonaIntegrationSet{
		Persona: config.PersonaConfig{ID: "p1", Name: "Test Persona"},
	}
	if mutate != nil {
		mutate(set)
	}
	return set
}

func TestExecuteActionUnknownType(t *testing.T) {
	m := NewManager(testSet(nil), nil)
	res := m.ExecuteAction(context.Background(), Action{Type: "launch_rocket"})
	if res.Success {
		t.Fatal("expected failure for unknown action type")
	}
	if res.Error == "" {
		t.Error("expected descriptive error")
	}
}

func TestExecuteActionDisabledCapability(t *testing.T) {
	caps := capability.Defaults()
	for i := range caps {
		if caps[i].ID == "create_lead" {
			caps[i].Enabled = false
		}
	}
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	m := NewManager(set, caps)
	svc := &fakeService{name: "crm", enabled: true, result: Ok(nil)}
	m.RegisterService("crm", svc)

	res := m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	if res.Success {
		t.Fatal("expected failure for disabled capability")
	}
	if atomic.LoadInt64(&svc.executed) != 0 {
		t.Error("provider must not be called for a disabled capability")
	}
}

func TestExecuteActionNoServiceRegistered(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	m := NewManager(set, nil)
	res := m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	if res.Success {
		t.Fatal("expected failure when no service is registered")
	}
}

func TestExecuteActionDisabledService(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	m := NewManager(set, nil)
	svc := &fakeService{name: "crm", enabled: false}
	m.RegisterService("crm", svc)

	res := m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	if res.Success {
		t.Fatal("expected failure for disabled service")
	}
	if atomic.LoadInt64(&svc.executed) != 0 {
		t.Error("disabled provider must not be called")
	}
}

func TestExecuteActionRoutesCommunicationBySubKind(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.Communication.Slack.Enabled = true
		s.Integrations.Communication.Email.Enabled = true
	})
	m := NewManager(set, nil)
	slack := &fakeService{name: "slack", enabled: true, result: Ok(map[string]any{"via": "slack"})}
	email := &fakeService{name: "email", enabled: true, result: Ok(map[string]any{"via": "email"})}
	m.RegisterService("slack", slack)
	m.RegisterService("email", email)

	if res := m.ExecuteAction(context.Background(), Action{Type: "send_slack_message", Payload: map[string]any{"text": "hi"}}); !res.Success {
		t.Fatalf("slack action failed: %s", res.Error)
	}
	if res := m.ExecuteAction(context.Background(), Action{Type: "send_email", Payload: map[string]any{}}); !res.Success {
		t.Fatalf("email action failed: %s", res.Error)
	}
	if atomic.LoadInt64(&slack.executed) != 1 || atomic.LoadInt64(&email.executed) != 1 {
		t.Errorf("expected each provider called once, got slack=%d email=%d", slack.executed, email.executed)
	}
}

func TestExecuteActionRecoversPanic(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	m := NewManager(set, nil)
	m.RegisterService("crm", panicService{})

	res := m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	if res.Success {
		t.Fatal("expected failure result from panicking provider")
	}
}

type panicService struct{}

func (panicService) Name() string                           { return "crm" }
func (panicService) Execute(context.Context, Action) Result { panic("boom") }
func (panicService) Validate(context.Context) bool          { return true }
func (panicService) Test(context.Context) Result            { panic("boom") }
func (panicService) Enabled() bool                           { return true }

func TestTestAllCollectsEveryResult(t *testing.T) {
	m := NewManager(testSet(nil), nil)
	m.RegisterService("crm", &fakeService{name: "crm", enabled: true, testFn: func(context.Context) Result {
		return Fail("crm", "bad key")
	}})
	m.RegisterService("slack", &fakeService{name: "slack", enabled: true})
	m.RegisterService("support", panicService{})

	results := m.TestAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results["crm"].Success {
		t.Error("crm test should have failed")
	}
	if !results["slack"].Success {
		t.Error("slack test should have succeeded")
	}
	if results["support"].Success {
		t.Error("panicking provider should report failure, not crash the fan-out")
	}
}

func TestAvailableCapabilitiesIdempotent(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.Calendar.Enabled = true
		s.Integrations.Communication.Slack.Enabled = true
	})
	m := NewManager(set, nil)

	first := m.AvailableCapabilities()
	second := m.AvailableCapabilities()
	if !reflect.DeepEqual(first, second) {
		t.Error("AvailableCapabilities must be idempotent with unchanged config")
	}
}

type denyLimiter struct{ denied []string }

func (d *denyLimiter) Allow(key string) bool {
	d.denied = append(d.denied, key)
	return false
}

func TestExecuteActionRateLimited(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	limiter := &denyLimiter{}
	m := NewManager(set, nil, WithRateLimiter(limiter))
	svc := &fakeService{name: "crm", enabled: true, result: Ok(nil)}
	m.RegisterService("crm", svc)

	res := m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	if res.Success {
		t.Fatal("rate-limited action must fail")
	}
	if atomic.LoadInt64(&svc.executed) != 0 {
		t.Error("rate limiting must reject before the provider is called")
	}
	if len(limiter.denied) != 1 || limiter.denied[0] != "crm" {
		t.Errorf("limiter must be consulted with the routing key, got %v", limiter.denied)
	}
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *memoryAudit) Record(ctx context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func TestExecuteActionAuditsOutcome(t *testing.T) {
	set := testSet(func(s *config.PersonaIntegrationSet) {
		s.Integrations.CRM.Enabled = true
	})
	audit := &memoryAudit{}
	m := NewManager(set, nil, WithAuditLogger(audit))
	m.RegisterService("crm", &fakeService{name: "crm", enabled: true, result: Ok(nil)})

	m.ExecuteAction(context.Background(), Action{Type: "create_lead"})
	m.ExecuteAction(context.Background(), Action{Type: "launch_rocket"})

	if len(audit.entries) != 2 {
		t.Fatalf("every attempt is audited, success or not; got %d entries", len(audit.entries))
	}
	if !audit.entries[0].Success || audit.entries[0].ActionType != "create_lead" {
		t.Errorf("first entry wrong: %+v", audit.entries[0])
	}
	if audit.entries[1].Success || audit.entries[1].PersonaID != "p1" {
		t.Errorf("second entry wrong: %+v", audit.entries[1])
	}
}

func TestFailResultCarriesProviderAndTimestamp(t *testing.T) {
	res := Fail("google_calendar", "status %d", 503)
	if res.Success {
		t.Fatal("Fail must produce a failure")
	}
	if res.Metadata["provider"] != "google_calendar" {
		t.Errorf("missing provider metadata: %+v", res.Metadata)
	}
	if res.Metadata["timestamp"] == "" {
		t.Error("missing timestamp metadata")
	}
}
