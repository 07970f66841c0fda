package integration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/AgentDesk/AgentDesk/internal/capability"
	"github.com/AgentDesk/AgentDesk/internal/config"
)

// Manager orchestrates integrations for one persona. It holds a
// request-scoped view of the persona's integration set, computes which
// capabilities are currently satisfiable, and routes actions to registered
// provider services.
//
// The manager never constructs provider services itself; wiring (which
// needs secrets and tokens from storage) registers them via RegisterService.
type Manager struct {
	set          *config.PersonaIntegrationSet
	capabilities []capability.Descriptor

	mu       sync.RWMutex
	services map[string]Service

	limiter RateLimiter
	audit   AuditLogger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithRateLimiter replaces the default allow-all limiter.
func WithRateLimiter(l RateLimiter) ManagerOption {
	return func(m *Manager) { m.limiter = l }
}

// WithAuditLogger attaches an audit sink for executed actions.
func WithAuditLogger(a AuditLogger) ManagerOption {
	return func(m *Manager) { m.audit = a }
}

// NewManager builds a manager for one persona. Construction never makes
// network calls and never fails on incomplete provider config; incomplete
// providers simply stay unregistered.
func NewManager(set *config.PersonaIntegrationSet, caps []capability.Descriptor, opts ...ManagerOption) *Manager {
	if caps == nil {
		caps = set.CapabilitySet()
	}
	m := &Manager{
		set:          set,
		capabilities: caps,
		services:     make(map[string]Service),
		limiter:      noopLimiter{},
	}
	for _, opt := range opts {
		opt(m)
	}
	slog.Info("Integration manager initialized",
		"persona", set.Persona.ID,
		"capabilities", len(caps))
	return m
}

// RegisterService registers a provider service under a routing key
// ("calendar", "slack", "email", "crm", "support").
func (m *Manager) RegisterService(key string, svc Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[key] = svc
	slog.Info("Integration service registered", "key", key, "provider", svc.Name())
}

// Service returns the registered service for a routing key.
func (m *Manager) Service(key string) (Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.services[key]
	return svc, ok
}

// AvailableCapabilities returns the persona's capabilities filtered by the
// availability invariant. The result is recomputed on every call: it is
// cheap pure computation and caching it across requests risks granting a
// now-revoked capability.
func (m *Manager) AvailableCapabilities() []capability.Descriptor {
	out := make([]capability.Descriptor, 0, len(m.capabilities))
	for _, cap := range m.capabilities {
		if available(m.set, cap) {
			out = append(out, cap)
		}
	}
	return out
}

// serviceKeyFor maps a capability to its routing key. Communication routes
// by sub-kind: capability ids in that category declare their channel in the
// required integration path, so the path is authoritative, with the id as a
// fallback for persisted legacy descriptors.
func serviceKeyFor(cap capability.Descriptor) (string, bool) {
	switch cap.Category {
	case capability.CategoryCalendar:
		return "calendar", true
	case capability.CategoryCRM:
		return "crm", true
	case capability.CategorySupport:
		return "support", true
	case capability.CategoryCommunication:
		for _, req := range cap.RequiredIntegrations {
			switch req {
			case "communication.slack":
				return "slack", true
			case "communication.email":
				return "email", true
			}
		}
		if strings.Contains(cap.ID, "slack") {
			return "slack", true
		}
		if strings.Contains(cap.ID, "email") {
			return "email", true
		}
		return "", false
	default:
		return "", false
	}
}

// ExecuteAction routes an action to the provider service backing its
// capability. Configuration problems (unknown type, disabled capability,
// unregistered or disabled service) are detected before any network call
// and returned as failure results; provider errors and panics are converted
// to the same shape.
func (m *Manager) ExecuteAction(ctx context.Context, action Action) Result {
	cap, ok := capability.Find(m.capabilities, action.Type)
	if !ok {
		return m.recorded(ctx, action, "manager",
			Fail("manager", "unknown action type: %s", action.Type))
	}
	if !available(m.set, cap) {
		if !cap.Enabled {
			return m.recorded(ctx, action, "manager",
				Fail("manager", "capability %s is disabled for this persona", cap.ID))
		}
		return m.recorded(ctx, action, "manager",
			Fail("manager", "capability %s requires an integration that is not connected", cap.ID))
	}

	key, ok := serviceKeyFor(cap)
	if !ok {
		return m.recorded(ctx, action, "manager",
			Fail("manager", "no provider route for capability %s", cap.ID))
	}
	svc, ok := m.Service(key)
	if !ok {
		return m.recorded(ctx, action, key,
			Fail(key, "no %s service is registered for this persona", key))
	}
	if !svc.Enabled() {
		return m.recorded(ctx, action, svc.Name(),
			Fail(svc.Name(), "%s integration is not enabled", key))
	}
	if !m.limiter.Allow(key) {
		return m.recorded(ctx, action, svc.Name(),
			Fail(svc.Name(), "rate limit exceeded for %s", key))
	}

	res := m.safeExecute(ctx, svc, action)
	return m.recorded(ctx, action, svc.Name(), res)
}

// safeExecute runs the provider call, converting panics into failure results
// so the agent loop is never exposed to a raw crash from provider code.
func (m *Manager) safeExecute(ctx context.Context, svc Service, action Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Provider panicked", "provider", svc.Name(), "action", action.Type, "panic", r)
			res = Fail(svc.Name(), "internal provider error: %v", r)
		}
	}()
	return svc.Execute(ctx, action)
}

// TestAll fans out Test to every registered provider service and collects
// every result, keyed by routing key. Failures do not short-circuit: partial
// results are meaningful to the caller.
func (m *Manager) TestAll(ctx context.Context) map[string]Result {
	m.mu.RLock()
	keys := make([]string, 0, len(m.services))
	svcs := make([]Service, 0, len(m.services))
	for k, s := range m.services {
		keys = append(keys, k)
		svcs = append(svcs, s)
	}
	m.mu.RUnlock()

	results := make([]Result, len(svcs))
	var wg sync.WaitGroup
	for i, svc := range svcs {
		wg.Add(1)
		go func(i int, svc Service) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = Fail(svc.Name(), "internal provider error: %v", r)
				}
			}()
			results[i] = svc.Test(ctx)
		}(i, svc)
	}
	wg.Wait()

	out := make(map[string]Result, len(keys))
	for i, k := range keys {
		out[k] = results[i]
	}
	return out
}

func (m *Manager) recorded(ctx context.Context, action Action, provider string, res Result) Result {
	if res.Success {
		slog.Info("Integration action executed", "persona", m.set.Persona.ID,
			"action", action.Type, "provider", provider)
	} else {
		slog.Warn("Integration action failed", "persona", m.set.Persona.ID,
			"action", action.Type, "provider", provider, "error", res.Error)
	}
	if m.audit != nil {
		m.audit.Record(ctx, AuditEntry{
			PersonaID:  m.set.Persona.ID,
			Provider:   provider,
			ActionType: action.Type,
			Success:    res.Success,
			Error:      res.Error,
			Timestamp:  time.Now().UTC(),
		})
	}
	return res
}

// String implements fmt.Stringer for debug logging.
func (m *Manager) String() string {
	return fmt.Sprintf("integration.Manager(persona=%s, services=%d)", m.set.Persona.ID, len(m.services))
}
