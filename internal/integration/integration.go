// Package integration contains the capability-gated orchestration engine:
// the uniform provider contract, the per-persona manager that decides which
// capabilities are currently invocable, and the routing of action requests
// to provider services.
package integration

import (
	"context"
	"fmt"
	"time"
)

// Action is one request unit routed through the manager. Type maps 1:1 to a
// capability id; Payload carries the provider-specific arguments.
type Action struct {
	Type           string         `json:"type"`
	Payload        map[string]any `json:"payload"`
	PersonaID      string         `json:"personaId"`
	ConversationID string         `json:"conversationId,omitempty"`
	UserID         string         `json:"userId,omitempty"`
}

// Result is the uniform outcome shape for every integration action. Expected
// failures (disabled capability, missing integration, provider error) are
// represented here, never as errors crossing the manager boundary.
type Result struct {
	Success  bool           `json:"success"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ok builds a success result.
func Ok(data map[string]any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failure result tagged with the provider name and timestamp.
func Fail(provider, format string, args ...any) Result {
	return Result{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
		Metadata: map[string]any{
			"provider":  provider,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Service is the uniform contract every provider integration implements.
type Service interface {
	// Name returns the provider name used in logs and result metadata.
	Name() string
	// Execute dispatches an action by type. Unknown sub-types return a
	// failure result, not an error.
	Execute(ctx context.Context, action Action) Result
	// Validate cheaply checks that minimum required config is present,
	// then confirms connectivity with a live Test.
	Validate(ctx context.Context) bool
	// Test makes a minimal live call to surface the most common
	// misconfiguration as a descriptive error.
	Test(ctx context.Context) Result
	// Enabled reports config.enabled && status active.
	Enabled() bool
}

// RateLimiter is consulted before every external provider call. The default
// limiter always allows; the hook exists so limits can be tightened without
// touching call sites.
type RateLimiter interface {
	Allow(provider string) bool
}

// noopLimiter allows everything.
type noopLimiter struct{}

func (noopLimiter) Allow(string) bool { return true }

// AuditEntry records one executed (or rejected) action for the audit trail.
type AuditEntry struct {
	PersonaID  string    `json:"personaId"`
	Provider   string    `json:"provider"`
	ActionType string    `json:"actionType"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditLogger receives audit entries. Implementations must be cheap; the
// manager calls Record synchronously on every action.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}
