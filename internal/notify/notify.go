// Package notify delivers operational notifications about integration
// actions. Delivery is fire-and-forget: tool executors emit notifications
// best-effort and a sink failure must never affect the action's outcome.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Severity levels for notifications.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notification describes one attempted integration action and its outcome.
type Notification struct {
	ID           string         `json:"id"`
	ActorScopeID string         `json:"actorScopeId"`
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Severity     string         `json:"severity"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// New builds a notification with a fresh id and timestamp.
func New(actorScopeID, title, message, severity string, metadata map[string]any) Notification {
	return Notification{
		ID:           uuid.NewString(),
		ActorScopeID: actorScopeID,
		Title:        title,
		Message:      message,
		Severity:     severity,
		Metadata:     metadata,
		CreatedAt:    time.Now().UTC(),
	}
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the process log. Default for single-node
// runs without a broker.
type LogSink struct{}

func (LogSink) Notify(ctx context.Context, n Notification) error {
	slog.Info("Notification", "title", n.Title, "severity", n.Severity,
		"scope", n.ActorScopeID, "message", n.Message)
	return nil
}
