package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

// TicketService opens tickets in a Zendesk-style support desk.
type TicketService struct {
	cfg     config.SupportConfig
	client  *http.Client
	apiBase string
}

// NewTicketService builds the support provider.
func NewTicketService(cfg config.SupportConfig) *TicketService {
	return &TicketService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 20 * time.Second},
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
	}
}

func (s *TicketService) Name() string  { return "support" }
func (s *TicketService) Enabled() bool { return s.cfg.Active() }

// Validate checks the credentials then confirms connectivity.
func (s *TicketService) Validate(ctx context.Context) bool {
	if s.apiBase == "" || strings.TrimSpace(s.cfg.APIToken) == "" {
		return false
	}
	return s.Test(ctx).Success
}

// Test lists one ticket as an idempotent connectivity probe.
func (s *TicketService) Test(ctx context.Context) integration.Result {
	if s.apiBase == "" {
		return integration.Fail(s.Name(), "support desk is not configured: missing API base URL")
	}
	status, body, err := s.do(ctx, http.MethodGet, "/api/v2/tickets.json?page[size]=1", nil)
	if err != nil {
		return integration.Fail(s.Name(), "support connectivity test failed: %v", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return integration.Fail(s.Name(), "support desk rejected the API token (status %d)", status)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(s.Name(), "support API returned status %d: %s", status, snippet(body))
	}
	return integration.Ok(map[string]any{"message": "Support desk connection healthy"})
}

// Execute dispatches support actions.
func (s *TicketService) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "create_ticket":
		return s.createTicket(ctx, action.Payload)
	default:
		return integration.Fail(s.Name(), "unsupported support action: %s", action.Type)
	}
}

func (s *TicketService) createTicket(ctx context.Context, payload map[string]any) integration.Result {
	title := stringField(payload, "title")
	description := stringField(payload, "description")
	if title == "" || description == "" {
		return integration.Fail(s.Name(), "create_ticket requires title and description")
	}
	ticket := map[string]any{
		"subject": title,
		"comment": map[string]any{"body": description},
	}
	if priority := stringField(payload, "priority"); priority != "" {
		ticket["priority"] = priority
	}
	if category := stringField(payload, "category"); category != "" {
		ticket["tags"] = []string{category}
	}
	if assignee := stringField(payload, "assignee"); assignee != "" {
		ticket["assignee_email"] = assignee
	}

	status, body, err := s.do(ctx, http.MethodPost, "/api/v2/tickets.json", map[string]any{"ticket": ticket})
	if err != nil {
		return integration.Fail(s.Name(), "create ticket: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(s.Name(), "create ticket: status %d: %s", status, snippet(body))
	}
	var created struct {
		Ticket struct {
			ID int64 `json:"id"`
		} `json:"ticket"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return integration.Fail(s.Name(), "decode created ticket: %v", err)
	}
	return integration.Ok(map[string]any{
		"ticket_id": created.Ticket.ID,
		"message":   fmt.Sprintf("Ticket #%d created: %s", created.Ticket.ID, title),
	})
}

func (s *TicketService) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.apiBase+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(s.cfg.Email+"/token", s.cfg.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}
