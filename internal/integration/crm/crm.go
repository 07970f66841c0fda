// Package crm implements the CRM (lead creation) and support-desk (ticket
// creation) providers. Neither carries algorithmic complexity beyond the
// shared provider contract; both are straightforward REST field mappings.
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

const crmAPIBase = "https://api.hubapi.com"

// LeadService creates leads/contacts in a HubSpot-style CRM.
type LeadService struct {
	cfg     config.CRMConfig
	client  *http.Client
	apiBase string
}

// NewLeadService builds the CRM provider.
func NewLeadService(cfg config.CRMConfig) *LeadService {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = crmAPIBase
	}
	return &LeadService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 20 * time.Second},
		apiBase: apiBase,
	}
}

func (s *LeadService) Name() string  { return "crm" }
func (s *LeadService) Enabled() bool { return s.cfg.Active() }

// Validate checks the API key then confirms connectivity.
func (s *LeadService) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return false
	}
	return s.Test(ctx).Success
}

// Test lists one contact as an idempotent connectivity probe.
func (s *LeadService) Test(ctx context.Context) integration.Result {
	status, body, err := s.do(ctx, http.MethodGet, "/crm/v3/objects/contacts?limit=1", nil)
	if err != nil {
		return integration.Fail(s.Name(), "crm connectivity test failed: %v", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return integration.Fail(s.Name(), "crm rejected the API key (status %d); check the key and its scopes", status)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(s.Name(), "crm API returned status %d: %s", status, snippet(body))
	}
	return integration.Ok(map[string]any{"message": "CRM connection healthy"})
}

// Execute dispatches CRM actions.
func (s *LeadService) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "create_lead":
		return s.createLead(ctx, action.Payload)
	default:
		return integration.Fail(s.Name(), "unsupported crm action: %s", action.Type)
	}
}

func (s *LeadService) createLead(ctx context.Context, payload map[string]any) integration.Result {
	name := stringField(payload, "name")
	email := stringField(payload, "email")
	if name == "" && email == "" {
		return integration.Fail(s.Name(), "create_lead requires at least a name or an email")
	}
	first, last := splitName(name)
	props := map[string]any{
		"firstname": first,
		"lastname":  last,
		"email":     email,
	}
	if company := stringField(payload, "company"); company != "" {
		props["company"] = company
	}
	if notes := stringField(payload, "notes"); notes != "" {
		props["hs_content_membership_notes"] = notes
	}

	status, body, err := s.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", map[string]any{"properties": props})
	if err != nil {
		return integration.Fail(s.Name(), "create lead: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(s.Name(), "create lead: status %d: %s", status, snippet(body))
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return integration.Fail(s.Name(), "decode created lead: %v", err)
	}
	return integration.Ok(map[string]any{
		"lead_id": created.ID,
		"message": fmt.Sprintf("Lead created for %s", firstNonEmpty(name, email)),
	})
}

func (s *LeadService) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
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
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
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

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
