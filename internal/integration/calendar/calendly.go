package calendar

import (
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

const calendlyAPIBase = "https://api.calendly.com"

// CalendlyService is the API-key calendar variant: bookings happen through
// the account's scheduling link rather than direct event creation, so
// scheduling actions surface that link instead of mutating a calendar.
type CalendlyService struct {
	cfg     config.CalendarConfig
	client  *http.Client
	apiBase string
}

// NewCalendlyService builds the Calendly provider.
func NewCalendlyService(cfg config.CalendarConfig) *CalendlyService {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = calendlyAPIBase
	}
	return &CalendlyService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: apiBase,
	}
}

func (s *CalendlyService) Name() string  { return "calendly" }
func (s *CalendlyService) Enabled() bool { return s.cfg.Active() }

// Validate checks the API key is present then confirms connectivity.
func (s *CalendlyService) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return false
	}
	return s.Test(ctx).Success
}

type calendlyUser struct {
	Resource struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		SchedulingURL string `json:"scheduling_url"`
	} `json:"resource"`
}

func (s *CalendlyService) currentUser(ctx context.Context) (*calendlyUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/users/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("calendly API status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var user calendlyUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode calendly user: %w", err)
	}
	return &user, nil
}

// Test fetches the authenticated user as an idempotent connectivity probe.
func (s *CalendlyService) Test(ctx context.Context) integration.Result {
	user, err := s.currentUser(ctx)
	if err != nil {
		return integration.Fail(s.Name(), "calendly connectivity test failed: %v", err)
	}
	return integration.Ok(map[string]any{
		"message":        "Calendly connection healthy",
		"account":        user.Resource.Email,
		"scheduling_url": user.Resource.SchedulingURL,
	})
}

// Execute handles the calendar action family. Calendly manages availability
// and booking itself, so scheduling resolves to the account's booking link.
func (s *CalendlyService) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "schedule_meeting", "check_availability":
		user, err := s.currentUser(ctx)
		if err != nil {
			return integration.Fail(s.Name(), "calendly lookup failed: %v", err)
		}
		return integration.Ok(map[string]any{
			"booking_url": user.Resource.SchedulingURL,
			"message":     "Share this Calendly link to book time; availability is managed by Calendly",
		})
	case "cancel_meeting", "update_meeting":
		return integration.Fail(s.Name(), "meetings booked through Calendly must be changed via the Calendly link")
	default:
		return integration.Fail(s.Name(), "unsupported calendar action: %s", action.Type)
	}
}
