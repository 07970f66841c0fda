package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

const calComAPIBase = "https://api.cal.com/v1"

// CalComService is the Cal.com API-key variant. Like Calendly, booking goes
// through the account's public booking page.
type CalComService struct {
	cfg     config.CalendarConfig
	client  *http.Client
	apiBase string
}

// NewCalComService builds the Cal.com provider.
func NewCalComService(cfg config.CalendarConfig) *CalComService {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = calComAPIBase
	}
	return &CalComService{
		cfg:     cfg,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: apiBase,
	}
}

func (s *CalComService) Name() string  { return "cal_com" }
func (s *CalComService) Enabled() bool { return s.cfg.Active() }

// Validate checks the API key is present then confirms connectivity.
func (s *CalComService) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return false
	}
	return s.Test(ctx).Success
}

func (s *CalComService) get(ctx context.Context, path string) (int, []byte, error) {
	u := s.apiBase + path
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	u += sep + "apiKey=" + url.QueryEscape(s.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// Test fetches the authenticated account as an idempotent probe.
func (s *CalComService) Test(ctx context.Context) integration.Result {
	status, body, err := s.get(ctx, "/me")
	if err != nil {
		return integration.Fail(s.Name(), "cal.com connectivity test failed: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(s.Name(), "cal.com API status %d: %s", status, truncate(string(body), 200))
	}
	return integration.Ok(map[string]any{"message": "Cal.com connection healthy"})
}

// Execute handles the calendar action family via the Cal.com booking page.
func (s *CalComService) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "schedule_meeting", "check_availability":
		status, body, err := s.get(ctx, "/me")
		if err != nil {
			return integration.Fail(s.Name(), "cal.com lookup failed: %v", err)
		}
		if status < 200 || status >= 300 {
			return integration.Fail(s.Name(), "cal.com API status %d: %s", status, truncate(string(body), 200))
		}
		var me struct {
			User struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		if err := json.Unmarshal(body, &me); err != nil {
			return integration.Fail(s.Name(), "decode cal.com account: %v", err)
		}
		return integration.Ok(map[string]any{
			"booking_url": fmt.Sprintf("https://cal.com/%s", me.User.Username),
			"message":     "Share this Cal.com link to book time; availability is managed by Cal.com",
		})
	case "cancel_meeting", "update_meeting":
		return integration.Fail(s.Name(), "meetings booked through Cal.com must be changed via the booking page")
	default:
		return integration.Fail(s.Name(), "unsupported calendar action: %s", action.Type)
	}
}
