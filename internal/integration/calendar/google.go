// Package calendar implements the calendar provider integrations: Google
// Calendar over its REST API with OAuth token lifecycle management, plus
// API-key based Calendly and Cal.com variants behind the same contract.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

const (
	defaultAPIBase  = "https://www.googleapis.com/calendar/v3"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	// ReservedCalendarName is the display name of the dedicated calendar
	// provisioned for events created by this system.
	ReservedCalendarName = "AgentDesk Meetings"

	providerName = "google_calendar"
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// GoogleService executes calendar actions against the Google Calendar API.
type GoogleService struct {
	cfg       config.CalendarConfig
	personaID string
	tokens    TokenStore
	client    *http.Client
	apiBase   string
	tokenURL  string
	token     *tokenState
}

// NewGoogleService builds the Google calendar provider. tokens may be nil;
// refreshed pairs are then kept in memory only.
func NewGoogleService(cfg config.CalendarConfig, personaID string, tokens TokenStore) *GoogleService {
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &GoogleService{
		cfg:       cfg,
		personaID: personaID,
		tokens:    tokens,
		client:    &http.Client{Timeout: 30 * time.Second},
		apiBase:   apiBase,
		tokenURL:  tokenURL,
		token:     newTokenState(cfg.AccessToken, cfg.RefreshToken),
	}
}

func (s *GoogleService) Name() string { return providerName }

// Enabled reports config.enabled && status active.
func (s *GoogleService) Enabled() bool { return s.cfg.Active() }

// Validate checks minimum config then confirms connectivity.
func (s *GoogleService) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.AccessToken) == "" && strings.TrimSpace(s.cfg.RefreshToken) == "" {
		return false
	}
	return s.Test(ctx).Success
}

// Test lists the calendar collection as a minimal side-effect-free probe.
func (s *GoogleService) Test(ctx context.Context) integration.Result {
	status, body, err := s.call(ctx, http.MethodGet, "/users/me/calendarList", url.Values{"maxResults": {"1"}}, nil)
	if err != nil {
		return integration.Fail(providerName, "calendar connectivity test failed: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "calendar API returned status %d: %s", status, truncate(string(body), 200))
	}
	return integration.Ok(map[string]any{"message": "Google Calendar connection healthy"})
}

// Execute dispatches an action by type. Unknown sub-types return a failure
// result, not an error.
func (s *GoogleService) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "schedule_meeting":
		return s.scheduleMeeting(ctx, action.Payload)
	case "check_availability":
		return s.checkAvailability(ctx, action.Payload)
	case "cancel_meeting":
		return s.cancelMeeting(ctx, action.Payload)
	case "update_meeting":
		return s.updateMeeting(ctx, action.Payload)
	default:
		return integration.Fail(providerName, "unsupported calendar action: %s", action.Type)
	}
}

// ---------------------------------------------------------------------------
// HTTP plumbing with auth retry
// ---------------------------------------------------------------------------

// call performs an authenticated API request. It refreshes the token up
// front when expired; if the provider still rejects with an authorization
// error, it forces one refresh and retries the call exactly once. A second
// authorization failure is terminal.
func (s *GoogleService) call(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	if err := s.ensureToken(ctx); err != nil {
		return 0, nil, err
	}
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
	}
	status, respBody, err := s.doOnce(ctx, method, path, query, payload)
	if err != nil {
		return 0, nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if err := s.refresh(ctx); err != nil {
			return 0, nil, err
		}
		status, respBody, err = s.doOnce(ctx, method, path, query, payload)
		if err != nil {
			return 0, nil, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return 0, nil, ErrReconnectRequired
		}
	}
	return status, respBody, nil
}

func (s *GoogleService) doOnce(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	u := s.apiBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token.current())
	if payload != nil {
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

// ---------------------------------------------------------------------------
// Provisioning
// ---------------------------------------------------------------------------

type calendarListEntry struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

type calendarList struct {
	Items []calendarListEntry `json:"items"`
}

func (s *GoogleService) listCalendars(ctx context.Context) ([]calendarListEntry, error) {
	status, body, err := s.call(ctx, http.MethodGet, "/users/me/calendarList", url.Values{"maxResults": {"250"}}, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("list calendars: status %d: %s", status, truncate(string(body), 200))
	}
	var list calendarList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode calendar list: %w", err)
	}
	return list.Items, nil
}

// ensureCalendar makes sure the dedicated calendar for this system's events
// exists, creating it if absent. The ACL grant for the connected user is
// best-effort; only the listing lookup is load-bearing.
func (s *GoogleService) ensureCalendar(ctx context.Context) (string, error) {
	items, err := s.listCalendars(ctx)
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if item.Summary == ReservedCalendarName {
			return item.ID, nil
		}
	}

	status, body, err := s.call(ctx, http.MethodPost, "/calendars", nil, map[string]any{
		"summary":  ReservedCalendarName,
		"timeZone": "UTC",
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("create calendar: status %d: %s", status, truncate(string(body), 200))
	}
	var created calendarListEntry
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode created calendar: %w", err)
	}
	slog.Info("Provisioned dedicated calendar", "persona", s.personaID, "calendar", created.ID)

	if email := strings.TrimSpace(s.cfg.ConnectedEmail); email != "" {
		aclStatus, aclBody, aclErr := s.call(ctx, http.MethodPost,
			"/calendars/"+url.PathEscape(created.ID)+"/acl", nil, map[string]any{
				"role":  "owner",
				"scope": map[string]any{"type": "user", "value": email},
			})
		if aclErr != nil || aclStatus < 200 || aclStatus >= 300 {
			slog.Warn("Failed to grant owner access on provisioned calendar; continuing",
				"calendar", created.ID, "email", email,
				"status", aclStatus, "error", aclErr, "body", truncate(string(aclBody), 200))
		}
	}
	return created.ID, nil
}

// ---------------------------------------------------------------------------
// schedule_meeting
// ---------------------------------------------------------------------------

type eventAttendee struct {
	Email string `json:"email"`
}

type eventResponse struct {
	ID          string          `json:"id"`
	HTMLLink    string          `json:"htmlLink"`
	HangoutLink string          `json:"hangoutLink"`
	Attendees   []eventAttendee `json:"attendees"`
}

func (s *GoogleService) scheduleMeeting(ctx context.Context, payload map[string]any) integration.Result {
	title := stringField(payload, "title")
	startTime := stringField(payload, "start_time")
	endTime := stringField(payload, "end_time")
	if title == "" || startTime == "" || endTime == "" {
		return integration.Fail(providerName, "schedule_meeting requires title, start_time and end_time")
	}
	timezone := stringField(payload, "timezone")
	if timezone == "" {
		timezone = "UTC"
	}

	requested := stringSlice(payload, "attendees")
	attendees := make([]eventAttendee, 0, len(requested))
	for _, a := range requested {
		a = strings.TrimSpace(a)
		if emailRx.MatchString(a) {
			attendees = append(attendees, eventAttendee{Email: a})
		} else if a != "" {
			slog.Warn("Dropping invalid attendee address", "attendee", a)
		}
	}
	if len(requested) > 0 && len(attendees) == 0 {
		return integration.Fail(providerName, "cannot schedule without at least one valid attendee")
	}
	if len(requested) == 0 {
		return integration.Fail(providerName, "cannot schedule without at least one attendee")
	}

	calendarID, err := s.ensureCalendar(ctx)
	if err != nil {
		return integration.Fail(providerName, "calendar provisioning failed: %v", err)
	}

	event := map[string]any{
		"summary":     title,
		"description": stringField(payload, "description"),
		"start":       map[string]any{"dateTime": startTime, "timeZone": timezone},
		"end":         map[string]any{"dateTime": endTime, "timeZone": timezone},
		"attendees":   attendees,
		"reminders": map[string]any{
			"useDefault": false,
			"overrides": []map[string]any{
				{"method": "email", "minutes": 24 * 60},
				{"method": "popup", "minutes": 10},
			},
		},
	}
	if loc := stringField(payload, "location"); loc != "" {
		event["location"] = loc
	}
	query := url.Values{"sendUpdates": {"all"}}
	if boolField(payload, "video_conference") {
		event["conferenceData"] = map[string]any{
			"createRequest": map[string]any{
				"requestId":             uuid.NewString(),
				"conferenceSolutionKey": map[string]any{"type": "hangoutsMeet"},
			},
		}
		query.Set("conferenceDataVersion", "1")
	}

	status, body, err := s.call(ctx, http.MethodPost, "/calendars/"+url.PathEscape(calendarID)+"/events", query, event)
	if err != nil {
		return integration.Fail(providerName, "schedule meeting: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "schedule meeting: status %d: %s", status, truncate(string(body), 200))
	}
	var created eventResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return integration.Fail(providerName, "decode created event: %v", err)
	}

	message := fmt.Sprintf("Meeting %q scheduled", title)
	if len(attendees) > 0 && len(created.Attendees) == 0 {
		// Known outcome of restrictive OAuth scopes: the event exists but the
		// provider did not attach attendees. Still a success, but callers
		// must see the caveat.
		slog.Warn("Provider returned no attendees on created event",
			"event", created.ID, "requested", len(attendees))
		message += "; note: attendee invitations may not have been delivered (calendar permissions)"
	}
	data := map[string]any{
		"event_id": created.ID,
		"link":     created.HTMLLink,
		"message":  message,
	}
	if created.HangoutLink != "" {
		data["conference_link"] = created.HangoutLink
	}
	return integration.Ok(data)
}

// ---------------------------------------------------------------------------
// check_availability
// ---------------------------------------------------------------------------

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
	} `json:"calendars"`
}

func (s *GoogleService) checkAvailability(ctx context.Context, payload map[string]any) integration.Result {
	startStr := stringField(payload, "start_time")
	endStr := stringField(payload, "end_time")
	reqStart, err1 := time.Parse(time.RFC3339, startStr)
	reqEnd, err2 := time.Parse(time.RFC3339, endStr)
	if err1 != nil || err2 != nil || !reqStart.Before(reqEnd) {
		return integration.Fail(providerName, "check_availability requires RFC3339 start_time and end_time with start before end")
	}
	duration := time.Duration(intField(payload, "duration_minutes", 30)) * time.Minute

	calendars, err := s.listCalendars(ctx)
	if err != nil {
		return integration.Fail(providerName, "list calendars: %v", err)
	}
	items := make([]map[string]string, 0, len(calendars))
	for _, c := range calendars {
		items = append(items, map[string]string{"id": c.ID})
	}

	status, body, err := s.call(ctx, http.MethodPost, "/freeBusy", nil, map[string]any{
		"timeMin": reqStart.Format(time.RFC3339),
		"timeMax": reqEnd.Format(time.RFC3339),
		"items":   items,
	})
	if err != nil {
		return integration.Fail(providerName, "free/busy query: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "free/busy query: status %d: %s", status, truncate(string(body), 200))
	}
	var fb freeBusyResponse
	if err := json.Unmarshal(body, &fb); err != nil {
		return integration.Fail(providerName, "decode free/busy response: %v", err)
	}

	var busy []Interval
	for calID, cal := range fb.Calendars {
		for _, b := range cal.Busy {
			busy = append(busy, Interval{Start: b.Start, End: b.End, CalendarID: calID})
		}
	}
	merged := MergeBusy(busy)
	slots := AvailableSlots(reqStart, reqEnd, merged, duration)

	conflicts := Conflicts(reqStart, reqEnd, busy)
	for i := range conflicts {
		if title, ok := s.lookupEventTitle(ctx, conflicts[i].CalendarID, conflicts[i].Start, conflicts[i].End); ok {
			conflicts[i].Title = title
		}
	}

	return integration.Ok(map[string]any{
		"available": len(conflicts) == 0,
		"slots":     slots,
		"conflicts": conflicts,
		"busy":      merged,
	})
}

// lookupEventTitle enriches a conflicting interval with the underlying
// event's title. Strictly best-effort: every failure is swallowed.
func (s *GoogleService) lookupEventTitle(ctx context.Context, calendarID string, start, end time.Time) (string, bool) {
	if calendarID == "" {
		return "", false
	}
	query := url.Values{
		"timeMin":      {start.Format(time.RFC3339)},
		"timeMax":      {end.Format(time.RFC3339)},
		"singleEvents": {"true"},
		"maxResults":   {"1"},
	}
	status, body, err := s.call(ctx, http.MethodGet, "/calendars/"+url.PathEscape(calendarID)+"/events", query, nil)
	if err != nil || status < 200 || status >= 300 {
		slog.Debug("Conflict title lookup failed", "calendar", calendarID, "status", status, "error", err)
		return "", false
	}
	var resp struct {
		Items []struct {
			Summary string `json:"summary"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Items) == 0 {
		return "", false
	}
	return resp.Items[0].Summary, true
}

// ---------------------------------------------------------------------------
// cancel_meeting / update_meeting
// ---------------------------------------------------------------------------

func (s *GoogleService) cancelMeeting(ctx context.Context, payload map[string]any) integration.Result {
	eventID := stringField(payload, "event_id")
	if eventID == "" {
		return integration.Fail(providerName, "cancel_meeting requires event_id")
	}
	calendarID, err := s.ensureCalendar(ctx)
	if err != nil {
		return integration.Fail(providerName, "calendar provisioning failed: %v", err)
	}
	status, body, err := s.call(ctx, http.MethodDelete,
		"/calendars/"+url.PathEscape(calendarID)+"/events/"+url.PathEscape(eventID),
		url.Values{"sendUpdates": {"all"}}, nil)
	if err != nil {
		return integration.Fail(providerName, "cancel meeting: %v", err)
	}
	// Google returns 204 on delete; some gateways rewrite to 200. Both mean
	// the event is gone.
	if status != http.StatusOK && status != http.StatusNoContent {
		return integration.Fail(providerName, "cancel meeting: status %d: %s", status, truncate(string(body), 200))
	}
	return integration.Ok(map[string]any{"message": "Meeting cancelled", "event_id": eventID})
}

func (s *GoogleService) updateMeeting(ctx context.Context, payload map[string]any) integration.Result {
	eventID := stringField(payload, "event_id")
	if eventID == "" {
		return integration.Fail(providerName, "update_meeting requires event_id")
	}
	calendarID, err := s.ensureCalendar(ctx)
	if err != nil {
		return integration.Fail(providerName, "calendar provisioning failed: %v", err)
	}
	path := "/calendars/" + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)

	status, body, err := s.call(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return integration.Fail(providerName, "fetch meeting: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "fetch meeting: status %d: %s", status, truncate(string(body), 200))
	}
	var event map[string]any
	if err := json.Unmarshal(body, &event); err != nil {
		return integration.Fail(providerName, "decode meeting: %v", err)
	}

	// Shallow merge: last write wins, no conflict detection beyond the
	// provider's own concurrency handling.
	if v := stringField(payload, "title"); v != "" {
		event["summary"] = v
	}
	if v := stringField(payload, "description"); v != "" {
		event["description"] = v
	}
	if v := stringField(payload, "location"); v != "" {
		event["location"] = v
	}
	timezone := stringField(payload, "timezone")
	if v := stringField(payload, "start_time"); v != "" {
		event["start"] = mergeEventTime(event["start"], v, timezone)
	}
	if v := stringField(payload, "end_time"); v != "" {
		event["end"] = mergeEventTime(event["end"], v, timezone)
	}

	status, body, err = s.call(ctx, http.MethodPut, path, url.Values{"sendUpdates": {"all"}}, event)
	if err != nil {
		return integration.Fail(providerName, "update meeting: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "update meeting: status %d: %s", status, truncate(string(body), 200))
	}
	var updated eventResponse
	if err := json.Unmarshal(body, &updated); err != nil {
		return integration.Fail(providerName, "decode updated meeting: %v", err)
	}
	return integration.Ok(map[string]any{
		"event_id": updated.ID,
		"link":     updated.HTMLLink,
		"message":  "Meeting updated",
	})
}

func mergeEventTime(existing any, dateTime, timezone string) map[string]any {
	out := map[string]any{"dateTime": dateTime}
	if prev, ok := existing.(map[string]any); ok {
		if tz, ok := prev["timeZone"].(string); ok && tz != "" {
			out["timeZone"] = tz
		}
	}
	if timezone != "" {
		out["timeZone"] = timezone
	}
	return out
}

// ---------------------------------------------------------------------------
// payload helpers
// ---------------------------------------------------------------------------

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func boolField(payload map[string]any, key string) bool {
	if v, ok := payload[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func intField(payload map[string]any, key string, def int) int {
	if v, ok := payload[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

func stringSlice(payload map[string]any, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
