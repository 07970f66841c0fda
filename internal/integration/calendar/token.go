package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expirySafetyMargin is subtracted from the server-declared token lifetime
// so we refresh before the provider actually rejects the token.
const expirySafetyMargin = 60 * time.Second

// ErrReconnectRequired is returned when authentication cannot be recovered
// without the operator re-running the OAuth consent flow.
var ErrReconnectRequired = errors.New("calendar authorization expired; please reconnect your Google account")

// TokenStore persists refreshed token pairs. Persistence is a best-effort
// side effect: the in-memory token is authoritative for the lifetime of the
// request, and a failed save never fails the in-flight action.
type TokenStore interface {
	SaveTokens(ctx context.Context, personaID, provider, accessToken, refreshToken string) error
}

// tokenState holds the authoritative in-memory token for one persona
// account. Updates to token and expiry happen atomically under mu so a
// racing caller never retries against a token it just itself replaced.
type tokenState struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
}

func newTokenState(accessToken, refreshToken string) *tokenState {
	// Expiry of the seed token is unknown; treat unknown as expired so the
	// first call refreshes rather than failing mid-flight.
	return &tokenState{
		accessToken:  strings.TrimSpace(accessToken),
		refreshToken: strings.TrimSpace(refreshToken),
	}
}

func (t *tokenState) expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry.IsZero() || !time.Now().Before(t.expiry)
}

func (t *tokenState) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.accessToken
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// refresh exchanges the refresh token for a new access token and atomically
// updates in-memory state. The new pair is persisted through store when a
// persona id is available; a persistence failure is logged and swallowed.
func (s *GoogleService) refresh(ctx context.Context) error {
	s.token.mu.Lock()
	refreshToken := s.token.refreshToken
	s.token.mu.Unlock()
	if refreshToken == "" {
		return ErrReconnectRequired
	}

	form := url.Values{}
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode token refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return fmt.Errorf("token refresh failed: %s (%s): %w", out.Error, out.ErrorDesc, ErrReconnectRequired)
		}
		return fmt.Errorf("token refresh failed: status %d: %w", resp.StatusCode, ErrReconnectRequired)
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return fmt.Errorf("token refresh response missing access_token: %w", ErrReconnectRequired)
	}

	expiry := time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - expirySafetyMargin)

	s.token.mu.Lock()
	s.token.accessToken = out.AccessToken
	if strings.TrimSpace(out.RefreshToken) != "" {
		s.token.refreshToken = out.RefreshToken
	}
	s.token.expiry = expiry
	newRefresh := s.token.refreshToken
	s.token.mu.Unlock()

	if s.tokens != nil && s.personaID != "" {
		if err := s.tokens.SaveTokens(ctx, s.personaID, string(s.cfg.Provider), out.AccessToken, newRefresh); err != nil {
			slog.Warn("Failed to persist refreshed calendar tokens; continuing with in-memory token",
				"persona", s.personaID, "error", err)
		}
	}
	slog.Info("Calendar access token refreshed", "persona", s.personaID, "expires_in", out.ExpiresIn)
	return nil
}

// ensureToken refreshes the access token if it is expired or its expiry is
// unknown. Unknown is treated as expired, fail-safe.
func (s *GoogleService) ensureToken(ctx context.Context) error {
	if !s.token.expired() {
		return nil
	}
	return s.refresh(ctx)
}
