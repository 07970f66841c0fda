// Package slack implements the chat-messaging provider. Two mutually
// exclusive auth modes are supported: a bot token (full Slack Web API via
// slack-go) or an incoming webhook (fire-and-forget, channel fixed at
// webhook-creation time).
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

const providerName = "slack"

// webhookAck is the exact body a live incoming webhook returns. Slack may
// answer 200 with an error body for a dead webhook, so the body is checked,
// not just the status.
const webhookAck = "ok"

// Service sends messages into a Slack workspace.
type Service struct {
	cfg    config.SlackConfig
	api    *slackapi.Client // nil in webhook mode
	client *http.Client
}

// NewService builds the Slack provider. When both a bot token and a webhook
// URL are configured, the bot token wins.
func NewService(cfg config.SlackConfig) *Service {
	s := &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
	if tok := strings.TrimSpace(cfg.BotToken); tok != "" {
		opts := []slackapi.Option{slackapi.OptionHTTPClient(s.client)}
		if base := strings.TrimSpace(cfg.APIBase); base != "" {
			if !strings.HasSuffix(base, "/") {
				base += "/"
			}
			opts = append(opts, slackapi.OptionAPIURL(base))
		}
		s.api = slackapi.New(tok, opts...)
	}
	return s
}

func (s *Service) Name() string  { return providerName }
func (s *Service) Enabled() bool { return s.cfg.Active() }

// Validate checks that one auth mode is configured, then tests connectivity.
func (s *Service) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.BotToken) == "" && strings.TrimSpace(s.cfg.WebhookURL) == "" {
		return false
	}
	return s.Test(ctx).Success
}

// Test confirms connectivity. Bot mode calls auth.test; webhook mode posts a
// probe message and distinguishes three outcomes: HTTP failure, HTTP-ok with
// a wrong body (dead webhook), and HTTP-ok with the exact acknowledgement.
func (s *Service) Test(ctx context.Context) integration.Result {
	if s.api != nil {
		resp, err := s.api.AuthTestContext(ctx)
		if err != nil {
			return integration.Fail(providerName, "slack auth.test failed: %v (check bot token and scopes)", err)
		}
		return integration.Ok(map[string]any{
			"message": "Slack bot connection healthy",
			"team":    resp.Team,
			"user":    resp.User,
		})
	}
	if strings.TrimSpace(s.cfg.WebhookURL) == "" {
		return integration.Fail(providerName, "slack is not configured: set a bot token or webhook URL")
	}

	body, status, err := s.postWebhook(ctx, "AgentDesk connectivity test")
	if err != nil {
		return integration.Fail(providerName, "slack webhook unreachable: %v", err)
	}
	if status < 200 || status >= 300 {
		return integration.Fail(providerName, "slack webhook returned status %d (webhook may be revoked)", status)
	}
	if !strings.EqualFold(strings.TrimSpace(body), webhookAck) {
		return integration.Fail(providerName,
			"slack webhook returned 200 but body %q instead of %q; the webhook is likely dead", strings.TrimSpace(body), webhookAck)
	}
	res := integration.Ok(map[string]any{
		"message": "Slack webhook connection healthy",
		"warning": "webhook delivery ignores channel overrides; the channel was fixed when the webhook was created",
	})
	slog.Warn("Slack webhook mode: channel overrides are ignored by webhook delivery")
	return res
}

// Execute dispatches chat-messaging actions.
func (s *Service) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "send_slack_message":
		return s.sendMessage(ctx, action.Payload)
	default:
		return integration.Fail(providerName, "unsupported slack action: %s", action.Type)
	}
}

// sendMessage posts a message. When the payload carries actor identity
// (injected by the tool layer, never invented here) a sender-identity
// context line is prepended to the requested text.
func (s *Service) sendMessage(ctx context.Context, payload map[string]any) integration.Result {
	text := stringField(payload, "text")
	if text == "" {
		return integration.Fail(providerName, "send_slack_message requires text")
	}
	if ctxLine := senderContext(payload); ctxLine != "" {
		text = ctxLine + "\n" + text
	}

	if s.api == nil {
		if channel := stringField(payload, "channel"); channel != "" {
			slog.Warn("Channel override ignored: webhook delivery is channel-bound", "channel", channel)
		}
		body, status, err := s.postWebhook(ctx, text)
		if err != nil {
			return integration.Fail(providerName, "slack webhook send failed: %v", err)
		}
		if status < 200 || status >= 300 || !strings.EqualFold(strings.TrimSpace(body), webhookAck) {
			return integration.Fail(providerName, "slack webhook send rejected: status %d body %q", status, strings.TrimSpace(body))
		}
		return integration.Ok(map[string]any{"message": "Message sent via webhook"})
	}

	channel := stringField(payload, "channel")
	if channel == "" {
		channel = s.cfg.Channel
	}

	// Directed messages open a conversation with the user first; both the
	// open and the post must succeed or the whole action fails.
	if userID := stringField(payload, "user_id"); userID != "" {
		ch, _, _, err := s.api.OpenConversationContext(ctx, &slackapi.OpenConversationParameters{
			Users: []string{userID},
		})
		if err != nil {
			return integration.Fail(providerName, "open conversation with %s: %v", userID, err)
		}
		channel = ch.ID
	}
	if channel == "" {
		return integration.Fail(providerName, "no channel configured and none supplied")
	}

	respChannel, ts, err := s.api.PostMessageContext(ctx, channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return integration.Fail(providerName, "post message to %s: %v", channel, err)
	}
	return integration.Ok(map[string]any{
		"message":   "Message sent",
		"channel":   respChannel,
		"timestamp": ts,
	})
}

func (s *Service) postWebhook(ctx context.Context, text string) (string, int, error) {
	payload, _ := json.Marshal(map[string]any{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}

// senderContext renders the identity line prepended ahead of the message.
func senderContext(payload map[string]any) string {
	name := stringField(payload, "actor_name")
	email := stringField(payload, "actor_email")
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("_Sent on behalf of %s (%s)_", name, email)
	case name != "":
		return fmt.Sprintf("_Sent on behalf of %s_", name)
	case email != "":
		return fmt.Sprintf("_Sent on behalf of %s_", email)
	default:
		return ""
	}
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
