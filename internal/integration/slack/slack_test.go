package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

func webhookService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewService(config.SlackConfig{Enabled: true, WebhookURL: srv.URL})
}

func TestWebhookTestHealthy(t *testing.T) {
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
	res := svc.Test(context.Background())
	if !res.Success {
		t.Fatalf("expected healthy webhook, got %s", res.Error)
	}
	if warning, _ := res.Data["warning"].(string); !strings.Contains(warning, "channel") {
		t.Error("webhook mode health check should warn about channel binding")
	}
}

func TestWebhookTestDeadWebhookBody(t *testing.T) {
	// Slack answers 200 with an error body for revoked webhooks. Status alone
	// must not be trusted.
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "invalid_token")
	})
	res := svc.Test(context.Background())
	if res.Success {
		t.Fatal("200 with a non-ok body must be reported as failure")
	}
	if !strings.Contains(res.Error, "invalid_token") {
		t.Errorf("failure should surface the webhook body, got %q", res.Error)
	}
}

func TestWebhookTestHTTPFailure(t *testing.T) {
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if res := svc.Test(context.Background()); res.Success {
		t.Fatal("non-2xx webhook response must fail")
	}
}

func TestWebhookAckComparisonIsLenient(t *testing.T) {
	// Case and surrounding whitespace in the acknowledgement are tolerated.
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, " OK\n")
	})
	if res := svc.Test(context.Background()); !res.Success {
		t.Fatalf("expected lenient ack matching, got %s", res.Error)
	}
}

func TestWebhookSendPrependsSenderContext(t *testing.T) {
	var delivered string
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&msg)
		delivered = msg.Text
		io.WriteString(w, "ok")
	})

	res := svc.Execute(context.Background(), integration.Action{
		Type: "send_slack_message",
		Payload: map[string]any{
			"text":        "deploy is done",
			"actor_name":  "Ada",
			"actor_email": "ada@example.com",
			"channel":     "#ops", // ignored in webhook mode
		},
	})
	if !res.Success {
		t.Fatalf("send failed: %s", res.Error)
	}
	lines := strings.SplitN(delivered, "\n", 2)
	if len(lines) != 2 || !strings.Contains(lines[0], "Ada") || !strings.Contains(lines[0], "ada@example.com") {
		t.Errorf("expected sender context line first, got %q", delivered)
	}
	if lines[len(lines)-1] != "deploy is done" {
		t.Errorf("original text must follow unchanged, got %q", delivered)
	}
}

func TestWebhookSendWithoutActorLeavesTextAlone(t *testing.T) {
	var delivered string
	svc := webhookService(t, func(w http.ResponseWriter, r *http.Request) {
		var msg struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&msg)
		delivered = msg.Text
		io.WriteString(w, "ok")
	})

	svc.Execute(context.Background(), integration.Action{
		Type:    "send_slack_message",
		Payload: map[string]any{"text": "plain"},
	})
	if delivered != "plain" {
		t.Errorf("text without actor identity must pass through untouched, got %q", delivered)
	}
}

func TestSendMessageRequiresText(t *testing.T) {
	svc := NewService(config.SlackConfig{Enabled: true, WebhookURL: "http://unused.invalid"})
	res := svc.Execute(context.Background(), integration.Action{
		Type:    "send_slack_message",
		Payload: map[string]any{},
	})
	if res.Success {
		t.Fatal("empty text must be rejected before delivery")
	}
}

func TestUnsupportedSlackAction(t *testing.T) {
	svc := NewService(config.SlackConfig{Enabled: true, WebhookURL: "http://unused.invalid"})
	if res := svc.Execute(context.Background(), integration.Action{Type: "delete_channel"}); res.Success {
		t.Error("unsupported action must fail")
	}
}

func TestUnconfiguredServiceFailsTest(t *testing.T) {
	svc := NewService(config.SlackConfig{Enabled: true})
	if res := svc.Test(context.Background()); res.Success {
		t.Fatal("neither token nor webhook configured: test must fail")
	}
	if svc.Validate(context.Background()) {
		t.Error("validate must be false without any auth mode")
	}
}

// Bot-token mode exercised against a stub of the Slack Web API.
func botService(t *testing.T, mux *http.ServeMux) *Service {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewService(config.SlackConfig{Enabled: true, BotToken: "xoxb-test", APIBase: srv.URL})
}

func TestBotModeTest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth.test", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "team": "Acme", "user": "deskbot"})
	})
	svc := botService(t, mux)

	res := svc.Test(context.Background())
	if !res.Success {
		t.Fatalf("auth.test stub should pass: %s", res.Error)
	}
	if res.Data["team"] != "Acme" {
		t.Errorf("expected team surfaced, got %+v", res.Data)
	}
}

func TestBotModeDirectedMessageOpensConversation(t *testing.T) {
	var opened, postedChannel string
	mux := http.NewServeMux()
	mux.HandleFunc("/conversations.open", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		opened = r.PostFormValue("users")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": map[string]any{"id": "D123"}})
	})
	mux.HandleFunc("/chat.postMessage", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		postedChannel = r.PostFormValue("channel")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": postedChannel, "ts": "111.222"})
	})
	svc := botService(t, mux)

	res := svc.Execute(context.Background(), integration.Action{
		Type: "send_slack_message",
		Payload: map[string]any{
			"text":    "hello",
			"user_id": "U42",
		},
	})
	if !res.Success {
		t.Fatalf("directed message failed: %s", res.Error)
	}
	if opened != "U42" {
		t.Errorf("expected conversation opened with U42, got %q", opened)
	}
	if postedChannel != "D123" {
		t.Errorf("message must be posted into the opened conversation, got %q", postedChannel)
	}
}

func TestBotModeNoChannelAnywhere(t *testing.T) {
	mux := http.NewServeMux()
	svc := botService(t, mux)

	res := svc.Execute(context.Background(), integration.Action{
		Type:    "send_slack_message",
		Payload: map[string]any{"text": "hello"},
	})
	if res.Success {
		t.Fatal("no channel in payload or config must fail")
	}
}
