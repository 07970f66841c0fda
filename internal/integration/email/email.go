// Package email implements the outbound email provider over SMTP.
package email

import (
	"context"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/AgentDesk/AgentDesk/internal/config"
	"github.com/AgentDesk/AgentDesk/internal/identity"
	"github.com/AgentDesk/AgentDesk/internal/integration"
)

const providerName = "email"

// fallbackSender labels mail when no actor identity can be resolved.
const fallbackSender = "AgentDesk Assistant"

// sender abstracts gomail's dialer so tests can capture messages without a
// live SMTP server.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Service sends templated email through a configured SMTP transport.
type Service struct {
	cfg      config.EmailConfig
	resolver identity.Resolver
	send     sender
}

// NewService builds the email provider.
func NewService(cfg config.EmailConfig, resolver identity.Resolver) *Service {
	return &Service{
		cfg:      cfg,
		resolver: resolver,
		send:     gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
	}
}

func (s *Service) Name() string  { return providerName }
func (s *Service) Enabled() bool { return s.cfg.Active() }

// Validate checks SMTP config is present, then runs the live test.
func (s *Service) Validate(ctx context.Context) bool {
	if strings.TrimSpace(s.cfg.SMTPHost) == "" || strings.TrimSpace(s.cfg.FromAddress) == "" {
		return false
	}
	return s.Test(ctx).Success
}

// Test sends a real message to the resolved actor's own address. This is
// intentionally the only provider whose test has a visible side effect: the
// email landing in the operator's inbox is the connectivity proof.
func (s *Service) Test(ctx context.Context) integration.Result {
	var actor *identity.Actor
	if s.resolver != nil {
		actor, _ = s.resolver.CurrentActor(ctx)
	}
	if actor == nil || strings.TrimSpace(actor.Email) == "" {
		return integration.Fail(providerName, "cannot run email test: no actor with an email address is available")
	}
	res := s.deliver(actor.Email, "AgentDesk email connectivity test",
		"This is a connectivity test from your AgentDesk persona. If you are reading this, outbound email works.",
		actor.Name, actor.Email)
	if !res.Success {
		return res
	}
	return integration.Ok(map[string]any{
		"message": "Test email sent to " + actor.Email,
	})
}

// Execute dispatches email actions.
func (s *Service) Execute(ctx context.Context, action integration.Action) integration.Result {
	switch action.Type {
	case "send_email":
		return s.sendEmail(action.Payload)
	default:
		return integration.Fail(providerName, "unsupported email action: %s", action.Type)
	}
}

func (s *Service) sendEmail(payload map[string]any) integration.Result {
	to := stringField(payload, "to")
	subject := stringField(payload, "subject")
	body := stringField(payload, "body")
	if to == "" || subject == "" || body == "" {
		return integration.Fail(providerName, "send_email requires to, subject and body")
	}
	senderName := stringField(payload, "actor_name")
	senderEmail := stringField(payload, "actor_email")
	if senderName == "" {
		senderName = fallbackSender
	}
	res := s.deliver(to, subject, body, senderName, senderEmail)
	if !res.Success {
		return res
	}
	return integration.Ok(map[string]any{"message": "Email sent to " + to})
}

func (s *Service) deliver(to, subject, body, senderName, senderEmail string) integration.Result {
	html, plain := renderTemplate(senderName, senderEmail, subject, body)

	m := gomail.NewMessage()
	from := s.cfg.FromAddress
	fromName := s.cfg.FromName
	if fromName == "" {
		fromName = senderName
	}
	m.SetAddressHeader("From", from, fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	if senderEmail != "" {
		m.SetHeader("Reply-To", senderEmail)
	}
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	if err := s.send.DialAndSend(m); err != nil {
		return integration.Fail(providerName, "smtp send to %s failed: %v", to, err)
	}
	return integration.Ok(nil)
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
