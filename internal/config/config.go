// Package config provides configuration types and loading for agentdesk.
package config

import (
	"time"

	"github.com/AgentDesk/AgentDesk/internal/capability"
)

// Status reflects the last known health of an integration connection.
type Status string

const (
	StatusActive   Status = "active"
	StatusError    Status = "error"
	StatusInactive Status = "inactive"
)

// active reports whether a status counts as usable. An empty status means the
// integration was never health-checked and is treated as active.
func (s Status) active() bool {
	return s == "" || s == StatusActive
}

// CalendarProvider enumerates supported calendar backends.
type CalendarProvider string

const (
	ProviderGoogleCalendar CalendarProvider = "google_calendar"
	ProviderCalendly       CalendarProvider = "calendly"
	ProviderCalCom         CalendarProvider = "cal_com"
)

// PersonaConfig identifies one persona and its presentation.
type PersonaConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name" envconfig:"PERSONA_NAME"`
	Role        string `json:"role" envconfig:"PERSONA_ROLE"`
	Description string `json:"description"`
}

// PersonaIntegrationSet aggregates everything the integration engine needs
// for one persona: its integration configs plus capability overrides. The
// set is owned by the persona record; the integration manager only ever
// holds a request-scoped view of it.
type PersonaIntegrationSet struct {
	Persona      PersonaConfig           `json:"persona"`
	Integrations IntegrationsConfig      `json:"integrations"`
	Capabilities []capability.Descriptor `json:"capabilities,omitempty"`
}

// CapabilitySet returns the persona's capability overrides, falling back to
// the seeded defaults when none were persisted.
func (s *PersonaIntegrationSet) CapabilitySet() []capability.Descriptor {
	if len(s.Capabilities) > 0 {
		return s.Capabilities
	}
	return capability.Defaults()
}

// IntegrationsConfig holds one config per integration category. A persona
// owns at most one calendar/CRM/support connection; communication is a set
// of sub-providers since several channels can be enabled at once.
type IntegrationsConfig struct {
	Calendar      CalendarConfig      `json:"calendar"`
	Communication CommunicationConfig `json:"communication"`
	CRM           CRMConfig           `json:"crm"`
	Support       SupportConfig       `json:"support"`
}

// CalendarConfig configures the calendar integration.
// ClientID/ClientSecret are only meaningful for google_calendar; APIKey is
// only meaningful for calendly/cal_com. APIBase and TokenURL default to the
// provider's public endpoints and exist so tests can point at a local server.
type CalendarConfig struct {
	Enabled        bool             `json:"enabled" envconfig:"CALENDAR_ENABLED"`
	Provider       CalendarProvider `json:"provider" envconfig:"CALENDAR_PROVIDER"`
	Status         Status           `json:"status"`
	LastSync       *time.Time       `json:"lastSync,omitempty"`
	AccessToken    string           `json:"accessToken" envconfig:"CALENDAR_ACCESS_TOKEN"`
	RefreshToken   string           `json:"refreshToken" envconfig:"CALENDAR_REFRESH_TOKEN"`
	ClientID       string           `json:"clientId" envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret   string           `json:"clientSecret" envconfig:"GOOGLE_CLIENT_SECRET"`
	APIKey         string           `json:"apiKey" envconfig:"CALENDAR_API_KEY"`
	ConnectedEmail string           `json:"connectedEmail" envconfig:"CALENDAR_CONNECTED_EMAIL"`
	APIBase        string           `json:"apiBase,omitempty" envconfig:"CALENDAR_API_BASE"`
	TokenURL       string           `json:"tokenUrl,omitempty" envconfig:"CALENDAR_TOKEN_URL"`
}

// Active reports whether the calendar integration is usable.
func (c CalendarConfig) Active() bool { return c.Enabled && c.Status.active() }

// CommunicationConfig contains all messaging sub-provider configurations.
type CommunicationConfig struct {
	Slack   SlackConfig   `json:"slack"`
	Email   EmailConfig   `json:"email"`
	Discord ChannelConfig `json:"discord"`
	Teams   ChannelConfig `json:"teams"`
}

// SlackConfig configures the Slack integration. BotToken and WebhookURL are
// mutually exclusive auth modes; when both are set the bot token wins.
type SlackConfig struct {
	Enabled    bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	Status     Status `json:"status"`
	BotToken   string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
	WebhookURL string `json:"webhookUrl" envconfig:"SLACK_WEBHOOK_URL"`
	Channel    string `json:"channel" envconfig:"SLACK_CHANNEL"`
	APIBase    string `json:"apiBase,omitempty" envconfig:"SLACK_API_BASE"`
}

// Active reports whether the Slack integration is usable.
func (c SlackConfig) Active() bool { return c.Enabled && c.Status.active() }

// EmailConfig configures outbound SMTP.
type EmailConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"EMAIL_ENABLED"`
	Status      Status `json:"status"`
	SMTPHost    string `json:"smtpHost" envconfig:"SMTP_HOST"`
	SMTPPort    int    `json:"smtpPort" envconfig:"SMTP_PORT"`
	Username    string `json:"username" envconfig:"SMTP_USERNAME"`
	Password    string `json:"password" envconfig:"SMTP_PASSWORD"`
	FromAddress string `json:"fromAddress" envconfig:"SMTP_FROM_ADDRESS"`
	FromName    string `json:"fromName" envconfig:"SMTP_FROM_NAME"`
}

// Active reports whether the email integration is usable.
func (c EmailConfig) Active() bool { return c.Enabled && c.Status.active() }

// ChannelConfig is the minimal configuration for channels that only gate
// capability availability (discord, teams). They participate in the
// requirement-path vocabulary but have no provider service yet.
type ChannelConfig struct {
	Enabled    bool   `json:"enabled"`
	Status     Status `json:"status"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// Active reports whether the channel is usable.
func (c ChannelConfig) Active() bool { return c.Enabled && c.Status.active() }

// CRMConfig configures the CRM integration (HubSpot-style REST API).
type CRMConfig struct {
	Enabled bool   `json:"enabled" envconfig:"CRM_ENABLED"`
	Status  Status `json:"status"`
	APIBase string `json:"apiBase,omitempty" envconfig:"CRM_API_BASE"`
	APIKey  string `json:"apiKey" envconfig:"CRM_API_KEY"`
}

// Active reports whether the CRM integration is usable.
func (c CRMConfig) Active() bool { return c.Enabled && c.Status.active() }

// SupportConfig configures the support-desk integration (Zendesk-style API).
type SupportConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SUPPORT_ENABLED"`
	Status   Status `json:"status"`
	APIBase  string `json:"apiBase,omitempty" envconfig:"SUPPORT_API_BASE"`
	Email    string `json:"email" envconfig:"SUPPORT_EMAIL"`
	APIToken string `json:"apiToken" envconfig:"SUPPORT_API_TOKEN"`
}

// Active reports whether the support integration is usable.
func (c SupportConfig) Active() bool { return c.Enabled && c.Status.active() }

// Config is the root configuration struct for the agentdesk process.
type Config struct {
	Persona      PersonaConfig      `json:"persona"`
	Integrations IntegrationsConfig `json:"integrations"`
	Store        StoreConfig        `json:"store"`
	Notify       NotifyConfig       `json:"notify"`
	Operator     OperatorConfig     `json:"operator"`
}

// StoreConfig locates the sqlite database backing persona and token state.
type StoreConfig struct {
	Path string `json:"path" envconfig:"STORE_PATH"`
}

// NotifyConfig configures the operational notification sink.
// With no brokers configured, notifications go to the process log.
type NotifyConfig struct {
	KafkaBrokers []string `json:"kafkaBrokers" envconfig:"NOTIFY_KAFKA_BROKERS"`
	KafkaTopic   string   `json:"kafkaTopic" envconfig:"NOTIFY_KAFKA_TOPIC"`
}

// OperatorConfig is the identity used when no live session actor exists
// (CLI runs, smoke tests).
type OperatorConfig struct {
	ID    string `json:"id" envconfig:"OPERATOR_ID"`
	Name  string `json:"name" envconfig:"OPERATOR_NAME"`
	Email string `json:"email" envconfig:"OPERATOR_EMAIL"`
}

// IntegrationSet builds the persona-scoped view the integration manager
// consumes from the process-level configuration.
func (c *Config) IntegrationSet() PersonaIntegrationSet {
	return PersonaIntegrationSet{
		Persona:      c.Persona,
		Integrations: c.Integrations,
	}
}
