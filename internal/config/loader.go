package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".agentdesk"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
	// envPrefix is the prefix for environment variable overrides.
	envPrefix = "AGENTDESK"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("AGENTDESK_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present) and applies environment variable
// overrides on top. A missing config file is not an error: env-only setups
// are supported.
func Load() (*Config, error) {
	cfg := defaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env-only configuration
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	applyFallbacks(cfg)
	return cfg, nil
}

// LoadFile reads config from an explicit path with env overrides applied.
func LoadFile(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	applyFallbacks(cfg)
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func defaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Persona: PersonaConfig{
			ID:   "default",
			Name: "AgentDesk Assistant",
			Role: "assistant",
		},
		Integrations: IntegrationsConfig{
			Calendar: CalendarConfig{Provider: ProviderGoogleCalendar},
			Communication: CommunicationConfig{
				Email: EmailConfig{SMTPPort: 587},
			},
		},
		Store: StoreConfig{
			Path: filepath.Join(home, ConfigDir, "agentdesk.db"),
		},
		Notify: NotifyConfig{
			KafkaTopic: "agentdesk.notifications",
		},
	}
}

func applyFallbacks(cfg *Config) {
	if strings.TrimSpace(cfg.Persona.ID) == "" {
		cfg.Persona.ID = "default"
	}
	if cfg.Integrations.Calendar.Provider == "" {
		cfg.Integrations.Calendar.Provider = ProviderGoogleCalendar
	}
	if cfg.Integrations.Communication.Email.SMTPPort == 0 {
		cfg.Integrations.Communication.Email.SMTPPort = 587
	}
	if strings.TrimSpace(cfg.Notify.KafkaTopic) == "" {
		cfg.Notify.KafkaTopic = "agentdesk.notifications"
	}
}
