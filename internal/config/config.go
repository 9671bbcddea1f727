package config

import (
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSMTPPort is the mail submission port used when SMTP_PORT is unset.
const DefaultSMTPPort = 587

// Config holds runtime configuration for vmnotify
type Config struct {
	// Email channel
	SMTPServer   string `json:"smtp_server" yaml:"smtp_server"`
	SMTPPort     int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUsername string `json:"smtp_username" yaml:"smtp_username"`
	SMTPPassword string `json:"smtp_password" yaml:"smtp_password"`
	EmailTo      string `json:"email_to" yaml:"email_to"`

	// Chat channel
	DiscordWebhookURL string `json:"discord_webhook_url" yaml:"discord_webhook_url"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFile   string `json:"log_file" yaml:"log_file"`
	LogFormat string `json:"log_format" yaml:"log_format"` // "console" or "json"

	// Metrics (push only, the process is short-lived)
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	InfluxURL      string `json:"influx_url" yaml:"influx_url"`
	InfluxToken    string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg      string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket   string `json:"influx_bucket" yaml:"influx_bucket"`
}

// EmailConfig is the mail channel's view of the configuration.
type EmailConfig struct {
	Server    string
	Port      int
	Username  string
	Password  string
	Recipient string
}

// Missing returns the environment keys whose values are absent. An empty
// result means the channel is usable.
func (e EmailConfig) Missing() []string {
	var missing []string
	if e.Server == "" {
		missing = append(missing, "SMTP_SERVER")
	}
	if e.Port <= 0 {
		missing = append(missing, "SMTP_PORT")
	}
	if e.Username == "" {
		missing = append(missing, "SMTP_USERNAME")
	}
	if e.Password == "" {
		missing = append(missing, "SMTP_PASSWORD")
	}
	if e.Recipient == "" {
		missing = append(missing, "EMAIL_TO")
	}
	return missing
}

// Addr returns host:port for dialing.
func (e EmailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", e.Server, e.Port)
}

// WebhookConfig is the chat channel's view of the configuration.
type WebhookConfig struct {
	URL string
}

// Configured reports whether a webhook URL is present.
func (w WebhookConfig) Configured() bool { return w.URL != "" }

// Email returns the email channel settings.
func (c *Config) Email() EmailConfig {
	return EmailConfig{
		Server:    c.SMTPServer,
		Port:      c.SMTPPort,
		Username:  c.SMTPUsername,
		Password:  c.SMTPPassword,
		Recipient: c.EmailTo,
	}
}

// Webhook returns the chat channel settings.
func (c *Config) Webhook() WebhookConfig {
	return WebhookConfig{URL: c.DiscordWebhookURL}
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() *Config {
	return &Config{
		SMTPPort:  DefaultSMTPPort,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Validate returns a list of non-fatal configuration warnings, such as
// partially configured channels.
func (c *Config) Validate() []string {
	var warnings []string
	email := c.Email()
	missing := email.Missing()
	anyEmail := c.SMTPServer != "" || c.SMTPUsername != "" || c.SMTPPassword != "" || c.EmailTo != ""
	if anyEmail && len(missing) > 0 {
		warnings = append(warnings, fmt.Sprintf("email channel partially configured, missing %v", missing))
	}
	if c.DiscordWebhookURL != "" {
		if u, err := url.Parse(c.DiscordWebhookURL); err != nil || u.Scheme == "" || u.Host == "" {
			warnings = append(warnings, fmt.Sprintf("invalid DISCORD_WEBHOOK_URL: %q", c.DiscordWebhookURL))
		}
	}
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.InfluxBucket != "" && c.InfluxURL == "", "influx bucket provided but URL is missing"},
		{c.LogFormat != "" && c.LogFormat != "console" && c.LogFormat != "json", fmt.Sprintf("unknown log format %q, using console", c.LogFormat)},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	return warnings
}

// LoadConfigFromFile loads config from a YAML/JSON file on top of the defaults
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
