package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set keep their value.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides reads configuration values from environment variables and
// overrides fields in the provided Config. Parsing continues past a bad value
// so one broken variable does not hide the rest; the first error is returned.
//
// Environment variables supported:
// - SMTP_SERVER, SMTP_PORT (int), SMTP_USERNAME, SMTP_PASSWORD, EMAIL_TO
// - DISCORD_WEBHOOK_URL
// - VMNOTIFY_LOG_LEVEL, VMNOTIFY_LOG_FILE, VMNOTIFY_LOG_FORMAT
// - VMNOTIFY_PUSHGATEWAY_URL
// - VMNOTIFY_INFLUX_URL, VMNOTIFY_INFLUX_TOKEN, VMNOTIFY_INFLUX_ORG, VMNOTIFY_INFLUX_BUCKET
func ApplyEnvOverrides(cfg *Config) error {
	var first error
	for _, apply := range []func(*Config) error{
		applyEmailEnv,
		applyWebhookEnv,
		applyLoggingEnv,
		applyMetricsEnv,
	} {
		if err := apply(cfg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// applyEmailEnv consolidates email-related env parsing
func applyEmailEnv(cfg *Config) error {
	setStringEnv("SMTP_SERVER", &cfg.SMTPServer)
	setStringEnv("SMTP_USERNAME", &cfg.SMTPUsername)
	setStringEnv("SMTP_PASSWORD", &cfg.SMTPPassword)
	setStringEnv("EMAIL_TO", &cfg.EmailTo)
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			// leave the channel unusable rather than dialing the wrong port
			cfg.SMTPPort = 0
			if err == nil {
				err = fmt.Errorf("port %d out of range", p)
			}
			return fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		cfg.SMTPPort = p
	}
	return nil
}

func applyWebhookEnv(cfg *Config) error {
	setStringEnv("DISCORD_WEBHOOK_URL", &cfg.DiscordWebhookURL)
	return nil
}

func applyLoggingEnv(cfg *Config) error {
	setStringEnv("VMNOTIFY_LOG_LEVEL", &cfg.LogLevel)
	setStringEnv("VMNOTIFY_LOG_FILE", &cfg.LogFile)
	if v := os.Getenv("VMNOTIFY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	return nil
}

// applyMetricsEnv consolidates Pushgateway and Influx env parsing
func applyMetricsEnv(cfg *Config) error {
	setStringEnv("VMNOTIFY_PUSHGATEWAY_URL", &cfg.PushgatewayURL)
	setStringEnv("VMNOTIFY_INFLUX_URL", &cfg.InfluxURL)
	setStringEnv("VMNOTIFY_INFLUX_TOKEN", &cfg.InfluxToken)
	setStringEnv("VMNOTIFY_INFLUX_ORG", &cfg.InfluxOrg)
	setStringEnv("VMNOTIFY_INFLUX_BUCKET", &cfg.InfluxBucket)
	return nil
}

// setStringEnv overrides dst when env is set to a non-empty value
func setStringEnv(env string, dst *string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
