package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateEnv blanks every variable the program reads.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SMTP_SERVER", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "EMAIL_TO",
		"DISCORD_WEBHOOK_URL",
		"VMNOTIFY_CONFIG", "VMNOTIFY_ENV_FILE",
		"VMNOTIFY_LOG_LEVEL", "VMNOTIFY_LOG_FILE", "VMNOTIFY_LOG_FORMAT",
		"VMNOTIFY_PUSHGATEWAY_URL", "VMNOTIFY_INFLUX_URL", "VMNOTIFY_INFLUX_TOKEN",
		"VMNOTIFY_INFLUX_ORG", "VMNOTIFY_INFLUX_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func TestRunWrongArgumentCount(t *testing.T) {
	isolateEnv(t)
	for _, args := range [][]string{
		nil,
		{"/tmp/vm.mp3", "+15551234567"},
		{"/tmp/vm.mp3", "+15551234567", "Alice", "extra"},
	} {
		var out bytes.Buffer
		if code := run(args, &out); code != 1 {
			t.Fatalf("%d args: expected exit 1, got %d", len(args), code)
		}
		if strings.TrimSpace(out.String()) != usage {
			t.Fatalf("%d args: expected usage only, got %q", len(args), out.String())
		}
	}
}

func TestRunWithoutConfiguration(t *testing.T) {
	isolateEnv(t)
	var out bytes.Buffer
	code := run([]string{filepath.Join(t.TempDir(), "vm.mp3"), "+15551234567", "Alice"}, &out)
	if code != 0 {
		t.Fatalf("expected exit 0 even when delivery fails, got %d", code)
	}
	logs := out.String()
	for _, want := range []string{
		"Processing notification for: Alice (+15551234567)",
		"Email configuration missing",
		"Discord webhook URL not configured",
		"Failed to send notifications",
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %q in output:\n%s", want, logs)
		}
	}
	if strings.Contains(logs, "Notification sent successfully") {
		t.Fatalf("unexpected success line:\n%s", logs)
	}
}

func TestRunKeepsArgumentsVerbatim(t *testing.T) {
	isolateEnv(t)
	var out bytes.Buffer
	if code := run([]string{"/nonexistent.mp3", "", ""}, &out); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(out.String(), "Processing notification for:  ()") {
		t.Fatalf("expected raw empty values in processing line:\n%s", out.String())
	}
}

func TestLoadConfigWarnings(t *testing.T) {
	isolateEnv(t)
	t.Setenv("VMNOTIFY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("SMTP_PORT", "not-a-port")
	t.Setenv("SMTP_SERVER", "smtp.example.com")

	cfg, warnings := loadConfig()
	if len(warnings) < 2 {
		t.Fatalf("expected config file and port warnings, got %v", warnings)
	}
	if len(cfg.Email().Missing()) == 0 {
		t.Fatal("expected email channel to be unusable")
	}
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vmnotify.yaml")
	if err := os.WriteFile(cfgPath, []byte("smtp_server: file.example.com\ndiscord_webhook_url: https://discord.example/file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VMNOTIFY_CONFIG", cfgPath)
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/env")

	cfg, _ := loadConfig()
	if cfg.SMTPServer != "file.example.com" {
		t.Fatalf("expected file value, got %q", cfg.SMTPServer)
	}
	if cfg.DiscordWebhookURL != "https://discord.example/env" {
		t.Fatalf("expected env to override file, got %q", cfg.DiscordWebhookURL)
	}
}
