package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/vmnotify/vmnotify/internal/config"
	"github.com/vmnotify/vmnotify/internal/logging"
	"github.com/vmnotify/vmnotify/internal/metrics"
	"github.com/vmnotify/vmnotify/internal/notify"
)

const usage = "Usage: vmnotify <recording_path> <caller_number> <caller_name>"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run is the whole program minus os.Exit. Only a wrong argument count yields
// a non-zero status; delivery failures are reported in the log.
func run(args []string, stdout io.Writer) int {
	if len(args) != 3 {
		fmt.Fprintln(stdout, usage)
		return 1
	}
	recordingPath, callerNumber, callerName := args[0], args[1], args[2]

	cfg, warnings := loadConfig()

	cleanup := initLogging(cfg, stdout)
	defer cleanup()
	for _, w := range warnings {
		logging.Get().Warn().Msg(w)
	}

	ctx := context.Background()
	logging.Get().Info().Msgf("Processing notification for: %s (%s)", callerName, callerNumber)

	outcome := notify.New(cfg).Run(ctx, notify.NewRequest(recordingPath, callerNumber, callerName))
	if outcome.OK {
		logging.Get().Info().Msg("Notification sent successfully")
	} else {
		logging.Get().Error().Msg("Failed to send notifications")
	}

	metrics.SetLastRun(time.Now())
	metrics.Publish(ctx, metrics.Targets{
		PushgatewayURL: cfg.PushgatewayURL,
		Influx: metrics.InfluxTarget{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		},
	})
	return 0
}

// loadConfig builds the configuration from defaults, the optional config and
// env files, then the environment. Problems become warnings so that a bad
// value only disables the channel it belongs to.
func loadConfig() (*config.Config, []string) {
	var warnings []string
	if err := config.LoadEnvFile(os.Getenv("VMNOTIFY_ENV_FILE")); err != nil {
		warnings = append(warnings, err.Error())
	}

	cfg := config.DefaultConfig()
	if path := os.Getenv("VMNOTIFY_CONFIG"); path != "" {
		c, err := config.LoadConfigFromFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed loading config: %v", err))
		} else {
			cfg = c
		}
	}

	if err := config.ApplyEnvOverrides(cfg); err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid environment configuration: %v", err))
	}
	return cfg, append(warnings, cfg.Validate()...)
}

// initLogging initializes the log subsystem and returns a cleanup func. A log
// file that cannot be opened falls back to stdout only.
func initLogging(cfg *config.Config, stdout io.Writer) func() {
	opts := logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Format: cfg.LogFormat, Output: stdout}
	cleanup, err := logging.Init(opts)
	if err == nil {
		return cleanup
	}
	opts.File = ""
	cleanup, ferr := logging.Init(opts)
	if ferr != nil {
		log.Printf("failed to initialize logger: %v", ferr)
		return func() {}
	}
	logging.Get().Warn().Err(err).Str("file", cfg.LogFile).Msg("log file unavailable, logging to stdout only")
	return cleanup
}
