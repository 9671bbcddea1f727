package metrics

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vmnotify/vmnotify/internal/logging"
)

// InfluxTarget describes an InfluxDB v2 write endpoint.
type InfluxTarget struct {
	URL, Token, Org, Bucket string
}

// PushInflux writes the current snapshot to InfluxDB once. Failures are
// logged and returned; callers treat them as informational.
func PushInflux(ctx context.Context, client *http.Client, target InfluxTarget) error {
	if target.URL == "" || target.Bucket == "" {
		return nil
	}
	q := url.Values{}
	q.Set("org", target.Org)
	q.Set("bucket", target.Bucket)
	q.Set("precision", "s")
	writeURL := fmt.Sprintf("%s/api/v2/write?%s", strings.TrimRight(target.URL, "/"), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, writeURL, bytes.NewReader([]byte(lineProtocol(GetSnapshot(), time.Now()))))
	if err != nil {
		logging.Get().Error().Err(err).Msg("influxdb request creation failed")
		return err
	}
	req.Header.Set("Authorization", "Token "+target.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := client.Do(req)
	if err != nil {
		logging.Get().Error().Err(err).Msg("influxdb push failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logging.Get().Warn().Int("status", resp.StatusCode).Msg("influxdb rejected metrics")
		return fmt.Errorf("influxdb returned status %d", resp.StatusCode)
	}
	return nil
}

// lineProtocol renders a snapshot as one Influx line:
// measurement field=value,... timestamp
func lineProtocol(s StatsSnapshot, now time.Time) string {
	return fmt.Sprintf(
		"vmnotify notifications=%di,notifications_failed=%di,email_sent=%di,email_failed=%di,chat_sent=%di,chat_failed=%di,uploads_sent=%di,uploads_skipped=%di %d",
		s.Notifications, s.NotificationsFailed, s.EmailSent, s.EmailFailed,
		s.ChatSent, s.ChatFailed, s.UploadsSent, s.UploadsSkipped, now.Unix(),
	)
}
