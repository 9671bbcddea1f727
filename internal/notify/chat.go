package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/vmnotify/vmnotify/internal/config"
	"github.com/vmnotify/vmnotify/internal/logging"
	"github.com/vmnotify/vmnotify/internal/metrics"
)

// MaxUploadSize is the exclusive upper bound for recording uploads (8 MiB).
const MaxUploadSize int64 = 8 * 1024 * 1024

// Card appearance.
const (
	CardTitle  = "📞 New Voicemail"
	CardColor  = 3447003
	CardFooter = "VoIP Answering Machine"
)

// Embed is a Discord embed card.
type Embed struct {
	Title  string       `json:"title"`
	Color  int          `json:"color"`
	Fields []EmbedField `json:"fields"`
	Footer EmbedFooter  `json:"footer"`
}

// EmbedField is one labeled value on a card.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter is the small text under a card.
type EmbedFooter struct {
	Text string `json:"text"`
}

// WebhookPayload is the JSON body posted to the webhook.
type WebhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// NewCard builds the voicemail card for a request.
func NewCard(req Request) Embed {
	return Embed{
		Title: CardTitle,
		Color: CardColor,
		Fields: []EmbedField{
			{Name: "Caller", Value: DisplayName(req.CallerName, req.CallerNumber), Inline: true},
			{Name: "Number", Value: orUnknown(req.CallerNumber), Inline: true},
			{Name: "Time", Value: timestamp(), Inline: false},
		},
		Footer: EmbedFooter{Text: CardFooter},
	}
}

// Discord posts a card to a webhook and follows up with the recording.
type Discord struct {
	Config config.WebhookConfig
	// Client defaults to a client without timeout.
	Client *http.Client
}

// Name returns the notifier backend name.
func (d *Discord) Name() string { return "discord" }

func (d *Discord) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{}
}

// Dispatch posts the card and, after a 204, uploads the recording when it is
// small enough. Only the card post decides Sent.
func (d *Discord) Dispatch(ctx context.Context, req Request) Result {
	log := logging.Get().With().Str("request_id", req.ID.String()).Str("channel", d.Name()).Logger()

	if !d.Config.Configured() {
		log.Warn().Msg("Discord webhook URL not configured")
		return failed(d.Name(), fmt.Errorf("%w: DISCORD_WEBHOOK_URL", ErrConfigMissing))
	}

	status, err := d.postCard(ctx, NewCard(req))
	if err != nil {
		log.Error().Err(err).Msg("Failed to send Discord notification")
		return failed(d.Name(), fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if status != http.StatusNoContent {
		log.Error().Int("status", status).Msg("Discord webhook failed")
		return failed(d.Name(), fmt.Errorf("%w: %d", ErrUnexpectedStatus, status))
	}
	log.Info().Msg("Discord notification sent")

	return Result{Channel: d.Name(), Sent: true, Uploaded: d.uploadRecording(ctx, &log, req.RecordingPath)}
}

func (d *Discord) postCard(ctx context.Context, card Embed) (int, error) {
	b, err := json.Marshal(WebhookPayload{Embeds: []Embed{card}})
	if err != nil {
		return 0, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Config.URL, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := d.client().Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// uploadRecording is best effort: its outcome is logged and counted but never
// turns the dispatch into a failure.
func (d *Discord) uploadRecording(ctx context.Context, log *zerolog.Logger, path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		log.Info().Str("path", path).Msg("recording not found, skipping upload")
		metrics.IncUpload(metrics.UploadNoFile)
		return false
	}
	if info.Size() >= MaxUploadSize {
		log.Info().Int64("size", info.Size()).Msg("Audio file too large for Discord")
		metrics.IncUpload(metrics.UploadTooLarge)
		return false
	}
	status, err := d.postFile(ctx, path)
	if err != nil {
		log.Warn().Err(err).Msg("Discord audio upload failed")
		metrics.IncUpload(metrics.UploadFailed)
		return false
	}
	if status < 200 || status >= 300 {
		log.Warn().Int("status", status).Msg("Discord audio upload rejected")
		metrics.IncUpload(metrics.UploadFailed)
		return false
	}
	log.Info().Int64("size", info.Size()).Msg("Discord audio file sent")
	metrics.IncUpload(metrics.UploadSent)
	return true
}

func (d *Discord) postFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Config.URL, &body)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := d.client().Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
