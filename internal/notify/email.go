package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmnotify/vmnotify/internal/config"
	"github.com/vmnotify/vmnotify/internal/logging"
)

// sendMailHook allows tests to override the SMTP session.
var sendMailHook = sendMailStartTLS

// Email sends the voicemail, with the recording attached when present, to a
// single recipient over SMTP submission with STARTTLS.
type Email struct {
	Config config.EmailConfig
}

// Name returns the notifier backend name.
func (e *Email) Name() string { return "email" }

// Dispatch composes and sends the message. It never returns an error; all
// failures are logged and folded into the Result.
func (e *Email) Dispatch(ctx context.Context, req Request) Result {
	log := logging.Get().With().Str("request_id", req.ID.String()).Str("channel", e.Name()).Logger()

	if missing := e.Config.Missing(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Email configuration missing")
		return failed(e.Name(), fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", ")))
	}

	msg, attached, err := e.compose(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to send email")
		return failed(e.Name(), fmt.Errorf("%w: %v", ErrTransport, err))
	}
	if !attached {
		log.Info().Str("path", req.RecordingPath).Msg("recording not found, sending without attachment")
	}

	auth := smtp.PlainAuth("", e.Config.Username, e.Config.Password, e.Config.Server)
	if err := sendMailHook(ctx, e.Config.Addr(), e.Config.Server, auth, e.Config.Username, []string{e.Config.Recipient}, msg); err != nil {
		log.Error().Err(err).Msg("Failed to send email")
		return failed(e.Name(), fmt.Errorf("%w: %v", ErrTransport, err))
	}

	log.Info().Bool("attached", attached).Msg("Email sent successfully")
	return Result{Channel: e.Name(), Sent: true, Attached: attached}
}

// Subject returns the mail subject for a request.
func Subject(req Request) string {
	return "VoIP Voicemail from " + DisplayName(req.CallerName, req.CallerNumber)
}

func emailBody(req Request) string {
	return fmt.Sprintf("New voicemail received:\n\nCaller: %s\nNumber: %s\nTime: %s\n\nRecording attached.\n",
		orUnknown(req.CallerName), orUnknown(req.CallerNumber), timestamp())
}

// compose renders a multipart/mixed message. The bool reports whether the
// recording was attached.
func (e *Email) compose(req Request) ([]byte, bool, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ k, v string }{
		{"From", e.Config.Username},
		{"To", e.Config.Recipient},
		{"Subject", mime.QEncoding.Encode("utf-8", Subject(req))},
		{"Date", nowHook().Format(time.RFC1123Z)},
		{"Message-ID", fmt.Sprintf("<%s@vmnotify>", req.ID)},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()})},
	}
	for _, h := range headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.k, h.v)
	}
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, false, err
	}
	qp := quotedprintable.NewWriter(text)
	if _, err := io.WriteString(qp, emailBody(req)); err != nil {
		return nil, false, err
	}
	if err := qp.Close(); err != nil {
		return nil, false, err
	}

	attached := false
	if _, err := os.Stat(req.RecordingPath); err == nil {
		data, err := os.ReadFile(req.RecordingPath)
		if err != nil {
			return nil, false, fmt.Errorf("read recording: %w", err)
		}
		if err := writeAttachment(mw, filepath.Base(req.RecordingPath), data); err != nil {
			return nil, false, err
		}
		attached = true
	}

	if err := mw.Close(); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), attached, nil
}

func writeAttachment(mw *multipart.Writer, name string, data []byte) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"audio/mp3"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": name})},
	})
	if err != nil {
		return err
	}
	lw := &lineWriter{w: part}
	enc := base64.NewEncoder(base64.StdEncoding, lw)
	if _, err := enc.Write(data); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return lw.Close()
}

// lineWriter breaks base64 output into 76 character lines.
type lineWriter struct {
	w   io.Writer
	col int
}

const maxLineLen = 76

func (l *lineWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		chunk := maxLineLen - l.col
		if chunk > len(p) {
			chunk = len(p)
		}
		if _, err := l.w.Write(p[:chunk]); err != nil {
			return n, err
		}
		n += chunk
		l.col += chunk
		p = p[chunk:]
		if l.col == maxLineLen {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return n, err
			}
			l.col = 0
		}
	}
	return n, nil
}

func (l *lineWriter) Close() error {
	if l.col > 0 {
		_, err := io.WriteString(l.w, "\r\n")
		l.col = 0
		return err
	}
	return nil
}

// sendMailStartTLS runs one submission session: connect, upgrade to TLS,
// authenticate, send, quit. Unlike smtp.SendMail it refuses to continue
// without STARTTLS.
func sendMailStartTLS(ctx context.Context, addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := smtp.Dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return errors.New("smtp server does not support STARTTLS")
	}
	if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
