// Package notify delivers voicemail notifications over email and a Discord
// webhook. Each channel is a Dispatcher that reduces every failure to a
// Result; nothing escapes a dispatcher as a panic or returned error.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Unknown is shown in place of empty caller details.
const Unknown = "Unknown"

// TimestampLayout formats the local receive time shown in messages.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	// ErrConfigMissing means the channel lacks required configuration.
	ErrConfigMissing = errors.New("configuration missing")
	// ErrTransport covers network, auth, protocol and file I/O failures.
	ErrTransport = errors.New("transport failure")
	// ErrUnexpectedStatus means the webhook answered with a status other than 204.
	ErrUnexpectedStatus = errors.New("unexpected webhook status")
)

// nowHook is overridden in tests to pin timestamps.
var nowHook = time.Now

// Request is one voicemail event.
type Request struct {
	ID            uuid.UUID
	RecordingPath string
	CallerNumber  string
	CallerName    string
}

// NewRequest builds a Request with a fresh ID.
func NewRequest(recordingPath, callerNumber, callerName string) Request {
	return Request{
		ID:            uuid.New(),
		RecordingPath: recordingPath,
		CallerNumber:  callerNumber,
		CallerName:    callerName,
	}
}

// DisplayName picks the caller label: name, else number, else Unknown.
func DisplayName(name, number string) string {
	if name != "" {
		return name
	}
	if number != "" {
		return number
	}
	return Unknown
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func timestamp() string {
	return nowHook().Format(TimestampLayout)
}

// Result is the outcome of one dispatcher.
type Result struct {
	Channel string
	Sent    bool
	// Err wraps ErrConfigMissing, ErrTransport or ErrUnexpectedStatus when Sent is false.
	Err error
	// Attached is set when the recording went out with the message.
	Attached bool
	// Uploaded is set when the follow-up upload was accepted.
	Uploaded bool
}

func failed(channel string, err error) Result {
	return Result{Channel: channel, Err: err}
}

// Dispatcher is implemented by every delivery channel.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, req Request) Result
}
