package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/vmnotify/vmnotify/internal/config"
	"github.com/vmnotify/vmnotify/internal/logging"
	"github.com/vmnotify/vmnotify/internal/metrics"
)

// Outcome is the combined result of one run.
type Outcome struct {
	Results []Result
	// OK is true when at least one dispatcher sent its notification.
	OK bool
}

// Notifier runs its dispatchers one after another. A failing dispatcher never
// stops the ones after it.
type Notifier struct {
	dispatchers []Dispatcher
}

// New returns a Notifier with the email dispatcher followed by the Discord
// dispatcher. Both are always registered; an unconfigured channel reports
// ErrConfigMissing when run.
func New(cfg *config.Config) *Notifier {
	n := &Notifier{}
	n.Add(&Email{Config: cfg.Email()})
	n.Add(&Discord{Config: cfg.Webhook()})
	return n
}

// Add appends a dispatcher.
func (n *Notifier) Add(d Dispatcher) {
	if d != nil {
		n.dispatchers = append(n.dispatchers, d)
	}
}

// Len returns the number of registered dispatchers.
func (n *Notifier) Len() int {
	return len(n.dispatchers)
}

// Run dispatches req on every channel in order and OR-combines the results.
func (n *Notifier) Run(ctx context.Context, req Request) Outcome {
	if info, err := os.Stat(req.RecordingPath); err == nil {
		metrics.ObserveRecordingSize(info.Size())
	}

	out := Outcome{Results: make([]Result, 0, len(n.dispatchers))}
	for _, d := range n.dispatchers {
		res := dispatchSafely(ctx, d, req)
		metrics.IncDispatch(res.Channel, res.Sent)
		out.Results = append(out.Results, res)
		out.OK = out.OK || res.Sent
	}
	metrics.IncNotification(out.OK)
	return out
}

// dispatchSafely turns a panicking dispatcher into a transport failure.
func dispatchSafely(ctx context.Context, d Dispatcher, req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get().Error().Str("channel", d.Name()).Interface("panic", r).Msg("dispatcher panicked")
			res = failed(d.Name(), fmt.Errorf("%w: panic: %v", ErrTransport, r))
		}
	}()
	return d.Dispatch(ctx, req)
}
