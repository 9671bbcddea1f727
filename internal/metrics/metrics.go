// Package metrics provides counters and Prometheus collectors describing
// notification runs. The process is short-lived, so metrics are pushed at the
// end of a run instead of being scraped.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Upload labels.
const (
	UploadSent     = "sent"
	UploadFailed   = "failed"
	UploadTooLarge = "too_large"
	UploadNoFile   = "no_file"
)

// 1. Internal State (Source of Truth)
var (
	notifications       int64
	notificationsFailed int64
	emailSent           int64
	emailFailed         int64
	chatSent            int64
	chatFailed          int64
	uploadsSent         int64
	uploadsSkipped      int64
	lastRun             int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmnotify_notifications_total",
			Help: "Voicemail notifications processed, by overall result",
		},
		[]string{"result"},
	)
	promDispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmnotify_dispatches_total",
			Help: "Dispatcher attempts, by channel and result",
		},
		[]string{"channel", "result"},
	)
	promUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vmnotify_recording_uploads_total",
			Help: "Recording uploads to the chat webhook, by outcome",
		},
		[]string{"outcome"},
	)
	promRecordingBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "vmnotify_recording_bytes",
			Help: "Size of recordings seen by the notifier",
			Buckets: []float64{
				64 << 10,
				256 << 10,
				1 << 20,
				4 << 20,
				8 << 20,
				16 << 20,
				64 << 20,
			},
		},
	)
	promLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vmnotify_last_run_timestamp_seconds",
			Help: "Unix timestamp of last run",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promNotifications,
		promDispatches,
		promUploads,
		promRecordingBytes,
		promLastRun,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncNotification records the overall outcome of one run.
func IncNotification(ok bool) {
	atomic.AddInt64(&notifications, counterInc)
	if ok {
		promNotifications.WithLabelValues(ResultSuccess).Inc()
		return
	}
	atomic.AddInt64(&notificationsFailed, counterInc)
	promNotifications.WithLabelValues(ResultFailure).Inc()
}

// IncDispatch records one dispatcher attempt for the named channel.
func IncDispatch(channel string, ok bool) {
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	switch {
	case channel == "email" && ok:
		atomic.AddInt64(&emailSent, counterInc)
	case channel == "email":
		atomic.AddInt64(&emailFailed, counterInc)
	case ok:
		atomic.AddInt64(&chatSent, counterInc)
	default:
		atomic.AddInt64(&chatFailed, counterInc)
	}
	promDispatches.WithLabelValues(channel, result).Inc()
}

// IncUpload records the outcome of the follow-up recording upload.
func IncUpload(outcome string) {
	if outcome == UploadSent {
		atomic.AddInt64(&uploadsSent, counterInc)
	} else {
		atomic.AddInt64(&uploadsSkipped, counterInc)
	}
	promUploads.WithLabelValues(outcome).Inc()
}

// ObserveRecordingSize records the size in bytes of a recording on disk.
func ObserveRecordingSize(n int64) {
	promRecordingBytes.Observe(float64(n))
}

// SetLastRun stores the provided time as the last run timestamp and
// updates the corresponding Prometheus gauge.
func SetLastRun(t time.Time) {
	atomic.StoreInt64(&lastRun, t.Unix())
	promLastRun.Set(float64(t.Unix()))
}

// 4. Snapshot (Influx line protocol source)

// StatsSnapshot is a snapshot of the process counters.
type StatsSnapshot struct {
	Notifications       int64 `json:"notifications"`
	NotificationsFailed int64 `json:"notifications_failed"`
	EmailSent           int64 `json:"email_sent"`
	EmailFailed         int64 `json:"email_failed"`
	ChatSent            int64 `json:"chat_sent"`
	ChatFailed          int64 `json:"chat_failed"`
	UploadsSent         int64 `json:"uploads_sent"`
	UploadsSkipped      int64 `json:"uploads_skipped"`
	LastRun             int64 `json:"last_run_timestamp"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters.
func GetSnapshot() StatsSnapshot {
	return StatsSnapshot{
		Notifications:       atomic.LoadInt64(&notifications),
		NotificationsFailed: atomic.LoadInt64(&notificationsFailed),
		EmailSent:           atomic.LoadInt64(&emailSent),
		EmailFailed:         atomic.LoadInt64(&emailFailed),
		ChatSent:            atomic.LoadInt64(&chatSent),
		ChatFailed:          atomic.LoadInt64(&chatFailed),
		UploadsSent:         atomic.LoadInt64(&uploadsSent),
		UploadsSkipped:      atomic.LoadInt64(&uploadsSkipped),
		LastRun:             atomic.LoadInt64(&lastRun),
	}
}
