package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/vmnotify/vmnotify/internal/logging"
)

// JobName is the Pushgateway job label for vmnotify runs.
const JobName = "vmnotify"

// Targets lists where run metrics are published. Empty fields are skipped.
type Targets struct {
	PushgatewayURL string
	Influx         InfluxTarget
}

// pushTimeout bounds metric publishing so it cannot hold up process exit.
var pushTimeout = 10 * time.Second

// PushGateway pushes every collector in the default registry to a Prometheus
// Pushgateway under JobName.
func PushGateway(ctx context.Context, client *http.Client, gatewayURL string) error {
	if gatewayURL == "" {
		return nil
	}
	err := push.New(gatewayURL, JobName).
		Client(client).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		logging.Get().Error().Err(err).Str("url", gatewayURL).Msg("pushgateway push failed")
	}
	return err
}

// Publish sends the run's metrics to every configured target. Errors are
// logged by the individual pushers and never reported to the caller.
func Publish(ctx context.Context, t Targets) {
	if t.PushgatewayURL == "" && t.Influx.URL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	client := &http.Client{Timeout: pushTimeout}
	_ = PushGateway(ctx, client, t.PushgatewayURL)
	_ = PushInflux(ctx, client, t.Influx)
}
