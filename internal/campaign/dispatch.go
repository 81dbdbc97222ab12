package campaign

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/WaltBox/compliance-notice-sub000/internal/transport"
)

var (
	sendCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_sends_total",
		Help: "Per-recipient send attempts by channel and outcome",
	}, []string{"channel", "outcome"})
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_dispatch_duration_seconds",
		Help:    "Wall-clock duration of a full dispatch loop",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})
)

// Dispatcher sends one message per delivery, strictly in input order, one at
// a time. There is no retry, no batching, and no way to abort a run once it
// starts.
type Dispatcher struct {
	Transport transport.Transport
	Channel   Channel
	// Pacing is the fixed delay between consecutive sends. It is not
	// applied after the last send.
	Pacing time.Duration
	// OnResult, when set, observes each outcome as it is produced. The
	// email flow uses it to persist recipient logs interleaved with the
	// loop.
	OnResult func(DispatchResult)
	Logger   zerolog.Logger
}

// Dispatch runs the loop to completion and returns one result per delivery,
// index-correlated with the input. A single recipient's failure never stops
// the remaining sends. When the transport is unconfigured no send is
// attempted and every delivery is reported failed with the same reason.
func (d *Dispatcher) Dispatch(ctx context.Context, deliveries []Delivery) Result {
	start := time.Now()
	defer func() {
		dispatchDuration.WithLabelValues(string(d.Channel)).Observe(time.Since(start).Seconds())
	}()

	res := Result{
		TotalAttempted: len(deliveries),
		Results:        make([]DispatchResult, 0, len(deliveries)),
	}

	if d.Transport == nil || !d.Transport.Configured() {
		evt := d.Logger.Error().Str("channel", string(d.Channel))
		if d.Transport != nil {
			evt = evt.Str("provider", d.Transport.Name())
		}
		evt.Msg("transport not configured, campaign not attempted")
		for _, delivery := range deliveries {
			res.Failed++
			d.record(&res, DispatchResult{
				Identifier: delivery.Identifier,
				Error:      transport.ErrNotConfigured.Error(),
			})
			sendCounter.WithLabelValues(string(d.Channel), "unconfigured").Inc()
		}
		return res
	}

	for i, delivery := range deliveries {
		if i > 0 && d.Pacing > 0 {
			time.Sleep(d.Pacing)
		}

		id, err := d.Transport.Send(ctx, delivery.Identifier, delivery.Content)
		if err != nil {
			res.Failed++
			d.record(&res, DispatchResult{Identifier: delivery.Identifier, Error: err.Error()})
			sendCounter.WithLabelValues(string(d.Channel), "failed").Inc()
			d.Logger.Warn().Err(err).Str("provider", d.Transport.Name()).Str("identifier", delivery.Identifier).Msg("send failed")
			continue
		}

		res.Successful++
		d.record(&res, DispatchResult{Identifier: delivery.Identifier, Success: true, ProviderMessageID: id})
		sendCounter.WithLabelValues(string(d.Channel), "sent").Inc()
	}

	return res
}

func (d *Dispatcher) record(res *Result, r DispatchResult) {
	res.Results = append(res.Results, r)
	if d.OnResult != nil {
		d.OnResult(r)
	}
}
