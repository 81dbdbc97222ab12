package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var statusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_status_updates_total",
	Help: "Recipient status updates applied from provider events",
}, []string{"provider", "outcome"})

// RecipientStatusStore is the one store capability the worker needs.
type RecipientStatusStore interface {
	UpdateRecipientStatus(ctx context.Context, providerMessageID, status string) (bool, error)
}

// Worker consumes delivery events and folds them into the recipient logs.
type Worker struct {
	ReaderFactory func() *kafka.Reader
	Store         RecipientStatusStore
	Logger        zerolog.Logger
}

func (w *Worker) Run(ctx context.Context) error {
	reader := w.ReaderFactory()
	defer reader.Close()
	tracer := otel.Tracer("status-worker")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}

		var event DeliveryEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.Logger.Error().Err(err).Msg("failed to decode delivery event")
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		spanCtx, span := tracer.Start(ctx, "apply_delivery_event")
		span.SetAttributes(attribute.String("provider_message_id", event.ProviderMessageID))

		status := MapProviderStatus(event.Provider, event.Status)
		if status == "" {
			w.Logger.Warn().Str("provider", event.Provider).Msg("unknown provider, dropping event")
			statusUpdates.WithLabelValues(event.Provider, "unknown_provider").Inc()
			span.End()
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		matched, err := w.Store.UpdateRecipientStatus(spanCtx, event.ProviderMessageID, status)
		if err != nil {
			span.RecordError(err)
			span.End()
			return fmt.Errorf("update recipient status: %w", err)
		}
		if !matched {
			// SMS campaigns have no per-recipient rows; their events
			// carry no audit update to make.
			statusUpdates.WithLabelValues(event.Provider, "unmatched").Inc()
		} else {
			statusUpdates.WithLabelValues(event.Provider, "applied").Inc()
		}

		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}
