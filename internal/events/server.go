package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WaltBox/compliance-notice-sub000/internal/common"
)

var eventCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "delivery_events_total",
	Help: "Provider delivery callbacks received",
}, []string{"provider", "status"})

// Publisher is the slice of kafka.Writer the server depends on.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Server receives provider delivery callbacks, normalizes them, and
// publishes them for the status worker.
type Server struct {
	Producer Publisher
	Logger   zerolog.Logger
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/providers/{provider}/events", s.handle)
	return r
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("delivery-webhook").Start(r.Context(), "ingest_callback")
	defer span.End()

	provider := chi.URLParam(r, "provider")
	events, err := s.normalize(provider, r)
	if err != nil {
		s.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}
	span.SetAttributes(attribute.String("provider", provider), attribute.Int("event.count", len(events)))

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		body, err := json.Marshal(event)
		if err != nil {
			s.respondErr(ctx, w, http.StatusInternalServerError, err)
			return
		}
		msgs = append(msgs, kafka.Message{Key: []byte(event.ProviderMessageID), Value: body})
	}

	if err := s.Producer.WriteMessages(ctx, msgs...); err != nil {
		s.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}

	eventCounter.WithLabelValues(provider, "ok").Add(float64(len(events)))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) normalize(provider string, r *http.Request) ([]DeliveryEvent, error) {
	switch provider {
	case "twilio":
		return normalizeTwilio(r)
	case "sendgrid":
		return normalizeSendGrid(r)
	default:
		return nil, errors.New("unsupported provider")
	}
}

// Twilio posts status callbacks as form-encoded fields.
func normalizeTwilio(r *http.Request) ([]DeliveryEvent, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	sid := r.PostFormValue("MessageSid")
	if sid == "" {
		return nil, errors.New("twilio MessageSid missing")
	}
	status := r.PostFormValue("MessageStatus")
	if status == "" {
		return nil, errors.New("twilio MessageStatus missing")
	}
	return []DeliveryEvent{{
		ProviderMessageID: sid,
		Provider:          "twilio",
		Status:            status,
		Identifier:        r.PostFormValue("To"),
		OccurredAt:        time.Now().UTC(),
	}}, nil
}

// SendGrid posts a JSON array, one element per event.
func normalizeSendGrid(r *http.Request) ([]DeliveryEvent, error) {
	var payload []struct {
		MessageID string `json:"sg_message_id"`
		Event     string `json:"event"`
		Email     string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, errors.New("sendgrid payload is empty")
	}

	events := make([]DeliveryEvent, 0, len(payload))
	for _, e := range payload {
		if e.MessageID == "" || e.Event == "" {
			return nil, errors.New("sendgrid event missing sg_message_id or event")
		}
		events = append(events, DeliveryEvent{
			ProviderMessageID: e.MessageID,
			Provider:          "sendgrid",
			Status:            e.Event,
			Identifier:        e.Email,
			OccurredAt:        time.Now().UTC(),
		})
	}
	return events, nil
}

func (s *Server) respondErr(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := common.WithContext(ctx, s.Logger)
	logger.Error().Err(err).Int("status", status).Msg("delivery webhook failed")
	eventCounter.WithLabelValues("unknown", "error").Inc()
	http.Error(w, err.Error(), status)
}
