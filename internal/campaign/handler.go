package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/WaltBox/compliance-notice-sub000/internal/common"
	"github.com/WaltBox/compliance-notice-sub000/internal/recipients"
	"github.com/WaltBox/compliance-notice-sub000/internal/template"
)

var (
	campaignReqCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campaign_requests_total",
		Help: "Campaign API requests by endpoint and result",
	}, []string{"endpoint", "status"})
	campaignReqLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campaign_request_duration_seconds",
		Help:    "Latency of campaign API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)

type Handler struct {
	Service *Service
	Store   LogStore
	Logger  zerolog.Logger
	tracer  trace.Tracer
}

func NewHandler(service *Service, store LogStore, logger zerolog.Logger) *Handler {
	return &Handler{
		Service: service,
		Store:   store,
		Logger:  logger,
		tracer:  otel.Tracer("campaign-api"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/recipients/parse", h.parseList)
	r.Post("/templates/preview", h.previewTemplate)
	r.Post("/campaigns/sms", h.sendSMS)
	r.Post("/campaigns/email", h.sendEmail)
	r.Get("/campaigns", h.listCampaigns)
	r.Get("/campaigns/{id}", h.getCampaign)
	r.Get("/quota", h.quota)
}

type parseRequest struct {
	Channel Channel `json:"channel"`
	List    string  `json:"list"`
}

func (h *Handler) parseList(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "parse_list")
	defer span.End()

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, "parse", http.StatusBadRequest, err)
		return
	}
	if req.Channel != ChannelSMS && req.Channel != ChannelEmail {
		h.respondErr(ctx, w, "parse", http.StatusBadRequest, errors.New("channel must be sms or email"))
		return
	}

	result, err := recipients.Parse(req.List, req.Channel.Contact())
	if err != nil {
		h.handleDomainErr(ctx, w, "parse", err)
		return
	}
	h.respondJSON(w, "parse", http.StatusOK, result)
}

type previewRequest struct {
	Template  string `json:"template"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (h *Handler) previewTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "preview_template")
	defer span.End()

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, "preview", http.StatusBadRequest, err)
		return
	}

	rendered := template.Personalize(req.Template, recipients.Record{FirstName: req.FirstName, LastName: req.LastName})
	h.respondJSON(w, "preview", http.StatusOK, map[string]any{
		"rendered":    rendered,
		"measurement": template.Measure(rendered),
	})
}

type sendCampaignRequest struct {
	List     string `json:"list"`
	Template string `json:"template"`
	Subject  string `json:"subject"`
	PacingMs *int   `json:"pacing_ms"`
}

func (h *Handler) sendSMS(w http.ResponseWriter, r *http.Request) {
	h.sendCampaign(w, r, ChannelSMS)
}

func (h *Handler) sendEmail(w http.ResponseWriter, r *http.Request) {
	h.sendCampaign(w, r, ChannelEmail)
}

func (h *Handler) sendCampaign(w http.ResponseWriter, r *http.Request, channel Channel) {
	endpoint := "send_" + string(channel)
	ctx, span := h.tracer.Start(r.Context(), endpoint)
	defer span.End()

	start := time.Now()
	defer func() {
		campaignReqLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	var req sendCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(ctx, w, endpoint, http.StatusBadRequest, err)
		return
	}

	sendReq := SendRequest{List: req.List, Template: req.Template, Subject: req.Subject, PacingMs: req.PacingMs}
	var (
		outcome *SendOutcome
		err     error
	)
	if channel == ChannelEmail {
		outcome, err = h.Service.SendEmail(ctx, sendReq)
	} else {
		outcome, err = h.Service.SendSMS(ctx, sendReq)
	}
	if err != nil {
		h.handleDomainErr(ctx, w, endpoint, err)
		return
	}
	h.respondJSON(w, endpoint, http.StatusOK, outcome)
}

func (h *Handler) quota(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "quota")
	defer span.End()

	channel := Channel(r.URL.Query().Get("channel"))
	if channel != ChannelSMS && channel != ChannelEmail {
		h.respondErr(ctx, w, "quota", http.StatusBadRequest, errors.New("channel must be sms or email"))
		return
	}

	snapshot, err := h.Service.QuotaFor(ctx, channel)
	if err != nil {
		h.respondErr(ctx, w, "quota", http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, "quota", http.StatusOK, snapshot)
}

func (h *Handler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "list_campaigns")
	defer span.End()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	entries, total, err := h.Store.ListCampaignLogs(ctx, (page-1)*pageSize, pageSize,
		r.URL.Query().Get("channel"), r.URL.Query().Get("status"))
	if err != nil {
		h.respondErr(ctx, w, "list", http.StatusInternalServerError, err)
		return
	}

	h.respondJSON(w, "list", http.StatusOK, map[string]any{
		"data": entries,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}

func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "get_campaign")
	defer span.End()

	id := chi.URLParam(r, "id")
	entry, err := h.Store.GetCampaignLog(ctx, id)
	if err != nil {
		h.handleDomainErr(ctx, w, "get", err)
		return
	}

	resp := map[string]any{"campaign": entry}
	if entry.Channel == ChannelEmail {
		logs, err := h.Store.ListRecipientLogs(ctx, id)
		if err != nil {
			h.respondErr(ctx, w, "get", http.StatusInternalServerError, err)
			return
		}
		resp["recipients"] = logs
	}
	h.respondJSON(w, "get", http.StatusOK, resp)
}

// handleDomainErr maps typed domain failures onto HTTP statuses. Input and
// quota errors are the caller's to present; everything else is a 500.
func (h *Handler) handleDomainErr(ctx context.Context, w http.ResponseWriter, endpoint string, err error) {
	var missingCols *recipients.MissingColumnsError
	var quotaErr *QuotaError
	switch {
	case errors.As(err, &missingCols):
		campaignReqCounter.WithLabelValues(endpoint, "invalid").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":           missingCols.Error(),
			"missing_columns": missingCols.Missing,
			"found_headers":   missingCols.Found,
		})
	case errors.As(err, &quotaErr):
		campaignReqCounter.WithLabelValues(endpoint, "quota_exceeded").Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":     quotaErr.Error(),
			"requested": quotaErr.Requested,
			"remaining": quotaErr.Remaining,
		})
	case errors.Is(err, ErrEmptyTemplate), errors.Is(err, ErrNoValidRecipients):
		h.respondErr(ctx, w, endpoint, http.StatusBadRequest, err)
	case errors.Is(err, ErrCampaignNotFound):
		h.respondErr(ctx, w, endpoint, http.StatusNotFound, err)
	default:
		h.respondErr(ctx, w, endpoint, http.StatusInternalServerError, err)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, endpoint string, status int, payload any) {
	campaignReqCounter.WithLabelValues(endpoint, "ok").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, endpoint string, status int, err error) {
	logger := common.WithContext(ctx, h.Logger)
	logger.Error().Err(err).Int("status", status).Str("endpoint", endpoint).Msg("campaign handler failed")
	campaignReqCounter.WithLabelValues(endpoint, "error").Inc()
	http.Error(w, err.Error(), status)
}
