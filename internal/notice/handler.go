package notice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/WaltBox/compliance-notice-sub000/internal/common"
)

var responseCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notice_responses_total",
	Help: "Tenant responses recorded by action",
}, []string{"action"})

type Handler struct {
	Store  Store
	Logger zerolog.Logger
}

func NewHandler(store Store, logger zerolog.Logger) *Handler {
	return &Handler{Store: store, Logger: logger}
}

// AdminRoutes mounts the property-manager CRUD surface. Authentication is
// enforced upstream of this service.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/notices", h.create)
	r.Get("/notices", h.list)
	r.Get("/notices/{id}", h.get)
	r.Patch("/notices/{id}", h.update)
	r.Delete("/notices/{id}", h.delete)
	r.Get("/notices/{id}/responses", h.listResponses)
}

// PublicRoutes mounts the tenant-facing landing page surface.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/pages/{slug}", h.publicPage)
	r.Post("/pages/{slug}/responses", h.submitResponse)
}

type noticeRequest struct {
	Slug         string `json:"slug"`
	PropertyName string `json:"property_name"`
	ManagerEmail string `json:"manager_email"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	ProgramURL   string `json:"program_url"`
	Published    *bool  `json:"published"`
}

func (req noticeRequest) validate() error {
	if strings.TrimSpace(req.Slug) == "" {
		return errors.New("slug is required")
	}
	if strings.TrimSpace(req.PropertyName) == "" {
		return errors.New("property_name is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title is required")
	}
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req noticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		h.respondErr(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	n := &Notice{
		ID:           uuid.NewString(),
		Slug:         strings.TrimSpace(req.Slug),
		PropertyName: req.PropertyName,
		ManagerEmail: req.ManagerEmail,
		Title:        req.Title,
		Body:         req.Body,
		ProgramURL:   req.ProgramURL,
		Published:    req.Published != nil && *req.Published,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.Store.CreateNotice(r.Context(), n); err != nil {
		h.respondErr(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, n)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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

	notices, total, err := h.Store.ListNotices(r.Context(), (page-1)*pageSize, pageSize)
	if err != nil {
		h.respondErr(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"data": notices,
		"pagination": map[string]int{
			"page":        page,
			"page_size":   pageSize,
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
		},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.GetNotice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, n)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.GetNotice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}

	var req noticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if req.Slug != "" {
		n.Slug = strings.TrimSpace(req.Slug)
	}
	if req.PropertyName != "" {
		n.PropertyName = req.PropertyName
	}
	if req.ManagerEmail != "" {
		n.ManagerEmail = req.ManagerEmail
	}
	if req.Title != "" {
		n.Title = req.Title
	}
	if req.Body != "" {
		n.Body = req.Body
	}
	if req.ProgramURL != "" {
		n.ProgramURL = req.ProgramURL
	}
	if req.Published != nil {
		n.Published = *req.Published
	}

	if err := h.Store.UpdateNotice(r.Context(), n); err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, n)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteNotice(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listResponses(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetNotice(r.Context(), id); err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}
	responses, err := h.Store.ListResponses(r.Context(), id)
	if err != nil {
		h.respondErr(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"data": responses})
}

func (h *Handler) publicPage(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}
	// tenants never see the manager's contact details
	h.respondJSON(w, http.StatusOK, map[string]any{
		"slug":          n.Slug,
		"property_name": n.PropertyName,
		"title":         n.Title,
		"body":          n.Body,
		"program_url":   n.ProgramURL,
	})
}

type responseRequest struct {
	Action      Action `json:"action"`
	TenantName  string `json:"tenant_name"`
	TenantEmail string `json:"tenant_email"`
	UnitNumber  string `json:"unit_number"`
}

func (h *Handler) submitResponse(w http.ResponseWriter, r *http.Request) {
	n, err := h.Store.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.storeErr(r.Context(), w, err)
		return
	}

	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErr(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if !req.Action.Valid() {
		h.respondErr(r.Context(), w, http.StatusBadRequest, errors.New("action must be opt_out, opt_in or upgrade"))
		return
	}
	if strings.TrimSpace(req.TenantName) == "" {
		h.respondErr(r.Context(), w, http.StatusBadRequest, errors.New("tenant_name is required"))
		return
	}

	resp := &Response{
		ID:          uuid.NewString(),
		NoticeID:    n.ID,
		Action:      req.Action,
		TenantName:  req.TenantName,
		TenantEmail: req.TenantEmail,
		UnitNumber:  req.UnitNumber,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Store.CreateResponse(r.Context(), resp); err != nil {
		h.respondErr(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	responseCounter.WithLabelValues(string(req.Action)).Inc()
	h.respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) storeErr(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoticeNotFound) {
		h.respondErr(ctx, w, http.StatusNotFound, err)
		return
	}
	h.respondErr(ctx, w, http.StatusInternalServerError, err)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := common.WithContext(ctx, h.Logger)
	logger.Error().Err(err).Int("status", status).Msg("notice handler failed")
	http.Error(w, err.Error(), status)
}
