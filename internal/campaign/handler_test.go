package campaign

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

func newTestHandler(store *fakeStore, sms *fakeTransport) http.Handler {
	svc := newTestService(store, sms, &fakeTransport{configured: true})
	h := NewHandler(svc, store, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.Routes(r)
	})
	return r
}

func TestHandlerParseList(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeTransport{configured: true})

	body := `{"channel":"sms","list":"First Name,Last Name,Phone\nAnn,Lee,5550000001"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/recipients/parse", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Valid []struct {
			Phone string `json:"phone"`
		} `json:"valid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Valid) != 1 || resp.Valid[0].Phone != "+15550000001" {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestHandlerParseMissingColumns(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeTransport{configured: true})

	body := `{"channel":"sms","list":"Foo,Bar\na,b"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/recipients/parse", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, expected 400", rec.Code)
	}
	var resp struct {
		MissingColumns []string `json:"missing_columns"`
		FoundHeaders   []string `json:"found_headers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.MissingColumns) != 2 || len(resp.FoundHeaders) != 2 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
}

func TestHandlerParseRejectsUnknownChannel(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeTransport{configured: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/recipients/parse", strings.NewReader(`{"channel":"fax","list":"x"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, expected 400", rec.Code)
	}
}

func TestHandlerPreview(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeTransport{configured: true})

	body := `{"template":"Hi {{firstName}} {{lastName}}!","first_name":"Ann","last_name":"Lee"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/templates/preview", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Rendered    string `json:"rendered"`
		Measurement struct {
			SegmentCount int `json:"segment_count"`
		} `json:"measurement"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Rendered != "Hi Ann Lee!" {
		t.Fatalf("unexpected rendered message: %q", resp.Rendered)
	}
	if resp.Measurement.SegmentCount != 1 {
		t.Fatalf("unexpected segment count: %d", resp.Measurement.SegmentCount)
	}
}

func TestHandlerSendSMS(t *testing.T) {
	store := &fakeStore{}
	handler := newTestHandler(store, &fakeTransport{configured: true})

	body := `{"list":"First Name,Last Name,Phone\nAnn,Lee,5550000001","template":"Hi {{firstName}}","pacing_ms":0}`
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/sms", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success    bool `json:"success"`
		Successful int  `json:"successful"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Successful != 1 {
		t.Fatalf("unexpected response: %s", rec.Body.String())
	}
	if len(store.campaigns) != 1 {
		t.Fatalf("expected campaign log, got %d", len(store.campaigns))
	}
}

func TestHandlerSendSMSQuotaExceeded(t *testing.T) {
	store := &fakeStore{totals: WindowTotals{Total: 1000}}
	handler := newTestHandler(store, &fakeTransport{configured: true})

	body := `{"list":"First Name,Last Name,Phone\nAnn,Lee,5550000001","template":"Hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/sms", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, expected 429 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestHandlerQuota(t *testing.T) {
	store := &fakeStore{totals: WindowTotals{Total: 950, Successful: 940, Failed: 10}}
	handler := newTestHandler(store, &fakeTransport{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/quota?channel=sms", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var snap QuotaSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if snap.RemainingQuota != 50 || snap.DailyLimit != 1000 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestHandlerQuotaRequiresChannel(t *testing.T) {
	handler := newTestHandler(&fakeStore{}, &fakeTransport{configured: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/quota", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, expected 400", rec.Code)
	}
}
