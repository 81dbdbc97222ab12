package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := store.Incr(ctx, "k", time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("count=%d, expected %d", got, want)
		}
	}
}

func TestMemoryStoreSeparateKeys(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _ = store.Incr(ctx, "a", time.Minute)
	got, _ := store.Incr(ctx, "b", time.Minute)
	if got != 1 {
		t.Fatalf("keys must not share counters, got %d", got)
	}
}

func TestMemoryStoreWindowExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, _ = store.Incr(ctx, "k", 10*time.Millisecond)
	_, _ = store.Incr(ctx, "k", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	got, err := store.Incr(ctx, "k", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected counter reset after window, got %d", got)
	}
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	handler := Middleware(NewMemoryStore(), 2, time.Minute, zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

type errStore struct{}

func (errStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	handler := Middleware(errStore{}, 1, time.Minute, zerolog.Nop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", rec.Code)
	}
}
