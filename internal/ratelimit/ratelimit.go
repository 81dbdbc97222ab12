// Package ratelimit guards the public tenant endpoints with a fixed-window
// request counter. The counter store is an injected capability: Redis when a
// shared counter is available, an in-process map otherwise.
package ratelimit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type Store interface {
	// Incr bumps the counter for key, setting its expiry to window when
	// the key is fresh, and returns the new count.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Middleware returns a chi-compatible middleware rejecting clients that
// exceed max requests per window. Store failures fail open: limiting is a
// guard rail, not an availability dependency.
func Middleware(store Store, max int64, window time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:" + clientIP(r)
			count, err := store.Incr(r.Context(), key, window)
			if err != nil {
				logger.Warn().Err(err).Msg("rate limit store unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if count > max {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
