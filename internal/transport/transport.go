// Package transport holds the outbound messaging provider clients. Each
// provider is an opaque capability: one Send call per destination.
package transport

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a provider is missing credentials. The
// dispatch loop treats it as fatal for the whole campaign.
var ErrNotConfigured = errors.New("transport is not configured")

// Content is the rendered message for one recipient. Subject is only
// meaningful for email.
type Content struct {
	Subject string
	Body    string
}

type Transport interface {
	Name() string
	Configured() bool
	// Send delivers content to one destination and returns the
	// provider-assigned message ID.
	Send(ctx context.Context, destination string, content Content) (string, error)
}
