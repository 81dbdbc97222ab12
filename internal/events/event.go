// Package events carries provider delivery callbacks (Twilio status
// callbacks, SendGrid event webhooks) from the public webhook endpoint to
// the status worker that folds them into the recipient audit trail.
package events

import "time"

// DeliveryEvent is the normalized form of one provider callback.
type DeliveryEvent struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Provider          string    `json:"provider"`
	Status            string    `json:"status"`
	Identifier        string    `json:"identifier,omitempty"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// MapProviderStatus folds the provider-specific status vocabulary into the
// three states the recipient log records.
func MapProviderStatus(provider, status string) string {
	switch provider {
	case "twilio":
		switch status {
		case "delivered":
			return "delivered"
		case "failed", "undelivered", "canceled":
			return "failed"
		default:
			return "sent"
		}
	case "sendgrid":
		switch status {
		case "delivered", "open", "click":
			return "delivered"
		case "bounce", "dropped", "deferred", "spamreport":
			return "failed"
		default:
			return "sent"
		}
	default:
		return ""
	}
}
