// Package campaign implements the bulk notification pipeline: quota
// tracking, the sequential dispatch loop, and campaign audit logging.
package campaign

import (
	"time"

	"github.com/WaltBox/compliance-notice-sub000/internal/recipients"
	"github.com/WaltBox/compliance-notice-sub000/internal/transport"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Contact returns the recipient contact field this channel dispatches to.
func (c Channel) Contact() recipients.Contact {
	if c == ChannelEmail {
		return recipients.ContactEmail
	}
	return recipients.ContactPhone
}

type Status string

const (
	// StatusDispatching is persisted only for email campaigns, whose log
	// row exists while the loop is still running.
	StatusDispatching Status = "dispatching"
	StatusCompleted   Status = "completed"
	StatusPartial     Status = "partial"
)

// Delivery is one rendered message bound for one destination.
type Delivery struct {
	Identifier string
	Content    transport.Content
}

// DispatchResult is the immutable outcome for one recipient.
type DispatchResult struct {
	Identifier        string `json:"identifier"`
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Result aggregates one dispatch run. Results index-correlates with the
// input delivery order.
type Result struct {
	TotalAttempted int              `json:"total_attempted"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	Results        []DispatchResult `json:"details"`
}

// LogEntry is the persisted aggregate record of one campaign run.
type LogEntry struct {
	ID              string     `json:"id"`
	Channel         Channel    `json:"channel"`
	TotalRecipients int        `json:"total_recipients"`
	SuccessfulSends int        `json:"successful_sends"`
	FailedSends     int        `json:"failed_sends"`
	MessagePreview  string     `json:"message_preview"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// RecipientLog is one persisted per-recipient delivery outcome. Written
// interleaved with the dispatch loop for email campaigns, and updated later
// by the status worker when provider callbacks arrive.
type RecipientLog struct {
	ID                string    `json:"id"`
	CampaignID        string    `json:"campaign_id"`
	Identifier        string    `json:"identifier"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// WindowTotals are the summed counts across all log entries in a quota
// window.
type WindowTotals struct {
	Total      int
	Successful int
	Failed     int
}

// QuotaSnapshot is returned to the web layer before a send is confirmed.
type QuotaSnapshot struct {
	TotalMessagesSentToday int `json:"total_messages_sent_today"`
	SuccessfulToday        int `json:"successful_today"`
	FailedToday            int `json:"failed_today"`
	DailyLimit             int `json:"daily_limit"`
	RemainingQuota         int `json:"remaining_quota"`
}

// previewLength bounds how much of a template is kept for audit.
const previewLength = 100

func preview(template string) string {
	runes := []rune(template)
	if len(runes) <= previewLength {
		return template
	}
	return string(runes[:previewLength])
}

func statusFor(failed int) Status {
	if failed == 0 {
		return StatusCompleted
	}
	return StatusPartial
}
