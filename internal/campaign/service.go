package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/WaltBox/compliance-notice-sub000/internal/recipients"
	"github.com/WaltBox/compliance-notice-sub000/internal/template"
	"github.com/WaltBox/compliance-notice-sub000/internal/transport"
)

var (
	ErrEmptyTemplate     = errors.New("template cannot be empty")
	ErrNoValidRecipients = errors.New("no valid recipients in list")
)

// QuotaError rejects a campaign whose recipient count exceeds what remains
// of the daily allowance.
type QuotaError struct {
	Channel   Channel
	Requested int
	Remaining int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s campaign of %d recipients exceeds remaining daily quota of %d", e.Channel, e.Requested, e.Remaining)
}

// SendRequest is one campaign invocation: a raw uploaded list plus the
// message template. Subject applies to email only.
type SendRequest struct {
	List     string
	Template string
	Subject  string
	// PacingMs overrides the configured inter-send delay for this run.
	PacingMs *int
}

// maxPacing bounds a per-campaign pacing override.
const maxPacing = 10 * time.Second

// SendOutcome is the campaign result object handed back to the web layer.
type SendOutcome struct {
	CampaignID string `json:"campaign_id"`
	Success    bool   `json:"success"`
	Result
	InvalidRows []recipients.InvalidRow `json:"invalid_rows"`
	Stats       recipients.Stats        `json:"stats"`
}

// Service orchestrates one campaign run: parse, quota check, personalize,
// dispatch, log.
type Service struct {
	Store           LogStore
	SMS             transport.Transport
	Email           transport.Transport
	Quota           *QuotaTracker
	Pacing          time.Duration
	SMSDailyLimit   int
	EmailDailyLimit int
	Logger          zerolog.Logger
}

// SendSMS runs an SMS campaign. The aggregate log row is written once,
// after the loop completes; a failed write is reported operationally but
// never fails the campaign.
func (s *Service) SendSMS(ctx context.Context, req SendRequest) (*SendOutcome, error) {
	ctx, span := otel.Tracer("campaign").Start(ctx, "dispatch_sms")
	defer span.End()

	parsed, err := s.prepare(ctx, req, ChannelSMS, s.SMSDailyLimit)
	if err != nil {
		return nil, err
	}

	dispatcher := &Dispatcher{Transport: s.SMS, Channel: ChannelSMS, Pacing: s.pacingFor(req), Logger: s.Logger}
	result := dispatcher.Dispatch(ctx, s.render(parsed.Valid, req, ChannelSMS))

	campaignID := uuid.NewString()
	span.SetAttributes(attribute.String("campaign.id", campaignID))
	entry := &LogEntry{
		ID:              campaignID,
		Channel:         ChannelSMS,
		TotalRecipients: result.TotalAttempted,
		SuccessfulSends: result.Successful,
		FailedSends:     result.Failed,
		MessagePreview:  preview(req.Template),
		Status:          statusFor(result.Failed),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Store.CreateCampaignLog(ctx, entry); err != nil {
		s.Logger.Error().Err(err).Str("campaign_id", campaignID).Msg("campaign log write failed")
	}

	return s.outcome(campaignID, result, parsed), nil
}

// SendEmail runs an email campaign. The log row is created before the loop
// and each recipient outcome is persisted as it occurs, so a crash mid-run
// leaves a partial but accurate audit trail.
func (s *Service) SendEmail(ctx context.Context, req SendRequest) (*SendOutcome, error) {
	ctx, span := otel.Tracer("campaign").Start(ctx, "dispatch_email")
	defer span.End()

	parsed, err := s.prepare(ctx, req, ChannelEmail, s.EmailDailyLimit)
	if err != nil {
		return nil, err
	}

	campaignID := uuid.NewString()
	span.SetAttributes(attribute.String("campaign.id", campaignID))
	entry := &LogEntry{
		ID:              campaignID,
		Channel:         ChannelEmail,
		TotalRecipients: len(parsed.Valid),
		MessagePreview:  preview(req.Template),
		Status:          StatusDispatching,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.Store.CreateCampaignLog(ctx, entry); err != nil {
		s.Logger.Error().Err(err).Str("campaign_id", campaignID).Msg("campaign log write failed")
	}

	dispatcher := &Dispatcher{
		Transport: s.Email,
		Channel:   ChannelEmail,
		Pacing:    s.pacingFor(req),
		Logger:    s.Logger,
		OnResult: func(r DispatchResult) {
			s.logRecipient(ctx, campaignID, r)
		},
	}
	result := dispatcher.Dispatch(ctx, s.render(parsed.Valid, req, ChannelEmail))

	if err := s.Store.UpdateCampaignLog(ctx, campaignID, result.Successful, result.Failed, statusFor(result.Failed)); err != nil {
		s.Logger.Error().Err(err).Str("campaign_id", campaignID).Msg("campaign log update failed")
	}

	return s.outcome(campaignID, result, parsed), nil
}

// QuotaFor returns the current quota snapshot for a channel.
func (s *Service) QuotaFor(ctx context.Context, channel Channel) (QuotaSnapshot, error) {
	return s.Quota.Remaining(ctx, channel, s.dailyLimit(channel))
}

func (s *Service) prepare(ctx context.Context, req SendRequest, channel Channel, dailyLimit int) (*recipients.ParseResult, error) {
	if strings.TrimSpace(req.Template) == "" {
		return nil, ErrEmptyTemplate
	}

	parsed, err := recipients.Parse(req.List, channel.Contact())
	if err != nil {
		return nil, err
	}
	if len(parsed.Valid) == 0 {
		return nil, ErrNoValidRecipients
	}

	snapshot, err := s.Quota.Remaining(ctx, channel, dailyLimit)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}
	if len(parsed.Valid) > snapshot.RemainingQuota {
		return nil, &QuotaError{Channel: channel, Requested: len(parsed.Valid), Remaining: snapshot.RemainingQuota}
	}
	return parsed, nil
}

func (s *Service) render(records []recipients.Record, req SendRequest, channel Channel) []Delivery {
	deliveries := make([]Delivery, len(records))
	for i, rec := range records {
		deliveries[i] = Delivery{
			Identifier: rec.Identifier(channel.Contact()),
			Content: transport.Content{
				Subject: template.Personalize(req.Subject, rec),
				Body:    template.Personalize(req.Template, rec),
			},
		}
	}
	return deliveries
}

func (s *Service) logRecipient(ctx context.Context, campaignID string, r DispatchResult) {
	status := "sent"
	if !r.Success {
		status = "failed"
	}
	rl := &RecipientLog{
		ID:                uuid.NewString(),
		CampaignID:        campaignID,
		Identifier:        r.Identifier,
		Status:            status,
		ProviderMessageID: r.ProviderMessageID,
		Error:             r.Error,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.Store.CreateRecipientLog(ctx, rl); err != nil {
		s.Logger.Error().Err(err).Str("campaign_id", campaignID).Str("identifier", r.Identifier).Msg("recipient log write failed")
	}
}

func (s *Service) outcome(campaignID string, result Result, parsed *recipients.ParseResult) *SendOutcome {
	return &SendOutcome{
		CampaignID:  campaignID,
		Success:     result.Successful > 0,
		Result:      result,
		InvalidRows: parsed.Invalid,
		Stats:       parsed.Stats,
	}
}

// pacingFor resolves the inter-send delay for one run: the request override
// when present, clamped to [0, maxPacing], otherwise the configured default.
func (s *Service) pacingFor(req SendRequest) time.Duration {
	if req.PacingMs == nil {
		return s.Pacing
	}
	pacing := time.Duration(*req.PacingMs) * time.Millisecond
	if pacing < 0 {
		return 0
	}
	if pacing > maxPacing {
		return maxPacing
	}
	return pacing
}

func (s *Service) dailyLimit(channel Channel) int {
	if channel == ChannelEmail {
		return s.EmailDailyLimit
	}
	return s.SMSDailyLimit
}
