package campaign

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestService(store *fakeStore, sms, email *fakeTransport) *Service {
	return &Service{
		Store:           store,
		SMS:             sms,
		Email:           email,
		Quota:           &QuotaTracker{Store: store},
		SMSDailyLimit:   1000,
		EmailDailyLimit: 1000,
		Logger:          zerolog.Nop(),
	}
}

const smsList = "First Name,Last Name,Phone\nAnn,Lee,5550000001\nBob,Ray,5550000002"
const emailList = "Name,Email\nAnn Lee,ann@example.com\nBob Ray,bob@example.com"

func TestSendSMSLogsAggregateAfterCompletion(t *testing.T) {
	var ops []string
	store := &fakeStore{ops: &ops}
	sms := &fakeTransport{configured: true, ops: &ops}
	svc := newTestService(store, sms, nil)

	outcome, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi {{firstName}}!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if outcome.Successful != 2 || outcome.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
	if !outcome.Success {
		t.Fatal("expected success")
	}
	if len(store.campaigns) != 1 {
		t.Fatalf("expected 1 campaign log, got %d", len(store.campaigns))
	}

	entry := store.campaigns[0]
	if entry.Status != StatusCompleted {
		t.Fatalf("expected completed status, got %q", entry.Status)
	}
	if entry.TotalRecipients != 2 || entry.SuccessfulSends != 2 || entry.FailedSends != 0 {
		t.Fatalf("unexpected log counts: %+v", entry)
	}
	if entry.Channel != ChannelSMS {
		t.Fatalf("unexpected channel: %q", entry.Channel)
	}

	// the aggregate row is written once, after the last send
	if ops[len(ops)-1] != "create_campaign" {
		t.Fatalf("expected campaign log after dispatch, ops: %v", ops)
	}
	for _, op := range ops[:len(ops)-1] {
		if op == "create_campaign" {
			t.Fatalf("campaign log written before dispatch finished, ops: %v", ops)
		}
	}
}

func TestSendSMSPartialStatus(t *testing.T) {
	store := &fakeStore{}
	sms := &fakeTransport{configured: true, failFor: map[string]string{"+15550000002": "rejected"}}
	svc := newTestService(store, sms, nil)

	outcome, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Successful != 1 || outcome.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
	if store.campaigns[0].Status != StatusPartial {
		t.Fatalf("expected partial status, got %q", store.campaigns[0].Status)
	}
}

func TestSendSMSLogFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{createErr: errors.New("db down")}
	sms := &fakeTransport{configured: true}
	svc := newTestService(store, sms, nil)

	outcome, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi"})
	if err != nil {
		t.Fatalf("audit failure must not fail the campaign: %v", err)
	}
	if outcome.Successful != 2 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
}

func TestSendSMSUnconfiguredTransport(t *testing.T) {
	store := &fakeStore{}
	sms := &fakeTransport{configured: false}
	svc := newTestService(store, sms, nil)

	outcome, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Success {
		t.Fatal("expected failure outcome")
	}
	if outcome.Successful != 0 || outcome.Failed != 2 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
	if len(sms.calls) != 0 {
		t.Fatalf("transport must not be invoked, saw %d calls", len(sms.calls))
	}
	// the all-failed run is still logged as partial, not a distinct state
	if store.campaigns[0].Status != StatusPartial {
		t.Fatalf("expected partial status, got %q", store.campaigns[0].Status)
	}
}

func TestSendSMSEmptyTemplate(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeTransport{configured: true}, nil)

	if _, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "   "}); !errors.Is(err, ErrEmptyTemplate) {
		t.Fatalf("expected ErrEmptyTemplate, got %v", err)
	}
}

func TestSendSMSQuotaRejection(t *testing.T) {
	store := &fakeStore{totals: WindowTotals{Total: 999}}
	svc := newTestService(store, &fakeTransport{configured: true}, nil)

	_, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi"})
	var quotaErr *QuotaError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaError, got %v", err)
	}
	if quotaErr.Requested != 2 || quotaErr.Remaining != 1 {
		t.Fatalf("unexpected quota error: %+v", quotaErr)
	}
	if len(store.campaigns) != 0 {
		t.Fatal("no campaign log should be written on rejection")
	}
}

func TestSendSMSPersonalizesPerRecipient(t *testing.T) {
	store := &fakeStore{}
	sms := &fakeTransport{configured: true}
	svc := newTestService(store, sms, nil)

	if _, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi {{firstName}} {{lastName}}"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sms.calls[0] != "+15550000001" || sms.calls[1] != "+15550000002" {
		t.Fatalf("unexpected destinations: %v", sms.calls)
	}
}

func TestSendSMSPreviewTruncated(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store, &fakeTransport{configured: true}, nil)

	long := strings.Repeat("x", 150)
	if _, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: long}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(store.campaigns[0].MessagePreview); got != 100 {
		t.Fatalf("expected 100-char preview, got %d", got)
	}
}

func TestSendEmailInterleavesRecipientLogs(t *testing.T) {
	var ops []string
	store := &fakeStore{ops: &ops}
	email := &fakeTransport{configured: true, ops: &ops}
	svc := newTestService(store, nil, email)

	outcome, err := svc.SendEmail(context.Background(), SendRequest{List: emailList, Template: "Dear {{fullName}}", Subject: "Insurance notice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Successful != 2 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}

	want := []string{
		"create_campaign",
		"send:ann@example.com",
		"recipient_log:ann@example.com",
		"send:bob@example.com",
		"recipient_log:bob@example.com",
		"update_campaign",
	}
	if len(ops) != len(want) {
		t.Fatalf("ops %v, expected %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops[%d]=%q, expected %q (full: %v)", i, ops[i], want[i], ops)
		}
	}

	entry := store.campaigns[0]
	if entry.Status != StatusCompleted || entry.SuccessfulSends != 2 || entry.FailedSends != 0 {
		t.Fatalf("unexpected final entry: %+v", entry)
	}
	if len(store.recipientLogs) != 2 {
		t.Fatalf("expected 2 recipient logs, got %d", len(store.recipientLogs))
	}
	if store.recipientLogs[0].Status != "sent" {
		t.Fatalf("unexpected recipient status: %q", store.recipientLogs[0].Status)
	}
}

func TestSendEmailRecordsFailures(t *testing.T) {
	store := &fakeStore{}
	email := &fakeTransport{configured: true, failFor: map[string]string{"bob@example.com": "mailbox full"}}
	svc := newTestService(store, nil, email)

	outcome, err := svc.SendEmail(context.Background(), SendRequest{List: emailList, Template: "Hi", Subject: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Successful != 1 || outcome.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}

	if store.campaigns[0].Status != StatusPartial {
		t.Fatalf("expected partial status, got %q", store.campaigns[0].Status)
	}
	var failedLog *RecipientLog
	for i := range store.recipientLogs {
		if store.recipientLogs[i].Identifier == "bob@example.com" {
			failedLog = &store.recipientLogs[i]
		}
	}
	if failedLog == nil || failedLog.Status != "failed" || failedLog.Error != "mailbox full" {
		t.Fatalf("unexpected failed recipient log: %+v", failedLog)
	}
}

func TestSendEmailRecipientLogFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{recipientErr: errors.New("db down")}
	email := &fakeTransport{configured: true}
	svc := newTestService(store, nil, email)

	outcome, err := svc.SendEmail(context.Background(), SendRequest{List: emailList, Template: "Hi", Subject: "s"})
	if err != nil {
		t.Fatalf("audit failure must not fail the campaign: %v", err)
	}
	if outcome.Successful != 2 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
}

func TestSendReportsInvalidRowsAlongsideResult(t *testing.T) {
	store := &fakeStore{}
	sms := &fakeTransport{configured: true}
	svc := newTestService(store, sms, nil)

	list := "First Name,Last Name,Phone\nAnn,Lee,5550000001\nBob,,5550000002"
	outcome, err := svc.SendSMS(context.Background(), SendRequest{List: list, Template: "Hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.TotalAttempted != 1 {
		t.Fatalf("expected only the valid recipient attempted: %+v", outcome.Result)
	}
	if len(outcome.InvalidRows) != 1 || outcome.InvalidRows[0].Row != 3 {
		t.Fatalf("unexpected invalid rows: %+v", outcome.InvalidRows)
	}
}

func TestPacingOverride(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeTransport{configured: true}, nil)
	svc.Pacing = 100 * time.Millisecond

	intp := func(v int) *int { return &v }
	tests := []struct {
		name string
		req  SendRequest
		want time.Duration
	}{
		{name: "default when absent", req: SendRequest{}, want: 100 * time.Millisecond},
		{name: "override applied", req: SendRequest{PacingMs: intp(250)}, want: 250 * time.Millisecond},
		{name: "zero disables pacing", req: SendRequest{PacingMs: intp(0)}, want: 0},
		{name: "negative clamps to zero", req: SendRequest{PacingMs: intp(-5)}, want: 0},
		{name: "excessive clamps to cap", req: SendRequest{PacingMs: intp(600000)}, want: 10 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.pacingFor(tc.req); got != tc.want {
				t.Fatalf("pacingFor=%v, expected %v", got, tc.want)
			}
		})
	}
}

func TestSendEmailUpdateFailureIsSwallowed(t *testing.T) {
	store := &fakeStore{updateErr: errors.New("db down")}
	email := &fakeTransport{configured: true}
	svc := newTestService(store, nil, email)

	outcome, err := svc.SendEmail(context.Background(), SendRequest{List: emailList, Template: "Hi", Subject: "s"})
	if err != nil {
		t.Fatalf("audit failure must not fail the campaign: %v", err)
	}
	if outcome.Successful != 2 {
		t.Fatalf("unexpected counts: %+v", outcome.Result)
	}
	// the entry keeps its pre-dispatch state when the final update fails
	if store.campaigns[0].Status != StatusDispatching {
		t.Fatalf("unexpected status: %q", store.campaigns[0].Status)
	}
}

// After logging a campaign of k recipients, a quota check within the same
// UTC day reports sentToday increased by exactly k.
func TestQuotaReflectsLoggedCampaigns(t *testing.T) {
	store := &fakeStore{sumFromCampaigns: true}
	svc := newTestService(store, &fakeTransport{configured: true}, nil)

	before, err := svc.QuotaFor(context.Background(), ChannelSMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if before.TotalMessagesSentToday != 0 || before.RemainingQuota != 1000 {
		t.Fatalf("unexpected initial snapshot: %+v", before)
	}

	if _, err := svc.SendSMS(context.Background(), SendRequest{List: smsList, Template: "Hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := svc.QuotaFor(context.Background(), ChannelSMS)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.TotalMessagesSentToday != before.TotalMessagesSentToday+2 {
		t.Fatalf("sentToday=%d, expected %d", after.TotalMessagesSentToday, before.TotalMessagesSentToday+2)
	}
	if after.RemainingQuota != 998 {
		t.Fatalf("RemainingQuota=%d, expected 998", after.RemainingQuota)
	}
}

func TestSendSMSNoValidRecipients(t *testing.T) {
	svc := newTestService(&fakeStore{}, &fakeTransport{configured: true}, nil)

	list := "First Name,Last Name,Phone\nAnn,,123"
	if _, err := svc.SendSMS(context.Background(), SendRequest{List: list, Template: "Hi"}); !errors.Is(err, ErrNoValidRecipients) {
		t.Fatalf("expected ErrNoValidRecipients, got %v", err)
	}
}
