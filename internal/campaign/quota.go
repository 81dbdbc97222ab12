package campaign

import (
	"context"
	"time"
)

// QuotaTracker computes how much of the daily send allowance remains. The
// window is the current UTC calendar day and the sums are recomputed from
// the log store on every check.
//
// Two concurrent campaigns can both read a stale remaining count and both
// proceed; enforcement is best-effort, not a hard guarantee.
type QuotaTracker struct {
	Store LogStore
}

func (q *QuotaTracker) Remaining(ctx context.Context, channel Channel, dailyLimit int) (QuotaSnapshot, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	totals, err := q.Store.SumLogsInWindow(ctx, channel, start, end)
	if err != nil {
		return QuotaSnapshot{}, err
	}

	remaining := dailyLimit - totals.Total
	if remaining < 0 {
		remaining = 0
	}
	return QuotaSnapshot{
		TotalMessagesSentToday: totals.Total,
		SuccessfulToday:        totals.Successful,
		FailedToday:            totals.Failed,
		DailyLimit:             dailyLimit,
		RemainingQuota:         remaining,
	}, nil
}
