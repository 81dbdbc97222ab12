package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCampaignNotFound = errors.New("campaign log not found")

// LogStore is the persistence capability the pipeline depends on.
type LogStore interface {
	CreateCampaignLog(ctx context.Context, entry *LogEntry) error
	UpdateCampaignLog(ctx context.Context, id string, successful, failed int, status Status) error
	CreateRecipientLog(ctx context.Context, rl *RecipientLog) error
	SumLogsInWindow(ctx context.Context, channel Channel, start, end time.Time) (WindowTotals, error)
	ListCampaignLogs(ctx context.Context, offset, limit int, channel, status string) ([]LogEntry, int, error)
	GetCampaignLog(ctx context.Context, id string) (*LogEntry, error)
	ListRecipientLogs(ctx context.Context, campaignID string) ([]RecipientLog, error)
	UpdateRecipientStatus(ctx context.Context, providerMessageID, status string) (bool, error)
}

const insertCampaignLog = `
INSERT INTO campaign_logs (
id,
channel,
total_recipients,
successful_sends,
failed_sends,
message_preview,
status,
created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`

const updateCampaignLog = `
UPDATE campaign_logs
SET successful_sends = $2, failed_sends = $3, status = $4, updated_at = $5
WHERE id = $1
`

const insertRecipientLog = `
INSERT INTO campaign_recipient_logs (
id,
campaign_id,
identifier,
status,
provider_message_id,
error,
created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`

const sumLogsInWindow = `
SELECT
COALESCE(SUM(total_recipients), 0),
COALESCE(SUM(successful_sends), 0),
COALESCE(SUM(failed_sends), 0)
FROM campaign_logs
WHERE channel = $1 AND created_at >= $2 AND created_at < $3
`

const selectCampaignLog = `
SELECT id, channel, total_recipients, successful_sends, failed_sends, message_preview, status, created_at, updated_at
FROM campaign_logs
WHERE id = $1
`

const selectRecipientLogs = `
SELECT id, campaign_id, identifier, status, provider_message_id, error, created_at
FROM campaign_recipient_logs
WHERE campaign_id = $1
ORDER BY created_at, id
`

const updateRecipientStatus = `
UPDATE campaign_recipient_logs
SET status = $2
WHERE provider_message_id = $1
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateCampaignLog(ctx context.Context, entry *LogEntry) error {
	_, err := s.pool.Exec(ctx, insertCampaignLog,
		entry.ID,
		string(entry.Channel),
		entry.TotalRecipients,
		entry.SuccessfulSends,
		entry.FailedSends,
		entry.MessagePreview,
		string(entry.Status),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign log: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCampaignLog(ctx context.Context, id string, successful, failed int, status Status) error {
	tag, err := s.pool.Exec(ctx, updateCampaignLog, id, successful, failed, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update campaign log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRecipientLog(ctx context.Context, rl *RecipientLog) error {
	_, err := s.pool.Exec(ctx, insertRecipientLog,
		rl.ID,
		rl.CampaignID,
		rl.Identifier,
		rl.Status,
		rl.ProviderMessageID,
		rl.Error,
		rl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert recipient log: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumLogsInWindow(ctx context.Context, channel Channel, start, end time.Time) (WindowTotals, error) {
	var totals WindowTotals
	row := s.pool.QueryRow(ctx, sumLogsInWindow, string(channel), start, end)
	if err := row.Scan(&totals.Total, &totals.Successful, &totals.Failed); err != nil {
		return WindowTotals{}, fmt.Errorf("sum logs in window: %w", err)
	}
	return totals, nil
}

func (s *PostgresStore) ListCampaignLogs(ctx context.Context, offset, limit int, channel, status string) ([]LogEntry, int, error) {
	query := `SELECT id, channel, total_recipients, successful_sends, failed_sends, message_preview, status, created_at, updated_at FROM campaign_logs WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaign_logs WHERE 1=1`
	args := []any{}
	if channel != "" {
		args = append(args, channel)
		clause := fmt.Sprintf(" AND channel = $%d", len(args))
		query += clause
		countQuery += clause
	}
	if status != "" {
		args = append(args, status)
		clause := fmt.Sprintf(" AND status = $%d", len(args))
		query += clause
		countQuery += clause
	}

	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaign logs: %w", err)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaign logs: %w", err)
	}
	defer rows.Close()

	entries := []LogEntry{}
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *PostgresStore) GetCampaignLog(ctx context.Context, id string) (*LogEntry, error) {
	entry, err := scanLogEntry(s.pool.QueryRow(ctx, selectCampaignLog, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign log: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) ListRecipientLogs(ctx context.Context, campaignID string) ([]RecipientLog, error) {
	rows, err := s.pool.Query(ctx, selectRecipientLogs, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list recipient logs: %w", err)
	}
	defer rows.Close()

	logs := []RecipientLog{}
	for rows.Next() {
		var rl RecipientLog
		if err := rows.Scan(&rl.ID, &rl.CampaignID, &rl.Identifier, &rl.Status, &rl.ProviderMessageID, &rl.Error, &rl.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, rl)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) UpdateRecipientStatus(ctx context.Context, providerMessageID, status string) (bool, error) {
	tag, err := s.pool.Exec(ctx, updateRecipientStatus, providerMessageID, status)
	if err != nil {
		return false, fmt.Errorf("update recipient status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanLogEntry(row pgx.Row) (LogEntry, error) {
	var (
		entry   LogEntry
		channel string
		status  string
	)
	if err := row.Scan(&entry.ID, &channel, &entry.TotalRecipients, &entry.SuccessfulSends, &entry.FailedSends, &entry.MessagePreview, &status, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return LogEntry{}, err
	}
	entry.Channel = Channel(channel)
	entry.Status = Status(status)
	return entry, nil
}
