package notice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoticeNotFound = errors.New("notice not found")

type Store interface {
	CreateNotice(ctx context.Context, n *Notice) error
	GetNotice(ctx context.Context, id string) (*Notice, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*Notice, error)
	ListNotices(ctx context.Context, offset, limit int) ([]Notice, int, error)
	UpdateNotice(ctx context.Context, n *Notice) error
	DeleteNotice(ctx context.Context, id string) error
	CreateResponse(ctx context.Context, resp *Response) error
	ListResponses(ctx context.Context, noticeID string) ([]Response, error)
}

const insertNotice = `
INSERT INTO notices (
id,
slug,
property_name,
manager_email,
title,
body,
program_url,
published,
created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`

const selectNotice = `
SELECT id, slug, property_name, manager_email, title, body, program_url, published, created_at, updated_at
FROM notices
`

const updateNotice = `
UPDATE notices
SET slug = $2, property_name = $3, manager_email = $4, title = $5, body = $6, program_url = $7, published = $8, updated_at = $9
WHERE id = $1
`

const insertResponse = `
INSERT INTO notice_responses (
id,
notice_id,
action,
tenant_name,
tenant_email,
unit_number,
created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`

const selectResponses = `
SELECT id, notice_id, action, tenant_name, tenant_email, unit_number, created_at
FROM notice_responses
WHERE notice_id = $1
ORDER BY created_at DESC
`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateNotice(ctx context.Context, n *Notice) error {
	_, err := s.pool.Exec(ctx, insertNotice,
		n.ID, n.Slug, n.PropertyName, n.ManagerEmail, n.Title, n.Body, n.ProgramURL, n.Published, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNotice(ctx context.Context, id string) (*Notice, error) {
	return s.getOne(ctx, selectNotice+` WHERE id = $1`, id)
}

func (s *PostgresStore) GetPublishedBySlug(ctx context.Context, slug string) (*Notice, error) {
	return s.getOne(ctx, selectNotice+` WHERE slug = $1 AND published`, slug)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, arg any) (*Notice, error) {
	n, err := scanNotice(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoticeNotFound
		}
		return nil, fmt.Errorf("get notice: %w", err)
	}
	return &n, nil
}

func (s *PostgresStore) ListNotices(ctx context.Context, offset, limit int) ([]Notice, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notices`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}

	rows, err := s.pool.Query(ctx, selectNotice+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	notices := []Notice{}
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, 0, err
		}
		notices = append(notices, n)
	}
	return notices, total, rows.Err()
}

func (s *PostgresStore) UpdateNotice(ctx context.Context, n *Notice) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, updateNotice,
		n.ID, n.Slug, n.PropertyName, n.ManagerEmail, n.Title, n.Body, n.ProgramURL, n.Published, now)
	if err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	n.UpdatedAt = &now
	return nil
}

func (s *PostgresStore) DeleteNotice(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

func (s *PostgresStore) CreateResponse(ctx context.Context, resp *Response) error {
	_, err := s.pool.Exec(ctx, insertResponse,
		resp.ID, resp.NoticeID, string(resp.Action), resp.TenantName, resp.TenantEmail, resp.UnitNumber, resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListResponses(ctx context.Context, noticeID string) ([]Response, error) {
	rows, err := s.pool.Query(ctx, selectResponses, noticeID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	responses := []Response{}
	for rows.Next() {
		var (
			resp   Response
			action string
		)
		if err := rows.Scan(&resp.ID, &resp.NoticeID, &action, &resp.TenantName, &resp.TenantEmail, &resp.UnitNumber, &resp.CreatedAt); err != nil {
			return nil, err
		}
		resp.Action = Action(action)
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

func scanNotice(row pgx.Row) (Notice, error) {
	var n Notice
	err := row.Scan(&n.ID, &n.Slug, &n.PropertyName, &n.ManagerEmail, &n.Title, &n.Body, &n.ProgramURL, &n.Published, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}
