package common

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectPostgres opens a pool and waits for the database to accept
// connections, retrying with exponential backoff. Deploys frequently start
// the service before Postgres is ready to serve.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	op := backoff.NewExponentialBackOff()
	op.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(op, ctx)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
