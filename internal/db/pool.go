// Package db holds the Postgres plumbing shared by the catalog and the
// execution store: pool setup, migrations and COPY sources.
package db

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates a pgxpool. statementTimeout bounds every statement run
// through the pool; zero leaves the server default.
func NewPool(ctx context.Context, dsn string, statementTimeout time.Duration) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse dsn")
	}

	if statementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = statementTimeout.Round(time.Millisecond).String()
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "ncload"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WithHint(errors.Wrap(err, "ping database"), "check --db-url or NCLOAD_DB_URL")
	}

	return pool, nil
}
