package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"oracle-pricefeed/internal/config"
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS price_updates (
    id          BIGSERIAL PRIMARY KEY,
    pair_id     BIGINT      NOT NULL,
    value       NUMERIC     NOT NULL,
    decimal_exp INTEGER     NOT NULL,
    observed_at TIMESTAMPTZ NOT NULL,
    round       BIGINT      NOT NULL,
    root        TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS price_updates_pair_round ON price_updates (pair_id, round DESC);

CREATE TABLE IF NOT EXISTS committee_keys (
    committee_id BIGINT      PRIMARY KEY,
    public_key   TEXT        NOT NULL,
    active       BOOLEAN     NOT NULL DEFAULT TRUE,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hcc_transitions (
    id         BIGSERIAL PRIMARY KEY,
    pair_id    BIGINT      NOT NULL,
    from_state TEXT        NOT NULL,
    to_state   TEXT        NOT NULL,
    value      NUMERIC     NOT NULL,
    round      BIGINT      NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureSchema creates the audit tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
