// Package sink provides persistence backends for unified records.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool used for record rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink upserts unified records into Postgres, keyed by item
// identifier so re-running a keyword refreshes rather than duplicates.
type PostgresSink struct {
	pool  execCloser
	table string
}

// NewPostgres creates a Postgres-backed sink using the provided config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "harvested_items"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

// NewPostgresWithPool constructs a sink from an existing pool (primarily for
// testing).
func NewPostgresWithPool(pool execCloser, table string) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "harvested_items"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{pool: pool, table: table}, nil
}

// AppendBatch inserts records one by one. The first failure aborts the batch
// so the caller can divert the whole batch to its fallback.
func (s *PostgresSink) AppendBatch(ctx context.Context, records []harvest.UnifiedRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, item_type, url, data_source, payload, harvested_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE
SET payload = EXCLUDED.payload,
    data_source = EXCLUDED.data_source,
    harvested_at = EXCLUDED.harvested_at`, s.table)

	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("record id is required")
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		if _, err := s.pool.Exec(ctx, query, rec.ID, rec.Type, rec.URL, rec.DataSource, payload); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}
