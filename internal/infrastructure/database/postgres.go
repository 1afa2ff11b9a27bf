package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lrx-radar/internal/config"
	"lrx-radar/pkg/logger"
)

// PostgresDB wraps the pgx connection pool
type PostgresDB struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgres creates a new PostgreSQL connection pool
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*PostgresDB, error) {
	log = log.WithComponent("postgres")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("dbname", cfg.DBName).Msg("connecting to PostgreSQL")

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL successfully")

	return &PostgresDB{
		pool:   pool,
		logger: log,
	}, nil
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool
func (db *PostgresDB) Close() {
	db.logger.Info().Msg("closing PostgreSQL connection pool")
	db.pool.Close()
}

// Ping checks the database connection
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats returns connection pool statistics
func (db *PostgresDB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// WithTx executes a function within a transaction
func (db *PostgresDB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// schema is applied idempotently on startup. The unique index on
// dedupe_hash is what makes concurrent ingestion upserts atomic.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS threat_events (
		id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		indicator_type TEXT NOT NULL,
		indicator_value TEXT NOT NULL,
		category TEXT NOT NULL,
		country TEXT NOT NULL,
		country_code TEXT NOT NULL,
		brand_target TEXT NOT NULL,
		attack_type TEXT NOT NULL,
		primary_target TEXT NOT NULL,
		volume INTEGER NOT NULL DEFAULT 1,
		ato_hits INTEGER NOT NULL DEFAULT 0,
		confidence INTEGER NOT NULL DEFAULT 50,
		dedupe_hash TEXT NOT NULL UNIQUE,
		event_meta JSONB,
		first_seen TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_threat_events_occurred_at ON threat_events (occurred_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_threat_events_brand_target ON threat_events (brand_target)`,
	`CREATE TABLE IF NOT EXISTS ato_events (
		id UUID PRIMARY KEY,
		user_email TEXT NOT NULL,
		loc1 TEXT NOT NULL,
		loc2 TEXT NOT NULL,
		risk_score INTEGER NOT NULL,
		action_taken TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ato_events_created_at ON ato_events (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS dmarc_reports (
		id UUID PRIMARY KEY,
		domain TEXT NOT NULL,
		reporting_org TEXT NOT NULL,
		source_ip TEXT NOT NULL,
		disposition TEXT NOT NULL,
		spf_result TEXT NOT NULL,
		dkim_result TEXT NOT NULL,
		msg_count INTEGER NOT NULL,
		report_date TIMESTAMPTZ NOT NULL,
		raw_payload JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dmarc_reports_created_at ON dmarc_reports (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id UUID PRIMARY KEY,
		threat_event_id UUID NOT NULL REFERENCES threat_events (id) ON DELETE CASCADE,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_threat_event_status ON alerts (threat_event_id, status)`,
}

// EnsureSchema creates the telemetry tables and indexes if they do not
// exist yet
func (db *PostgresDB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	db.logger.Info().Msg("database schema ensured")
	return nil
}
