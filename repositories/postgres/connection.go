package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hycient195/academia-pro-access/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return &DB{
		DB:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
		-- Policies table
		CREATE TABLE IF NOT EXISTS policies (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			type VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			scope VARCHAR(20) NOT NULL DEFAULT 'global',
			scope_id VARCHAR(255) NOT NULL DEFAULT '',
			effective_from TIMESTAMPTZ,
			effective_until TIMESTAMPTZ,
			enforcement_level VARCHAR(20) NOT NULL DEFAULT 'strict',
			priority INTEGER NOT NULL DEFAULT 100,
			rules JSONB NOT NULL,
			created_by VARCHAR(255) NOT NULL DEFAULT '',
			updated_by VARCHAR(255) NOT NULL DEFAULT '',
			is_system_policy BOOLEAN NOT NULL DEFAULT false,
			is_mandatory BOOLEAN NOT NULL DEFAULT false,
			requires_approval BOOLEAN NOT NULL DEFAULT false,
			approved_by VARCHAR(255) NOT NULL DEFAULT '',
			approved_at TIMESTAMPTZ,
			evaluation_count BIGINT NOT NULL DEFAULT 0,
			violation_count BIGINT NOT NULL DEFAULT 0,
			last_evaluated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		-- Audit records table
		CREATE TABLE IF NOT EXISTS audit_records (
			id UUID PRIMARY KEY,
			event_kind VARCHAR(50) NOT NULL,
			principal_id VARCHAR(255),
			severity VARCHAR(20) NOT NULL,
			description TEXT NOT NULL,
			metadata JSONB,
			source_address VARCHAR(45),
			agent TEXT,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_policies_status_type ON policies(status, type);
		CREATE INDEX IF NOT EXISTS idx_policies_scope ON policies(scope, scope_id);
		CREATE INDEX IF NOT EXISTS idx_audit_records_event_kind ON audit_records(event_kind);
		CREATE INDEX IF NOT EXISTS idx_audit_records_principal ON audit_records(principal_id);
		CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized")
	return nil
}
