package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const auditColumns = `id, event_kind, principal_id, severity, description, metadata,
		source_address, agent, timestamp`

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Insert persists a new audit record
func (r *AuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.EventKind,
		record.PrincipalID,
		record.Severity,
		record.Description,
		[]byte(record.Metadata),
		record.SourceAddress,
		record.Agent,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

// GetByID retrieves an audit record by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	record, err := scanAuditRecord(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("audit record %s: %w", id, services.ErrAuditRecordNotFound)
		}
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}

	return record, nil
}

// List retrieves audit records matching the filter, newest first
func (r *AuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE 1=1`
	args := make([]interface{}, 0, 4)

	if filter.EventKind != nil {
		args = append(args, *filter.EventKind)
		query += fmt.Sprintf(" AND event_kind = $%d", len(args))
	}
	if filter.PrincipalID != nil {
		args = append(args, *filter.PrincipalID)
		query += fmt.Sprintf(" AND principal_id = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND timestamp >= $%d", len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += fmt.Sprintf(" AND timestamp <= $%d", len(args))
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*models.AuditRecord
	for rows.Next() {
		record, err := scanAuditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit record rows: %w", err)
	}

	return records, nil
}

// WithTx returns a repository instance bound to the transaction
func (r *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return &AuditRepository{
		db:     r.db,
		logger: r.logger,
	}
}

func scanAuditRecord(row rowScanner) (*models.AuditRecord, error) {
	record := &models.AuditRecord{}
	var metadata []byte

	err := row.Scan(
		&record.ID,
		&record.EventKind,
		&record.PrincipalID,
		&record.Severity,
		&record.Description,
		&metadata,
		&record.SourceAddress,
		&record.Agent,
		&record.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	record.Metadata = metadata
	return record, nil
}
