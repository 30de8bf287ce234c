package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const policyColumns = `id, name, display_name, description, version, type, status,
		scope, scope_id, effective_from, effective_until, enforcement_level, priority, rules,
		created_by, updated_by, is_system_policy, is_mandatory, requires_approval, approved_by, approved_at,
		evaluation_count, violation_count, last_evaluated_at, created_at, updated_at`

// PolicyRepository implements the repositories.PolicyRepository interface
type PolicyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPolicyRepository creates a new policy repository
func NewPolicyRepository(db *DB, logger *zap.Logger) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new policy
func (r *PolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	query := `
		INSERT INTO policies (` + policyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	rules, err := json.Marshal(policy.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal policy rules: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		policy.DisplayName,
		policy.Description,
		policy.Version,
		policy.Type,
		policy.Status,
		policy.Scope,
		policy.ScopeID,
		policy.EffectiveFrom,
		policy.EffectiveUntil,
		policy.Enforcement,
		policy.Priority,
		rules,
		policy.CreatedBy,
		policy.UpdatedBy,
		policy.IsSystemPolicy,
		policy.IsMandatory,
		policy.RequiresApproval,
		policy.ApprovedBy,
		policy.ApprovedAt,
		policy.EvaluationCount,
		policy.ViolationCount,
		policy.LastEvaluatedAt,
		policy.CreatedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	r.logger.Debug("policy created", zap.String("id", policy.ID.String()))
	return nil
}

// GetByID retrieves a policy by ID
func (r *PolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	policy, err := scanPolicy(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("policy %s: %w", id, services.ErrPolicyNotFound)
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}

	return policy, nil
}

// List retrieves policies matching the filter plus the unpaged total.
// Priority ties keep stable insertion order via the created_at tiebreak.
func (r *PolicyRepository) List(ctx context.Context, filter repositories.PolicyFilter) ([]*models.Policy, int, error) {
	where := " WHERE 1=1"
	args := make([]interface{}, 0, 3)

	if filter.Type != nil {
		args = append(args, *filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Scope != nil {
		args = append(args, *filter.Scope)
		where += fmt.Sprintf(" AND scope = $%d", len(args))
	}

	executor := GetExecutor(ctx, r.db)

	var total int
	countQuery := "SELECT COUNT(*) FROM policies" + where
	if err := executor.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count policies: %w", err)
	}

	query := `SELECT ` + policyColumns + ` FROM policies` + where +
		" ORDER BY priority DESC, created_at ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	policies, err := r.queryPolicies(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return policies, total, nil
}

// GetActiveByTypes retrieves all active policies of the given types in
// creation order, so callers doing a stable priority sort keep insertion
// order for ties
func (r *PolicyRepository) GetActiveByTypes(ctx context.Context, types []models.PolicyType) ([]*models.Policy, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}

	query := `SELECT ` + policyColumns + `
		FROM policies
		WHERE status = $1 AND type = ANY($2)
		ORDER BY created_at ASC`

	return r.queryPolicies(ctx, query, models.PolicyStatusActive, pq.Array(names))
}

// Update persists changes to a policy
func (r *PolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	query := `
		UPDATE policies
		SET name = $2,
		    display_name = $3,
		    description = $4,
		    version = $5,
		    type = $6,
		    status = $7,
		    scope = $8,
		    scope_id = $9,
		    effective_from = $10,
		    effective_until = $11,
		    enforcement_level = $12,
		    priority = $13,
		    rules = $14,
		    updated_by = $15,
		    is_mandatory = $16,
		    requires_approval = $17,
		    approved_by = $18,
		    approved_at = $19,
		    updated_at = $20
		WHERE id = $1
	`

	rules, err := json.Marshal(policy.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal policy rules: %w", err)
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		policy.ID,
		policy.Name,
		policy.DisplayName,
		policy.Description,
		policy.Version,
		policy.Type,
		policy.Status,
		policy.Scope,
		policy.ScopeID,
		policy.EffectiveFrom,
		policy.EffectiveUntil,
		policy.Enforcement,
		policy.Priority,
		rules,
		policy.UpdatedBy,
		policy.IsMandatory,
		policy.RequiresApproval,
		policy.ApprovedBy,
		policy.ApprovedAt,
		policy.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}

	if err := requireRowsAffected(result, policy.ID); err != nil {
		return err
	}

	r.logger.Debug("policy updated", zap.String("id", policy.ID.String()))
	return nil
}

// UpdateStatus transitions a policy's lifecycle status
func (r *PolicyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PolicyStatus, updatedBy string) error {
	query := `
		UPDATE policies
		SET status = $2, updated_by = $3, updated_at = $4
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id, status, updatedBy, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update policy status: %w", err)
	}

	if err := requireRowsAffected(result, id); err != nil {
		return err
	}

	r.logger.Debug("policy status updated",
		zap.String("id", id.String()),
		zap.String("status", string(status)))
	return nil
}

// Delete removes a policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM policies WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	if err := requireRowsAffected(result, id); err != nil {
		return err
	}

	r.logger.Debug("policy deleted", zap.String("id", id.String()))
	return nil
}

// RecordUsage bumps the evaluation counters for one policy
func (r *PolicyRepository) RecordUsage(ctx context.Context, id uuid.UUID, violated bool, evaluatedAt time.Time) error {
	query := `
		UPDATE policies
		SET evaluation_count = evaluation_count + 1,
		    violation_count = violation_count + $2,
		    last_evaluated_at = $3
		WHERE id = $1
	`

	increment := 0
	if violated {
		increment = 1
	}

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, id, increment, evaluatedAt); err != nil {
		return fmt.Errorf("failed to record policy usage: %w", err)
	}
	return nil
}

// WithTx returns a repository instance bound to the transaction
func (r *PolicyRepository) WithTx(tx repositories.Transaction) repositories.PolicyRepository {
	return &PolicyRepository{
		db:     r.db,
		logger: r.logger,
	}
}

// queryPolicies is a helper to query multiple policies
func (r *PolicyRepository) queryPolicies(ctx context.Context, query string, args ...interface{}) ([]*models.Policy, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query policies: %w", err)
	}
	defer rows.Close()

	var policies []*models.Policy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		policies = append(policies, policy)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy rows: %w", err)
	}

	return policies, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanPolicy
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row rowScanner) (*models.Policy, error) {
	policy := &models.Policy{}
	var rules []byte

	err := row.Scan(
		&policy.ID,
		&policy.Name,
		&policy.DisplayName,
		&policy.Description,
		&policy.Version,
		&policy.Type,
		&policy.Status,
		&policy.Scope,
		&policy.ScopeID,
		&policy.EffectiveFrom,
		&policy.EffectiveUntil,
		&policy.Enforcement,
		&policy.Priority,
		&rules,
		&policy.CreatedBy,
		&policy.UpdatedBy,
		&policy.IsSystemPolicy,
		&policy.IsMandatory,
		&policy.RequiresApproval,
		&policy.ApprovedBy,
		&policy.ApprovedAt,
		&policy.EvaluationCount,
		&policy.ViolationCount,
		&policy.LastEvaluatedAt,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(rules, &policy.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policy rules: %w", err)
	}

	return policy, nil
}

func requireRowsAffected(result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("policy %s: %w", id, services.ErrPolicyNotFound)
	}
	return nil
}
