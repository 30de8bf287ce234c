package repositories

import (
	"context"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/google/uuid"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction.
	// Commits if the function succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// PolicyFilter narrows policy listings
type PolicyFilter struct {
	Type   *models.PolicyType
	Status *models.PolicyStatus
	Scope  *models.PolicyScope
	Limit  int
	Offset int
}

// PolicyRepository handles policy document persistence
type PolicyRepository interface {
	// Create persists a new policy
	Create(ctx context.Context, policy *models.Policy) error

	// GetByID retrieves a policy by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error)

	// List retrieves policies matching the filter plus the unpaged total.
	// Results are ordered by priority descending, then creation time
	// ascending so priority ties keep stable insertion order.
	List(ctx context.Context, filter PolicyFilter) ([]*models.Policy, int, error)

	// GetActiveByTypes retrieves all active policies of the given types in
	// creation order. Scope and validity-window filtering is the catalog's
	// responsibility.
	GetActiveByTypes(ctx context.Context, types []models.PolicyType) ([]*models.Policy, error)

	// Update persists changes to a policy
	Update(ctx context.Context, policy *models.Policy) error

	// UpdateStatus transitions a policy's lifecycle status
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PolicyStatus, updatedBy string) error

	// Delete removes a policy
	Delete(ctx context.Context, id uuid.UUID) error

	// RecordUsage bumps the evaluation counters for one policy
	RecordUsage(ctx context.Context, id uuid.UUID, violated bool, evaluatedAt time.Time) error

	// WithTx returns a repository instance bound to the transaction
	WithTx(tx Transaction) PolicyRepository
}

// AuditFilter narrows audit record listings
type AuditFilter struct {
	EventKind   *models.AuditEventKind
	PrincipalID *string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// AuditRepository handles audit record persistence
type AuditRepository interface {
	// Insert persists a new audit record
	Insert(ctx context.Context, record *models.AuditRecord) error

	// GetByID retrieves an audit record by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error)

	// List retrieves audit records matching the filter, newest first
	List(ctx context.Context, filter AuditFilter) ([]*models.AuditRecord, error)

	// WithTx returns a repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Policies     PolicyRepository
	AuditRecords AuditRepository
}
