package policy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
)

// MockPolicyRepository is a mock implementation of PolicyRepository
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *models.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	args := m.Called(ctx, id)
	if policy := args.Get(0); policy != nil {
		return policy.(*models.Policy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyRepository) List(ctx context.Context, filter repositories.PolicyFilter) ([]*models.Policy, int, error) {
	args := m.Called(ctx, filter)
	if policies := args.Get(0); policies != nil {
		return policies.([]*models.Policy), args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *MockPolicyRepository) GetActiveByTypes(ctx context.Context, types []models.PolicyType) ([]*models.Policy, error) {
	args := m.Called(ctx, types)
	if policies := args.Get(0); policies != nil {
		return policies.([]*models.Policy), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *models.Policy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PolicyStatus, updatedBy string) error {
	args := m.Called(ctx, id, status, updatedBy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPolicyRepository) RecordUsage(ctx context.Context, id uuid.UUID, violated bool, evaluatedAt time.Time) error {
	args := m.Called(ctx, id, violated, evaluatedAt)
	return args.Error(0)
}

func (m *MockPolicyRepository) WithTx(tx repositories.Transaction) repositories.PolicyRepository {
	args := m.Called(tx)
	return args.Get(0).(repositories.PolicyRepository)
}

// MockAuditSink is a mock implementation of AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Record(ctx context.Context, kind models.AuditEventKind, principalID *string, severity models.AuditSeverity, description string, metadata map[string]interface{}, sourceAddress, agent string) (uuid.UUID, error) {
	args := m.Called(ctx, kind, principalID, severity, description, metadata, sourceAddress, agent)
	return args.Get(0).(uuid.UUID), args.Error(1)
}
