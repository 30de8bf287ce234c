package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services/policy"
)

// MockPolicyRepository is a mock implementation of PolicyRepository
type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, p *models.Policy) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*models.Policy), args.Error(1)
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

func (m *MockPolicyRepository) Update(ctx context.Context, p *models.Policy) error {
	args := m.Called(ctx, p)
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

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, record *models.AuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	args := m.Called(ctx, id)
	if record := args.Get(0); record != nil {
		return record.(*models.AuditRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditRecord, error) {
	args := m.Called(ctx, filter)
	if records := args.Get(0); records != nil {
		return records.([]*models.AuditRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	args := m.Called(tx)
	return args.Get(0).(repositories.AuditRepository)
}

// noopAuditSink discards audit records
type noopAuditSink struct{}

func (noopAuditSink) Record(context.Context, models.AuditEventKind, *string, models.AuditSeverity, string, map[string]interface{}, string, string) (uuid.UUID, error) {
	return uuid.New(), nil
}

func newTestPolicyService(repo *MockPolicyRepository) *policy.Service {
	logger := zap.NewNop()
	catalog := policy.NewPolicyCatalog(repo, policy.NewCandidateCache(16, time.Minute), logger)
	return policy.NewService(repo, catalog, noopAuditSink{}, logger)
}

func newTestAggregator(repo *MockPolicyRepository) *policy.DecisionAggregator {
	logger := zap.NewNop()
	catalog := policy.NewPolicyCatalog(repo, policy.NewCandidateCache(16, time.Minute), logger)
	evaluator := policy.NewPolicyEvaluator(policy.NewConditionEvaluator(), logger)
	return policy.NewDecisionAggregator(catalog, evaluator, noopAuditSink{}, repo, logger)
}
