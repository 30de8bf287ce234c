package policy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services"
)

type serviceFixture struct {
	repo  *MockPolicyRepository
	audit *MockAuditSink
	svc   *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	repo := new(MockPolicyRepository)
	audit := new(MockAuditSink)
	logger := zap.NewNop()
	catalog := NewPolicyCatalog(repo, NewCandidateCache(16, time.Minute), logger)

	// Administrative audit records are fire-and-forget.
	audit.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(uuid.New(), nil).Maybe()

	return &serviceFixture{
		repo:  repo,
		audit: audit,
		svc:   NewService(repo, catalog, audit, logger),
	}
}

func validInput() PolicyInput {
	return PolicyInput{
		Name:        "deny-grade-edits",
		DisplayName: "Deny grade edits",
		Description: "Grades may only be edited by teachers",
		Type:        models.PolicyTypeAccessControl,
		Rules: &models.PolicyRules{
			Conditions: []models.Condition{
				{Field: "action", Operator: models.OperatorEquals, Value: "update"},
				{Field: "user.roles", Operator: models.OperatorNotIn, Value: []interface{}{"teacher"}},
			},
			Actions: []models.PolicyAction{{Type: models.ActionDeny}},
		},
	}
}

func TestService_CreatePolicy(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Policy")).Return(nil)

	p, err := f.svc.CreatePolicy(context.Background(), validInput(), "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, "deny-grade-edits", p.Name)
	assert.Equal(t, models.PolicyStatusDraft, p.Status)
	assert.Equal(t, models.EnforcementStrict, p.Enforcement)
	assert.Equal(t, 100, p.Priority)
	assert.Equal(t, models.ScopeGlobal, p.Scope)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "admin-1", p.CreatedBy)
	f.repo.AssertExpectations(t)
}

func TestService_CreatePolicy_OptionalFields(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	input := validInput()
	scope := models.ScopeOrganization
	scopeID := "org-7"
	enforcement := models.EnforcementPermissive
	priority := 250
	input.Scope = &scope
	input.ScopeID = &scopeID
	input.Enforcement = &enforcement
	input.Priority = &priority

	p, err := f.svc.CreatePolicy(context.Background(), input, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, models.ScopeOrganization, p.Scope)
	assert.Equal(t, "org-7", p.ScopeID)
	assert.Equal(t, models.EnforcementPermissive, p.Enforcement)
	assert.Equal(t, 250, p.Priority)
}

func TestService_CreatePolicy_InvalidSyntax(t *testing.T) {
	f := newServiceFixture(t)

	input := validInput()
	input.Name = ""
	input.Rules.Conditions[0].Field = ""

	p, err := f.svc.CreatePolicy(context.Background(), input, "admin-1")

	assert.Nil(t, p)
	assert.True(t, services.IsConfigurationError(err))
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_CreatePolicy_RepositoryError(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("unique violation"))

	p, err := f.svc.CreatePolicy(context.Background(), validInput(), "admin-1")

	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "failed to create policy")
}

func TestService_UpdatePolicy(t *testing.T) {
	f := newServiceFixture(t)
	existing := models.NewPolicy("old", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "admin-1")

	f.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)
	f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	p, err := f.svc.UpdatePolicy(context.Background(), existing.ID, PolicyInput{
		Description: "refreshed description",
	}, "admin-2")

	assert.NoError(t, err)
	assert.Equal(t, "refreshed description", p.Description)
	assert.Equal(t, 2, p.Version)
	assert.Equal(t, "admin-2", p.UpdatedBy)
}

func TestService_UpdatePolicy_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).Return(nil, services.ErrPolicyNotFound)

	p, err := f.svc.UpdatePolicy(context.Background(), id, PolicyInput{Name: "x"}, "admin-1")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, services.ErrPolicyNotFound)
}

func TestService_UpdatePolicy_RepositoryFailureIsNotNotFound(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.New()
	outage := errors.New("connection refused")
	f.repo.On("GetByID", mock.Anything, id).Return(nil, outage)

	p, err := f.svc.UpdatePolicy(context.Background(), id, PolicyInput{Name: "x"}, "admin-1")

	assert.Nil(t, p)
	assert.ErrorIs(t, err, outage)
	assert.False(t, services.IsNotFoundError(err))
}

func TestService_UpdatePolicy_SystemPolicyStructuralGuard(t *testing.T) {
	f := newServiceFixture(t)
	system := models.NewPolicy("builtin", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "system")
	system.IsSystemPolicy = true
	system.Status = models.PolicyStatusActive

	f.repo.On("GetByID", mock.Anything, system.ID).Return(system, nil)

	t.Run("structural change rejected once active", func(t *testing.T) {
		p, err := f.svc.UpdatePolicy(context.Background(), system.ID, PolicyInput{
			Rules: &models.PolicyRules{Actions: []models.PolicyAction{{Type: models.ActionAllow}}},
		}, "admin-1")

		assert.Nil(t, p)
		assert.True(t, services.IsForbiddenError(err))
	})

	t.Run("cosmetic change still allowed", func(t *testing.T) {
		f.repo.On("Update", mock.Anything, mock.Anything).Return(nil)

		p, err := f.svc.UpdatePolicy(context.Background(), system.ID, PolicyInput{
			Description: "clarified wording",
		}, "admin-1")

		assert.NoError(t, err)
		assert.Equal(t, "clarified wording", p.Description)
	})
}

func TestService_UpdatePolicy_InvalidMergedRules(t *testing.T) {
	f := newServiceFixture(t)
	existing := models.NewPolicy("old", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "admin-1")
	f.repo.On("GetByID", mock.Anything, existing.ID).Return(existing, nil)

	p, err := f.svc.UpdatePolicy(context.Background(), existing.ID, PolicyInput{
		Rules: &models.PolicyRules{
			Conditions: []models.Condition{{Operator: models.OperatorEquals}},
			Actions:    []models.PolicyAction{{Type: models.ActionDeny}},
		},
	}, "admin-1")

	assert.Nil(t, p)
	assert.True(t, services.IsConfigurationError(err))
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestService_PublishPolicy(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.Policy)
		wantErr   bool
		conflict  bool
	}{
		{name: "draft publishes", mutate: func(p *models.Policy) {}},
		{
			name:   "inactive republished",
			mutate: func(p *models.Policy) { p.Status = models.PolicyStatusInactive },
		},
		{
			name:     "active cannot republish",
			mutate:   func(p *models.Policy) { p.Status = models.PolicyStatusActive },
			wantErr:  true,
			conflict: true,
		},
		{
			name:     "archived cannot publish",
			mutate:   func(p *models.Policy) { p.Status = models.PolicyStatusArchived },
			wantErr:  true,
			conflict: true,
		},
		{
			name:     "unapproved when approval required",
			mutate:   func(p *models.Policy) { p.RequiresApproval = true },
			wantErr:  true,
			conflict: true,
		},
		{
			name: "approved when approval required",
			mutate: func(p *models.Policy) {
				p.RequiresApproval = true
				p.ApprovedBy = "approver-1"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			p := models.NewPolicy("candidate", models.PolicyTypeAccessControl, models.PolicyRules{
				Actions: []models.PolicyAction{{Type: models.ActionDeny}},
			}, "admin-1")
			tt.mutate(p)

			f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
			if !tt.wantErr {
				f.repo.On("UpdateStatus", mock.Anything, p.ID, models.PolicyStatusActive, "admin-1").Return(nil)
			}

			got, err := f.svc.PublishPolicy(context.Background(), p.ID, "admin-1")

			if tt.wantErr {
				assert.Error(t, err)
				if tt.conflict {
					assert.True(t, services.IsConflictError(err))
				}
				f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, models.PolicyStatusActive, got.Status)
		})
	}
}

func TestService_ArchivePolicy(t *testing.T) {
	f := newServiceFixture(t)
	p := models.NewPolicy("retiring", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "admin-1")
	p.Status = models.PolicyStatusActive

	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.repo.On("UpdateStatus", mock.Anything, p.ID, models.PolicyStatusArchived, "admin-1").Return(nil)

	got, err := f.svc.ArchivePolicy(context.Background(), p.ID, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, models.PolicyStatusArchived, got.Status)
	assert.True(t, got.IsRetired())
}

func TestService_DeprecatePolicy(t *testing.T) {
	f := newServiceFixture(t)
	p := models.NewPolicy("aging", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "admin-1")

	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.repo.On("UpdateStatus", mock.Anything, p.ID, models.PolicyStatusDeprecated, "admin-1").Return(nil)

	got, err := f.svc.DeprecatePolicy(context.Background(), p.ID, "admin-1")

	assert.NoError(t, err)
	assert.Equal(t, models.PolicyStatusDeprecated, got.Status)
}

func TestService_DeletePolicy(t *testing.T) {
	f := newServiceFixture(t)
	p := models.NewPolicy("obsolete", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "admin-1")

	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)
	f.repo.On("Delete", mock.Anything, p.ID).Return(nil)

	err := f.svc.DeletePolicy(context.Background(), p.ID, "admin-1")

	assert.NoError(t, err)
	f.repo.AssertExpectations(t)
}

func TestService_DeletePolicy_SystemPolicy(t *testing.T) {
	f := newServiceFixture(t)
	p := models.NewPolicy("builtin", models.PolicyTypeAccessControl, models.PolicyRules{
		Actions: []models.PolicyAction{{Type: models.ActionDeny}},
	}, "system")
	p.IsSystemPolicy = true

	f.repo.On("GetByID", mock.Anything, p.ID).Return(p, nil)

	err := f.svc.DeletePolicy(context.Background(), p.ID, "admin-1")

	assert.True(t, services.IsForbiddenError(err))
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestService_GetPolicy_NotFound(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.New()
	f.repo.On("GetByID", mock.Anything, id).
		Return(nil, fmt.Errorf("policy %s: %w", id, services.ErrPolicyNotFound))

	p, err := f.svc.GetPolicy(context.Background(), id)

	assert.Nil(t, p)
	assert.ErrorIs(t, err, services.ErrPolicyNotFound)
}

func TestService_GetPolicies(t *testing.T) {
	f := newServiceFixture(t)
	filter := repositories.PolicyFilter{Limit: 10}
	f.repo.On("List", mock.Anything, filter).
		Return([]*models.Policy{activePolicy("a", models.PolicyTypeAccessControl)}, 42, nil)

	policies, total, err := f.svc.GetPolicies(context.Background(), filter)

	assert.NoError(t, err)
	assert.Len(t, policies, 1)
	assert.Equal(t, 42, total)
}

func TestService_ValidatePolicySyntax(t *testing.T) {
	f := newServiceFixture(t)

	tests := []struct {
		name       string
		mutate     func(*PolicyInput)
		wantErrors []string
	}{
		{name: "valid input", mutate: func(in *PolicyInput) {}},
		{
			name:       "missing name",
			mutate:     func(in *PolicyInput) { in.Name = "" },
			wantErrors: []string{"name is required"},
		},
		{
			name:       "missing type",
			mutate:     func(in *PolicyInput) { in.Type = "" },
			wantErrors: []string{"type is required"},
		},
		{
			name:       "missing rules",
			mutate:     func(in *PolicyInput) { in.Rules = nil },
			wantErrors: []string{"rules is required"},
		},
		{
			name: "condition without field and operator",
			mutate: func(in *PolicyInput) {
				in.Rules.Conditions = []models.Condition{{Value: "x"}}
			},
			wantErrors: []string{
				"conditions[0]: field is required",
				"conditions[0]: operator is required",
			},
		},
		{
			name: "action without type",
			mutate: func(in *PolicyInput) {
				in.Rules.Actions = []models.PolicyAction{{}}
			},
			wantErrors: []string{"actions[0]: type is required"},
		},
		{
			name: "exception with empty guard",
			mutate: func(in *PolicyInput) {
				in.Rules.Exceptions = []models.PolicyException{{Action: models.ActionAllow}}
			},
			wantErrors: []string{
				"exceptions[0]: condition field is required",
				"exceptions[0]: condition operator is required",
			},
		},
		{
			name: "multiple failures accumulate",
			mutate: func(in *PolicyInput) {
				in.Name = ""
				in.Type = ""
				in.Rules = nil
			},
			wantErrors: []string{"name is required", "type is required", "rules is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			result := f.svc.ValidatePolicySyntax(input)

			if len(tt.wantErrors) == 0 {
				assert.True(t, result.Valid)
				assert.Empty(t, result.Errors)
				return
			}
			assert.False(t, result.Valid)
			assert.Equal(t, tt.wantErrors, result.Errors)
		})
	}
}
