package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/Hycient195/academia-pro-access/services"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PolicyInput is the authoring payload for creating or updating a policy
type PolicyInput struct {
	Name             string                   `json:"name"`
	DisplayName      string                   `json:"display_name"`
	Description      string                   `json:"description"`
	Type             models.PolicyType        `json:"type"`
	Scope            *models.PolicyScope      `json:"scope,omitempty"`
	ScopeID          *string                  `json:"scope_id,omitempty"`
	EffectiveFrom    *time.Time               `json:"effective_from,omitempty"`
	EffectiveUntil   *time.Time               `json:"effective_until,omitempty"`
	Enforcement      *models.EnforcementLevel `json:"enforcement_level,omitempty"`
	Priority         *int                     `json:"priority,omitempty"`
	Rules            *models.PolicyRules      `json:"rules,omitempty"`
	IsMandatory      *bool                    `json:"is_mandatory,omitempty"`
	RequiresApproval *bool                    `json:"requires_approval,omitempty"`
}

// ValidationResult reports structural syntax checks on a policy payload
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Service is the policy administration surface: CRUD, lifecycle
// transitions, and structural validation. Every mutation is audited.
type Service struct {
	repo    repositories.PolicyRepository
	catalog *PolicyCatalog
	audit   AuditSink
	logger  *zap.Logger
}

// NewService creates the policy administration service
func NewService(repo repositories.PolicyRepository, catalog *PolicyCatalog, audit AuditSink, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		audit:   audit,
		logger:  logger,
	}
}

// CreatePolicy validates and persists a new draft policy. Defaults:
// status draft, strict enforcement, priority 100, global scope.
func (s *Service) CreatePolicy(ctx context.Context, input PolicyInput, actorID string) (*models.Policy, error) {
	if v := s.ValidatePolicySyntax(input); !v.Valid {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration, "policy syntax validation failed", nil).
			WithDetail("errors", v.Errors)
	}

	p := models.NewPolicy(input.Name, input.Type, *input.Rules, actorID)
	p.DisplayName = input.DisplayName
	p.Description = input.Description
	applyOptional(p, input)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	s.catalog.InvalidateCache()
	s.recordAdminEvent(ctx, models.AuditEventPolicyCreated, actorID,
		fmt.Sprintf("policy %q created", p.Name), p)

	s.logger.Info("policy created",
		zap.String("policy_id", p.ID.String()),
		zap.String("name", p.Name),
		zap.String("type", string(p.Type)))

	return p, nil
}

// loadPolicy fetches a policy for a service operation. The repository's
// not-found sentinel passes through untouched; anything else is an
// infrastructure failure and must not masquerade as a missing policy.
func (s *Service) loadPolicy(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrPolicyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return p, nil
}

// UpdatePolicy applies a partial update. A system policy may only be
// structurally altered while still in draft.
func (s *Service) UpdatePolicy(ctx context.Context, id uuid.UUID, input PolicyInput, actorID string) (*models.Policy, error) {
	p, err := s.loadPolicy(ctx, id)
	if err != nil {
		return nil, err
	}

	structural := input.Rules != nil || input.Type != "" || input.Scope != nil || input.ScopeID != nil
	if structural && p.IsSystemPolicy && p.Status != models.PolicyStatusDraft {
		return nil, services.NewDomainError(services.ErrorTypeForbidden,
			"system policies may only be structurally altered while in draft", nil)
	}

	if input.Name != "" {
		p.Name = input.Name
	}
	if input.DisplayName != "" {
		p.DisplayName = input.DisplayName
	}
	if input.Description != "" {
		p.Description = input.Description
	}
	if input.Type != "" {
		p.Type = input.Type
	}
	applyOptional(p, input)

	if v := s.validateRules(p.Rules); len(v) > 0 {
		return nil, services.NewDomainError(services.ErrorTypeConfiguration, "policy syntax validation failed", nil).
			WithDetail("errors", v)
	}

	p.Version++
	p.UpdatedBy = actorID
	p.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update policy: %w", err)
	}

	s.catalog.InvalidateCache()
	s.recordAdminEvent(ctx, models.AuditEventPolicyUpdated, actorID,
		fmt.Sprintf("policy %q updated to version %d", p.Name, p.Version), p)

	s.logger.Info("policy updated",
		zap.String("policy_id", p.ID.String()),
		zap.Int("version", p.Version))

	return p, nil
}

// PublishPolicy transitions a draft policy to active
func (s *Service) PublishPolicy(ctx context.Context, id uuid.UUID, actorID string) (*models.Policy, error) {
	return s.transition(ctx, id, actorID, models.PolicyStatusActive, models.AuditEventPolicyPublished,
		func(p *models.Policy) error {
			if p.Status != models.PolicyStatusDraft && p.Status != models.PolicyStatusInactive {
				return services.NewDomainError(services.ErrorTypeConflict,
					fmt.Sprintf("cannot publish policy in status %s", p.Status), nil)
			}
			if p.RequiresApproval && p.ApprovedBy == "" {
				return services.NewDomainError(services.ErrorTypeConflict,
					"policy requires approval before publishing", nil)
			}
			return nil
		})
}

// ArchivePolicy permanently excludes a policy from catalog retrieval
func (s *Service) ArchivePolicy(ctx context.Context, id uuid.UUID, actorID string) (*models.Policy, error) {
	return s.transition(ctx, id, actorID, models.PolicyStatusArchived, models.AuditEventPolicyArchived, nil)
}

// DeprecatePolicy marks a policy deprecated; like archiving it is permanent
func (s *Service) DeprecatePolicy(ctx context.Context, id uuid.UUID, actorID string) (*models.Policy, error) {
	return s.transition(ctx, id, actorID, models.PolicyStatusDeprecated, models.AuditEventPolicyDeprecated, nil)
}

// transition applies a lifecycle status change with an optional guard
func (s *Service) transition(ctx context.Context, id uuid.UUID, actorID string, to models.PolicyStatus, event models.AuditEventKind, guard func(*models.Policy) error) (*models.Policy, error) {
	p, err := s.loadPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(p); err != nil {
			return nil, err
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, to, actorID); err != nil {
		return nil, fmt.Errorf("failed to transition policy status: %w", err)
	}
	p.Status = to
	p.UpdatedBy = actorID

	s.catalog.InvalidateCache()
	s.recordAdminEvent(ctx, event, actorID,
		fmt.Sprintf("policy %q moved to %s", p.Name, to), p)

	s.logger.Info("policy status changed",
		zap.String("policy_id", id.String()),
		zap.String("status", string(to)))

	return p, nil
}

// DeletePolicy removes a policy outright. Deletion is an explicit,
// audited administrative action, not a lifecycle step; system policies
// cannot be deleted.
func (s *Service) DeletePolicy(ctx context.Context, id uuid.UUID, actorID string) error {
	p, err := s.loadPolicy(ctx, id)
	if err != nil {
		return err
	}
	if p.IsSystemPolicy {
		return services.NewDomainError(services.ErrorTypeForbidden, "system policies cannot be deleted", nil)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete policy: %w", err)
	}

	s.catalog.InvalidateCache()
	s.recordAdminEvent(ctx, models.AuditEventPolicyDeleted, actorID,
		fmt.Sprintf("policy %q deleted", p.Name), p)

	s.logger.Info("policy deleted",
		zap.String("policy_id", id.String()),
		zap.String("actor_id", actorID))

	return nil
}

// GetPolicy retrieves a single policy by id
func (s *Service) GetPolicy(ctx context.Context, id uuid.UUID) (*models.Policy, error) {
	return s.loadPolicy(ctx, id)
}

// GetPolicies lists policies matching the filter plus the unpaged total
func (s *Service) GetPolicies(ctx context.Context, filter repositories.PolicyFilter) ([]*models.Policy, int, error) {
	policies, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list policies: %w", err)
	}
	return policies, total, nil
}

// ValidatePolicySyntax performs structural checks only: name, type, and
// rules are required; each condition needs a field and operator; each
// action needs a type. Semantic validity is the evaluator's concern.
func (s *Service) ValidatePolicySyntax(input PolicyInput) ValidationResult {
	var errs []string

	if input.Name == "" {
		errs = append(errs, "name is required")
	}
	if input.Type == "" {
		errs = append(errs, "type is required")
	}
	if input.Rules == nil {
		errs = append(errs, "rules is required")
	} else {
		errs = append(errs, s.validateRules(*input.Rules)...)
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: append([]string{}, errs...),
	}
}

func (s *Service) validateRules(rules models.PolicyRules) []string {
	var errs []string
	for i, c := range rules.Conditions {
		if c.Field == "" {
			errs = append(errs, fmt.Sprintf("conditions[%d]: field is required", i))
		}
		if c.Operator == "" {
			errs = append(errs, fmt.Sprintf("conditions[%d]: operator is required", i))
		}
	}
	for i, a := range rules.Actions {
		if a.Type == "" {
			errs = append(errs, fmt.Sprintf("actions[%d]: type is required", i))
		}
	}
	for i, ex := range rules.Exceptions {
		if ex.Condition.Field == "" {
			errs = append(errs, fmt.Sprintf("exceptions[%d]: condition field is required", i))
		}
		if ex.Condition.Operator == "" {
			errs = append(errs, fmt.Sprintf("exceptions[%d]: condition operator is required", i))
		}
	}
	return errs
}

// recordAdminEvent emits an audit record for an administrative action;
// failures are logged and never surfaced to the caller
func (s *Service) recordAdminEvent(ctx context.Context, kind models.AuditEventKind, actorID, description string, p *models.Policy) {
	metadata := map[string]interface{}{
		"policyId": p.ID.String(),
		"name":     p.Name,
		"type":     p.Type,
		"status":   p.Status,
		"version":  p.Version,
		"priority": p.Priority,
	}

	var principal *string
	if actorID != "" {
		principal = &actorID
	}

	if _, err := s.audit.Record(ctx, kind, principal, models.AuditSeverityInfo, description, metadata, "", ""); err != nil {
		s.logger.Warn("failed to record policy admin audit",
			zap.String("policy_id", p.ID.String()),
			zap.Error(err))
	}
}

// applyOptional copies the optional pointer fields of the input onto the policy
func applyOptional(p *models.Policy, input PolicyInput) {
	if input.Scope != nil {
		p.Scope = *input.Scope
	}
	if input.ScopeID != nil {
		p.ScopeID = *input.ScopeID
	}
	if input.EffectiveFrom != nil {
		p.EffectiveFrom = input.EffectiveFrom
	}
	if input.EffectiveUntil != nil {
		p.EffectiveUntil = input.EffectiveUntil
	}
	if input.Enforcement != nil {
		p.Enforcement = *input.Enforcement
	}
	if input.Priority != nil {
		p.Priority = *input.Priority
	}
	if input.Rules != nil {
		p.Rules = *input.Rules
	}
	if input.IsMandatory != nil {
		p.IsMandatory = *input.IsMandatory
	}
	if input.RequiresApproval != nil {
		p.RequiresApproval = *input.RequiresApproval
	}
}
