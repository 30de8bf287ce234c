package policy

import (
	"context"
	"sort"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditSink records every access decision durably. Implementations must not
// let recording failures reach the decision path; the aggregator swallows
// and logs any error it returns regardless.
type AuditSink interface {
	Record(ctx context.Context, kind models.AuditEventKind, principalID *string, severity models.AuditSeverity, description string, metadata map[string]interface{}, sourceAddress, agent string) (uuid.UUID, error)
}

// DecisionAggregator orchestrates one access decision: it fetches the
// candidate snapshot, sorts by priority, iterates with short-circuit rules,
// folds per-policy verdicts into the final result, and emits an audit record.
type DecisionAggregator struct {
	catalog   *PolicyCatalog
	evaluator *PolicyEvaluator
	audit     AuditSink
	repo      repositories.PolicyRepository
	logger    *zap.Logger
}

// NewDecisionAggregator creates a DecisionAggregator
func NewDecisionAggregator(catalog *PolicyCatalog, evaluator *PolicyEvaluator, audit AuditSink, repo repositories.PolicyRepository, logger *zap.Logger) *DecisionAggregator {
	return &DecisionAggregator{
		catalog:   catalog,
		evaluator: evaluator,
		audit:     audit,
		repo:      repo,
		logger:    logger,
	}
}

// EvaluateAccess produces the decision for one evaluation context. It never
// returns an error: every failure mode degrades to deny, and a well-formed
// result with a human-readable reason always comes back.
func (s *DecisionAggregator) EvaluateAccess(ctx context.Context, ec *models.EvaluationContext) (result *models.PolicyEvaluationResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("access evaluation panicked", zap.Any("panic", r))
			result = s.failClosed(ctx, ec)
		}
	}()

	candidates, err := s.catalog.GetApplicable(ctx, ec)
	if err != nil {
		s.logger.Error("candidate retrieval failed",
			zap.String("user_id", ec.User.ID),
			zap.Error(err))
		return s.failClosed(ctx, ec)
	}

	result = s.aggregate(ec, candidates)
	s.recordDecision(ctx, ec, result)
	s.recordUsage(ctx, candidates, result)
	return result
}

// aggregate folds sorted candidate verdicts into the final decision
func (s *DecisionAggregator) aggregate(ec *models.EvaluationContext, candidates []*models.Policy) *models.PolicyEvaluationResult {
	result := &models.PolicyEvaluationResult{
		Allowed:         true,
		AppliedPolicies: make([]uuid.UUID, 0, len(candidates)),
		Violations:      make([]models.Violation, 0),
		Obligations:     make([]models.Obligation, 0),
	}

	if len(candidates) == 0 {
		result.Reason = "No applicable policies found"
		return result
	}

	// Higher priority evaluates first. Candidates arrive in creation order,
	// so a stable sort keeps insertion order for priority ties.
	sorted := make([]*models.Policy, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	// appliedPolicies records every candidate considered for sorting, not
	// just those reached before a strict short-circuit.
	for _, p := range sorted {
		result.AppliedPolicies = append(result.AppliedPolicies, p.ID)
	}

	for _, p := range sorted {
		verdict := s.evaluator.Evaluate(p, ec)
		result.Obligations = append(result.Obligations, verdict.Obligations...)

		switch verdict.Result {
		case models.ActionDeny:
			// The flag is sticky: once false it is never reset by a
			// later allow.
			result.Allowed = false
			result.Reason = verdict.Reason
			result.PolicyID = p.ID.String()
			result.Violations = append(result.Violations, models.Violation{
				PolicyID: p.ID.String(),
				Rule:     verdict.Reason,
				Severity: mapSeverity(p.Enforcement),
			})
			if p.Enforcement == models.EnforcementStrict {
				// Lower-priority policies are never evaluated and
				// contribute no violations.
				return result
			}
		case models.ActionWarn:
			result.Violations = append(result.Violations, models.Violation{
				PolicyID: p.ID.String(),
				Rule:     verdict.Reason,
				Severity: models.SeverityLow,
			})
		}
	}

	if result.Allowed && result.Reason == "" {
		result.Reason = "All applicable policies satisfied"
	}
	return result
}

// failClosed builds the global deny result for failures outside the
// per-policy evaluation scope, and still emits an audit record
func (s *DecisionAggregator) failClosed(ctx context.Context, ec *models.EvaluationContext) *models.PolicyEvaluationResult {
	result := &models.PolicyEvaluationResult{
		Allowed:         false,
		Reason:          "Policy evaluation failed",
		AppliedPolicies: make([]uuid.UUID, 0),
		Violations: []models.Violation{{
			PolicyID: "system",
			Rule:     "Policy evaluation failed",
			Severity: models.SeverityCritical,
		}},
		Obligations: make([]models.Obligation, 0),
	}
	s.recordDecision(ctx, ec, result)
	return result
}

// recordDecision emits one audit record per evaluation. Audit emission is
// fire-and-forget: a recording failure never alters the returned decision.
func (s *DecisionAggregator) recordDecision(ctx context.Context, ec *models.EvaluationContext, result *models.PolicyEvaluationResult) {
	kind := models.AuditEventAccessDecision
	severity := models.AuditSeverityInfo
	if !result.Allowed {
		kind = models.AuditEventAccessDenied
		severity = models.AuditSeverityWarning
	}
	for _, v := range result.Violations {
		if v.Severity == models.SeverityCritical {
			kind = models.AuditEventEvaluationFailed
			severity = models.AuditSeverityCritical
			break
		}
	}

	var principal *string
	if ec.User.ID != "" {
		id := ec.User.ID
		principal = &id
	}

	metadata := map[string]interface{}{
		"action":          ec.Action,
		"resourceType":    ec.Resource.Type,
		"resourceId":      ec.Resource.ID,
		"allowed":         result.Allowed,
		"reason":          result.Reason,
		"policyId":        result.PolicyID,
		"appliedPolicies": result.AppliedPolicies,
		"violations":      result.Violations,
		"obligations":     result.Obligations,
	}

	if _, err := s.audit.Record(ctx, kind, principal, severity, result.Reason, metadata, ec.Environment.SourceAddress, ec.Environment.Agent); err != nil {
		s.logger.Warn("failed to record access decision audit",
			zap.String("user_id", ec.User.ID),
			zap.Error(err))
	}
}

// recordUsage bumps usage counters for the evaluated candidates in the
// background; counters are best-effort and never block the decision
func (s *DecisionAggregator) recordUsage(ctx context.Context, candidates []*models.Policy, result *models.PolicyEvaluationResult) {
	if len(candidates) == 0 {
		return
	}

	violated := make(map[string]bool, len(result.Violations))
	for _, v := range result.Violations {
		violated[v.PolicyID] = true
	}
	now := time.Now()

	go func() {
		usageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		for _, p := range candidates {
			if err := s.repo.RecordUsage(usageCtx, p.ID, violated[p.ID.String()], now); err != nil {
				s.logger.Debug("failed to record policy usage",
					zap.String("policy_id", p.ID.String()),
					zap.Error(err))
			}
		}
	}()
}

// mapSeverity converts a policy's enforcement level to the severity of a
// deny violation it produces
func mapSeverity(level models.EnforcementLevel) models.ViolationSeverity {
	switch level {
	case models.EnforcementPermissive:
		return models.SeverityLow
	case models.EnforcementStrict:
		return models.SeverityHigh
	case models.EnforcementAuditOnly:
		return models.SeverityMedium
	default:
		return models.SeverityMedium
	}
}
