package policy

import (
	"fmt"

	"github.com/Hycient195/academia-pro-access/models"
	"go.uber.org/zap"
)

// Verdict is the outcome of evaluating one policy against one context
type Verdict struct {
	Result      models.ActionType
	Reason      string
	Obligations []models.Obligation
}

// PolicyEvaluator evaluates a single policy's condition tree, exceptions,
// and actions into a verdict plus obligations
type PolicyEvaluator struct {
	conditions *ConditionEvaluator
	logger     *zap.Logger
}

// NewPolicyEvaluator creates a PolicyEvaluator
func NewPolicyEvaluator(conditions *ConditionEvaluator, logger *zap.Logger) *PolicyEvaluator {
	return &PolicyEvaluator{
		conditions: conditions,
		logger:     logger,
	}
}

// Evaluate runs one policy against the context. A policy whose condition
// fold is false does not trigger and yields allow without a reason. Any
// internal failure is converted to a deny verdict for this policy alone;
// it never propagates to the rest of the candidate set.
func (e *PolicyEvaluator) Evaluate(p *models.Policy, ctx *models.EvaluationContext) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("policy evaluation panicked",
				zap.String("policy_id", p.ID.String()),
				zap.Any("panic", r))
			verdict = Verdict{
				Result: models.ActionDeny,
				Reason: fmt.Sprintf("Policy evaluation error: %v", r),
			}
		}
	}()

	if !e.conditions.EvaluateAll(p.Rules.Conditions, ctx) {
		// Non-triggering policies never contribute a violation.
		return Verdict{Result: models.ActionAllow}
	}

	// First exception whose guard holds overrides the outcome.
	for _, ex := range p.Rules.Exceptions {
		if e.conditions.Evaluate(ex.Condition, ctx) {
			return Verdict{
				Result: ex.Action,
				Reason: fmt.Sprintf("Exception applied: %s", ex.Condition),
			}
		}
	}

	if len(p.Rules.Actions) == 0 {
		return Verdict{
			Result: models.ActionDeny,
			Reason: "Policy evaluation error: policy defines no actions",
		}
	}

	primary := p.Rules.Actions[0]
	reason := p.Description
	if reason == "" {
		reason = fmt.Sprintf("Policy %s triggered", p.Name)
	}

	return Verdict{
		Result:      primary.Type,
		Reason:      reason,
		Obligations: e.collectObligations(p, 1),
	}
}

// collectObligations gathers log/notify/escalate entries from the action
// list starting at from, regardless of the primary verdict
func (e *PolicyEvaluator) collectObligations(p *models.Policy, from int) []models.Obligation {
	var obligations []models.Obligation
	for i := from; i < len(p.Rules.Actions); i++ {
		a := p.Rules.Actions[i]
		switch a.Type {
		case models.ActionLog, models.ActionNotify, models.ActionEscalate:
			obligations = append(obligations, models.Obligation{
				Type:       a.Type,
				Parameters: a.Parameters,
				PolicyID:   p.ID.String(),
			})
		}
	}
	return obligations
}
