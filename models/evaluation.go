package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserContext describes the principal whose access is being evaluated
type UserContext struct {
	ID             string                 `json:"id"`
	Roles          []string               `json:"roles"`
	OrganizationID string                 `json:"organizationId,omitempty"`
	Attributes     map[string]interface{} `json:"attributes,omitempty"`
}

// ResourceContext describes the resource being accessed
type ResourceContext struct {
	Type       string                 `json:"type"`
	ID         string                 `json:"id,omitempty"`
	OwnerID    string                 `json:"ownerId,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// EnvironmentContext describes the circumstances of the access attempt
type EnvironmentContext struct {
	SourceAddress string                 `json:"sourceAddress"`
	Agent         string                 `json:"agent"`
	Timestamp     time.Time              `json:"timestamp"`
	SessionID     string                 `json:"sessionId,omitempty"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
}

// RequestContext carries the HTTP-level shape of the access attempt, when known
type RequestContext struct {
	Method     string                 `json:"method"`
	Path       string                 `json:"path"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Body       map[string]interface{} `json:"body,omitempty"`
}

// EvaluationContext is the transient input to one access decision.
// Built fresh per call and never mutated during evaluation.
type EvaluationContext struct {
	User        UserContext        `json:"user"`
	Resource    ResourceContext    `json:"resource"`
	Action      string             `json:"action"`
	Environment EnvironmentContext `json:"environment"`
	Request     *RequestContext    `json:"request,omitempty"`
}

// Lookup resolves a dotted path against the context tree. The second return
// is false when any intermediate segment is missing, which condition
// operators treat as a non-match (except not_exists).
func (c *EvaluationContext) Lookup(path string) (interface{}, bool) {
	var node interface{} = c.tree()
	for _, segment := range strings.Split(path, ".") {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// tree materializes the context as nested maps for dotted-path traversal
func (c *EvaluationContext) tree() map[string]interface{} {
	root := map[string]interface{}{
		"user": map[string]interface{}{
			"id":             c.User.ID,
			"roles":          c.User.Roles,
			"organizationId": c.User.OrganizationID,
			"attributes":     attributesOrEmpty(c.User.Attributes),
		},
		"resource": map[string]interface{}{
			"type":       c.Resource.Type,
			"id":         c.Resource.ID,
			"ownerId":    c.Resource.OwnerID,
			"attributes": attributesOrEmpty(c.Resource.Attributes),
		},
		"action": c.Action,
		"environment": map[string]interface{}{
			"sourceAddress": c.Environment.SourceAddress,
			"agent":         c.Environment.Agent,
			"timestamp":     c.Environment.Timestamp,
			"sessionId":     c.Environment.SessionID,
			"attributes":    attributesOrEmpty(c.Environment.Attributes),
		},
	}
	if c.Request != nil {
		root["request"] = map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.Path,
			"parameters": attributesOrEmpty(c.Request.Parameters),
			"body":       attributesOrEmpty(c.Request.Body),
		}
	}
	return root
}

func attributesOrEmpty(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return map[string]interface{}{}
	}
	return attrs
}

// ViolationSeverity grades a recorded violation
type ViolationSeverity string

const (
	SeverityLow      ViolationSeverity = "low"
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

// Violation records a deny or warn outcome produced by one policy
// during one evaluation pass
type Violation struct {
	PolicyID string            `json:"policyId"`
	Rule     string            `json:"rule"`
	Severity ViolationSeverity `json:"severity"`
}

// Obligation is a side-effect instruction attached to a decision,
// independent of the allow/deny/warn verdict
type Obligation struct {
	Type       ActionType             `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	PolicyID   string                 `json:"policyId"`
}

// PolicyEvaluationResult is the terminal outcome of one access decision
type PolicyEvaluationResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
	// PolicyID identifies the policy whose deny decided the outcome, when any
	PolicyID string `json:"policyId,omitempty"`
	// AppliedPolicies lists every candidate considered for sorting,
	// including ones never reached after a strict short-circuit
	AppliedPolicies []uuid.UUID  `json:"appliedPolicies"`
	Violations      []Violation  `json:"violations"`
	Obligations     []Obligation `json:"obligations"`
}
