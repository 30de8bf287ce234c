package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PolicyType classifies what aspect of the platform a policy governs
type PolicyType string

const (
	PolicyTypePassword           PolicyType = "password"
	PolicyTypeMFA                PolicyType = "mfa"
	PolicyTypeSession            PolicyType = "session"
	PolicyTypeLogin              PolicyType = "login"
	PolicyTypeAccessControl      PolicyType = "access_control"
	PolicyTypeRole               PolicyType = "role"
	PolicyTypePermission         PolicyType = "permission"
	PolicyTypeResource           PolicyType = "resource"
	PolicyTypeDataClassification PolicyType = "data_classification"
	PolicyTypeEncryption         PolicyType = "encryption"
	PolicyTypeRetention          PolicyType = "retention"
	PolicyTypeSharing            PolicyType = "sharing"
	PolicyTypeAudit              PolicyType = "audit"
	PolicyTypeCompliance         PolicyType = "compliance"
	PolicyTypeBackup             PolicyType = "backup"
	PolicyTypeNetwork            PolicyType = "network"
	PolicyTypeDevice             PolicyType = "device"
	PolicyTypeIncident           PolicyType = "incident"
	PolicyTypeOperational        PolicyType = "operational"
)

// PolicyStatus represents the lifecycle state of a policy
type PolicyStatus string

const (
	PolicyStatusDraft      PolicyStatus = "draft"
	PolicyStatusActive     PolicyStatus = "active"
	PolicyStatusInactive   PolicyStatus = "inactive"
	PolicyStatusArchived   PolicyStatus = "archived"
	PolicyStatusDeprecated PolicyStatus = "deprecated"
)

// PolicyScope represents the organizational breadth a policy applies to
type PolicyScope string

const (
	ScopeGlobal       PolicyScope = "global"
	ScopeOrganization PolicyScope = "organization"
	ScopeUserGroup    PolicyScope = "user_group"
	ScopeDepartment   PolicyScope = "department"
	ScopeIndividual   PolicyScope = "individual"
)

// EnforcementLevel controls how strictly a policy's deny outcome is treated.
// Only EnforcementStrict short-circuits evaluation of lower-priority policies.
type EnforcementLevel string

const (
	EnforcementPermissive EnforcementLevel = "permissive"
	EnforcementStrict     EnforcementLevel = "strict"
	EnforcementAuditOnly  EnforcementLevel = "audit_only"
	EnforcementDisabled   EnforcementLevel = "disabled"
)

// ConditionOperator is the closed set of comparison operators a condition may use
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorIn          ConditionOperator = "in"
	OperatorNotIn       ConditionOperator = "not_in"
	OperatorExists      ConditionOperator = "exists"
	OperatorNotExists   ConditionOperator = "not_exists"
)

// LogicalOperator joins a condition's result with the accumulated fold result
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// ActionType is the closed set of outcomes a policy action can produce.
// allow/deny/warn are verdicts; log/notify/escalate are obligations.
type ActionType string

const (
	ActionAllow    ActionType = "allow"
	ActionDeny     ActionType = "deny"
	ActionWarn     ActionType = "warn"
	ActionLog      ActionType = "log"
	ActionNotify   ActionType = "notify"
	ActionEscalate ActionType = "escalate"
)

// Condition is a single comparison against a dotted path into the evaluation context
type Condition struct {
	Field           string            `json:"field"`
	Operator        ConditionOperator `json:"operator"`
	Value           interface{}       `json:"value,omitempty"`
	LogicalOperator LogicalOperator   `json:"logicalOperator,omitempty"`
}

// String renders the condition for reasons and audit descriptions
func (c Condition) String() string {
	if c.Value == nil {
		return fmt.Sprintf("%s %s", c.Field, c.Operator)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Value)
}

// PolicyAction describes what happens when a policy triggers
type PolicyAction struct {
	Type       ActionType             `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// PolicyException overrides the triggered outcome when its guard condition holds
type PolicyException struct {
	Condition Condition  `json:"condition"`
	Action    ActionType `json:"action"`
}

// PolicyRules is the rule body of a policy: an ordered condition list,
// an ordered action list, and optional exceptions
type PolicyRules struct {
	Conditions []Condition       `json:"conditions,omitempty"`
	Actions    []PolicyAction    `json:"actions"`
	Exceptions []PolicyException `json:"exceptions,omitempty"`
}

// Policy is the unit of access-control configuration
type Policy struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	DisplayName string       `json:"display_name" db:"display_name"`
	Description string       `json:"description" db:"description"`
	Version     int          `json:"version" db:"version"`
	Type        PolicyType   `json:"type" db:"type"`
	Status      PolicyStatus `json:"status" db:"status"`

	// Applicability
	Scope          PolicyScope `json:"scope" db:"scope"`
	ScopeID        string      `json:"scope_id,omitempty" db:"scope_id"`
	EffectiveFrom  *time.Time  `json:"effective_from,omitempty" db:"effective_from"`
	EffectiveUntil *time.Time  `json:"effective_until,omitempty" db:"effective_until"`

	Enforcement EnforcementLevel `json:"enforcement_level" db:"enforcement_level"`
	Priority    int              `json:"priority" db:"priority"`
	Rules       PolicyRules      `json:"rules" db:"rules"`

	// Governance
	CreatedBy        string     `json:"created_by" db:"created_by"`
	UpdatedBy        string     `json:"updated_by" db:"updated_by"`
	IsSystemPolicy   bool       `json:"is_system_policy" db:"is_system_policy"`
	IsMandatory      bool       `json:"is_mandatory" db:"is_mandatory"`
	RequiresApproval bool       `json:"requires_approval" db:"requires_approval"`
	ApprovedBy       string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty" db:"approved_at"`

	// Usage statistics; counters only, never invariant-bearing
	EvaluationCount int64      `json:"evaluation_count" db:"evaluation_count"`
	ViolationCount  int64      `json:"violation_count" db:"violation_count"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty" db:"last_evaluated_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Policy model
func (Policy) TableName() string {
	return "policies"
}

// NewPolicy creates a policy with authoring defaults: draft status,
// strict enforcement, priority 100.
func NewPolicy(name string, policyType PolicyType, rules PolicyRules, createdBy string) *Policy {
	now := time.Now()
	return &Policy{
		ID:          uuid.New(),
		Name:        name,
		Version:     1,
		Type:        policyType,
		Status:      PolicyStatusDraft,
		Scope:       ScopeGlobal,
		Enforcement: EnforcementStrict,
		Priority:    100,
		Rules:       rules,
		CreatedBy:   createdBy,
		UpdatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsEffectiveAt reports whether t falls inside the policy's validity window.
// An unset bound is open-ended.
func (p *Policy) IsEffectiveAt(t time.Time) bool {
	if p.EffectiveFrom != nil && t.Before(*p.EffectiveFrom) {
		return false
	}
	if p.EffectiveUntil != nil && t.After(*p.EffectiveUntil) {
		return false
	}
	return true
}

// AppliesToScope reports whether the policy's scope covers the given scope
// identifier. Global policies match everything; narrower scopes require exact
// scope-id equality.
func (p *Policy) AppliesToScope(scopeID string) bool {
	if p.Scope == ScopeGlobal {
		return true
	}
	return p.ScopeID != "" && p.ScopeID == scopeID
}

// IsRetired reports whether the policy is permanently excluded from catalog retrieval
func (p *Policy) IsRetired() bool {
	return p.Status == PolicyStatusArchived || p.Status == PolicyStatusDeprecated
}
