package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventKind represents the type of event being audited
type AuditEventKind string

const (
	AuditEventAccessDecision   AuditEventKind = "access_decision"
	AuditEventAccessDenied     AuditEventKind = "access_denied"
	AuditEventEvaluationFailed AuditEventKind = "evaluation_failed"
	AuditEventPolicyCreated    AuditEventKind = "policy_created"
	AuditEventPolicyUpdated    AuditEventKind = "policy_updated"
	AuditEventPolicyPublished  AuditEventKind = "policy_published"
	AuditEventPolicyArchived   AuditEventKind = "policy_archived"
	AuditEventPolicyDeprecated AuditEventKind = "policy_deprecated"
	AuditEventPolicyDeleted    AuditEventKind = "policy_deleted"
)

// AuditSeverity grades an audit record
type AuditSeverity string

const (
	AuditSeverityInfo     AuditSeverity = "info"
	AuditSeverityWarning  AuditSeverity = "warning"
	AuditSeverityError    AuditSeverity = "error"
	AuditSeverityCritical AuditSeverity = "critical"
)

// AuditRecord is the durable trail entry for one decision or
// administrative action
type AuditRecord struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	EventKind     AuditEventKind  `json:"event_kind" db:"event_kind"`
	PrincipalID   *string         `json:"principal_id,omitempty" db:"principal_id"`
	Severity      AuditSeverity   `json:"severity" db:"severity"`
	Description   string          `json:"description" db:"description"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	SourceAddress string          `json:"source_address,omitempty" db:"source_address"`
	Agent         string          `json:"agent,omitempty" db:"agent"`
	Timestamp     time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditRecord model
func (AuditRecord) TableName() string {
	return "audit_records"
}

// NewAuditRecord creates an audit record stamped with a fresh id and time
func NewAuditRecord(kind AuditEventKind, severity AuditSeverity, description string) *AuditRecord {
	return &AuditRecord{
		ID:          uuid.New(),
		EventKind:   kind,
		Severity:    severity,
		Description: description,
		Timestamp:   time.Now(),
	}
}

// WithPrincipal sets the acting principal
func (a *AuditRecord) WithPrincipal(principalID string) *AuditRecord {
	if principalID != "" {
		a.PrincipalID = &principalID
	}
	return a
}

// WithMetadata marshals and attaches structured metadata
func (a *AuditRecord) WithMetadata(metadata interface{}) *AuditRecord {
	if data, err := json.Marshal(metadata); err == nil {
		a.Metadata = data
	}
	return a
}

// WithSource sets the network origin of the audited action
func (a *AuditRecord) WithSource(sourceAddress, agent string) *AuditRecord {
	a.SourceAddress = sourceAddress
	a.Agent = agent
	return a
}
