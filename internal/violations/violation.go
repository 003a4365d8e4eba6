// Package violations implements the violation domain: instances where a
// rule's condition matched data in a monitored connection, with a
// resolution lifecycle that keeps resolved_at/resolved_by coherent with
// status.
package violations

import (
	"time"

	"github.com/google/uuid"
)

// Severity grades how serious a violation is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status is the resolution state of a violation. Leaving OPEN requires
// resolution metadata; reopening clears it.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusRemediated    Status = "REMEDIATED"
	StatusAcceptedRisk  Status = "ACCEPTED_RISK"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Violation is one detected breach of a rule condition in a connection.
// The rule reference survives rule deprecation; it is restricted on
// delete so historical evidence stays anchored.
type Violation struct {
	ID                  uuid.UUID      `json:"id"`
	ThreadID            *uuid.UUID     `json:"thread_id,omitempty"`
	ConnectionID        uuid.UUID      `json:"connection_id"`
	RuleID              string         `json:"rule_id"`
	TableName           string         `json:"table_name"`
	ColumnName          *string        `json:"column_name,omitempty"`
	ConditionMatched    string         `json:"condition_matched"`
	Severity            Severity       `json:"severity"`
	Status              Status         `json:"status"`
	Evidence            map[string]any `json:"evidence,omitempty"`
	RemediationTemplate *string        `json:"remediation_template,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy          *string        `json:"resolved_by,omitempty"`
	DetectedAt          time.Time      `json:"detected_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CreateCommand carries the data needed to record a detected violation.
type CreateCommand struct {
	ThreadID            *uuid.UUID     `json:"thread_id,omitempty"`
	ConnectionID        uuid.UUID      `json:"connection_id"`
	RuleID              string         `json:"rule_id"`
	TableName           string         `json:"table_name"`
	ColumnName          *string        `json:"column_name,omitempty"`
	ConditionMatched    string         `json:"condition_matched"`
	Severity            Severity       `json:"severity"`
	Evidence            map[string]any `json:"evidence,omitempty"`
	RemediationTemplate *string        `json:"remediation_template,omitempty"`
	Actor               string         `json:"actor,omitempty"`
}

// ResolveCommand moves an OPEN violation to a resolved status.
type ResolveCommand struct {
	ID         uuid.UUID `json:"id"`
	Status     Status    `json:"status"`
	ResolvedBy string    `json:"resolved_by"`
	Actor      string    `json:"actor,omitempty"`
}
