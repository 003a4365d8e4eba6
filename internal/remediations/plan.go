// Package remediations implements remediation plans: ordered SQL
// statement lists proposed to fix one violation, moved through a strictly
// forward approval and execution lifecycle.
package remediations

import (
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/collaborators"
)

// RiskLevel grades the blast radius of executing a plan.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Status is the lifecycle state of a plan. Transitions only move
// forward; REJECTED, FAILED, and VERIFIED are terminal.
type Status string

const (
	StatusProposed Status = "PROPOSED"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusExecuted Status = "EXECUTED"
	StatusVerified Status = "VERIFIED"
	StatusFailed   Status = "FAILED"
)

// Plan is a proposed fix for one violation. The violation reference is
// restricted on delete; the plan cascades with its owning thread.
type Plan struct {
	ID                 uuid.UUID                      `json:"id"`
	ThreadID           uuid.UUID                      `json:"thread_id"`
	ViolationID        uuid.UUID                      `json:"violation_id"`
	Statements         []string                       `json:"statements"`
	RollbackStatements []string                       `json:"rollback_statements,omitempty"`
	RiskLevel          RiskLevel                      `json:"risk_level"`
	Status             Status                         `json:"status"`
	ExecutionReport    *collaborators.ExecutionReport `json:"execution_report,omitempty"`
	ApprovedBy         *string                        `json:"approved_by,omitempty"`
	CreatedAt          time.Time                      `json:"created_at"`
	UpdatedAt          time.Time                      `json:"updated_at"`
}

// CreateCommand carries the data needed to propose a remediation plan.
type CreateCommand struct {
	ThreadID           uuid.UUID `json:"thread_id"`
	ViolationID        uuid.UUID `json:"violation_id"`
	Statements         []string  `json:"statements"`
	RollbackStatements []string  `json:"rollback_statements,omitempty"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Actor              string    `json:"actor,omitempty"`
}

// TransitionCommand advances a plan to its next lifecycle status.
// Report carries the execution outcome for EXECUTED and FAILED.
type TransitionCommand struct {
	ID     uuid.UUID                      `json:"id"`
	Status Status                         `json:"status"`
	Actor  string                         `json:"actor,omitempty"`
	Report *collaborators.ExecutionReport `json:"report,omitempty"`
}
