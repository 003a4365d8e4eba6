// Package threads implements the durable orchestrator thread: one row
// per workflow execution, holding the stage checkpoint, the pending
// human-review payload, and an optimistic version column used by the
// engine's per-thread lease.
package threads

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowType selects the fixed stage graph a thread runs.
type WorkflowType string

const (
	WorkflowIngestion      WorkflowType = "ingestion"
	WorkflowPolicyReview   WorkflowType = "policy_review"
	WorkflowRemediation    WorkflowType = "remediation"
	WorkflowConversational WorkflowType = "conversational"
)

// Status is the execution state of a thread. COMPLETED, FAILED, and
// CANCELLED are final. INTERRUPTED holds exactly when pending_review
// is non-null.
type Status string

const (
	StatusRunning     Status = "RUNNING"
	StatusInterrupted Status = "INTERRUPTED"
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
)

// ReviewRequest is the structured payload a stage persists when it
// needs human input before the thread can continue.
type ReviewRequest struct {
	ReviewType  string         `json:"review_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Options     []string       `json:"options"`
}

// Thread is one durable workflow execution. Stage is the checkpoint
// pointer: the stage the engine will run (or re-run, after a resume)
// on the next advance.
type Thread struct {
	ID            uuid.UUID      `json:"id"`
	WorkflowType  WorkflowType   `json:"workflow_type"`
	Status        Status         `json:"status"`
	Stage         string         `json:"stage"`
	Input         map[string]any `json:"input,omitempty"`
	PendingReview *ReviewRequest `json:"pending_review,omitempty"`
	HumanDecision *string        `json:"human_decision,omitempty"`
	HumanFeedback *string        `json:"human_feedback,omitempty"`
	UserMessage   *string        `json:"user_message,omitempty"`
	FinalResponse *string        `json:"final_response,omitempty"`
	ErrorDetail   *string        `json:"error_detail,omitempty"`
	Actor         string         `json:"actor,omitempty"`
	Version       int            `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Terminal reports whether the thread has reached a final status.
func (t *Thread) Terminal() bool {
	return TerminalStatus(t.Status)
}

// TerminalStatus reports whether s is final.
func TerminalStatus(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CreateCommand carries the data needed to start a new thread.
type CreateCommand struct {
	WorkflowType WorkflowType   `json:"workflow_type"`
	Stage        string         `json:"stage"`
	Input        map[string]any `json:"input,omitempty"`
	UserMessage  *string        `json:"user_message,omitempty"`
	Actor        string         `json:"actor,omitempty"`
}

// Mutation describes the field changes of one logical thread
// transition. Nil fields are left unchanged; the Clear flags reset
// their columns to NULL.
type Mutation struct {
	Status             *Status
	Stage              *string
	PendingReview      *ReviewRequest
	ClearPendingReview bool
	HumanDecision      *string
	HumanFeedback      *string
	ClearHumanDecision bool
	FinalResponse      *string
	ErrorDetail        *string
}
