// Package faults defines the error taxonomy shared by the domain systems
// and the orchestration engine. Each category carries enough structure for
// callers to decide whether an operation is retriable and whether it
// mutated any state.
package faults

import (
	"fmt"
	"time"
)

// ValidationError reports malformed caller input. Operations rejecting
// input with a ValidationError mutate nothing and record no audit event.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validation creates a ValidationError for the given field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError reports an operation that is not legal in the entity's
// current status, such as resuming a thread that is not interrupted or
// executing a remediation plan that was never approved.
type InvalidStateError struct {
	Entity    string
	ID        string
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf(
		"invalid state: %s %s is %s, cannot %s",
		e.Entity, e.ID, e.Current, e.Attempted,
	)
}

// InvalidState creates an InvalidStateError.
func InvalidState(entity, id, current, attempted string) error {
	return &InvalidStateError{
		Entity:    entity,
		ID:        id,
		Current:   current,
		Attempted: attempted,
	}
}

// ReferentialIntegrityError reports a dangling or restricted reference:
// creating a child of a non-existent parent, or deleting a parent that
// live children still point at.
type ReferentialIntegrityError struct {
	Entity string
	Ref    string
	Reason string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity: %s -> %s: %s", e.Entity, e.Ref, e.Reason)
}

// Reference creates a ReferentialIntegrityError.
func Reference(entity, ref, reason string) error {
	return &ReferentialIntegrityError{Entity: entity, Ref: ref, Reason: reason}
}

// StageTimeoutError reports an external collaborator exceeding the
// configured stage deadline. The owning thread moves to FAILED; recovery
// is a new thread, never an in-place retry.
type StageTimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("stage %s timed out after %v", e.Stage, e.Timeout)
}

// StageTimeout creates a StageTimeoutError.
func StageTimeout(stage string, timeout time.Duration) error {
	return &StageTimeoutError{Stage: stage, Timeout: timeout}
}

// ExecutionError reports a remediation statement failing against the
// target database. Partial results are preserved on the plan; rollback is
// an explicit follow-up action, never automatic.
type ExecutionError struct {
	Statement string
	Detail    string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %s: %s", e.Statement, e.Detail)
}

// Execution creates an ExecutionError.
func Execution(statement, detail string) error {
	return &ExecutionError{Statement: statement, Detail: detail}
}
