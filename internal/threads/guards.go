package threads

import (
	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

var workflowTypes = map[WorkflowType]struct{}{
	WorkflowIngestion:      {},
	WorkflowPolicyReview:   {},
	WorkflowRemediation:    {},
	WorkflowConversational: {},
}

func validateCreate(cmd CreateCommand) error {
	if _, ok := workflowTypes[cmd.WorkflowType]; !ok {
		return faults.Validation("workflow_type", "must be ingestion, policy_review, remediation, or conversational")
	}
	if cmd.Stage == "" {
		return faults.Validation("stage", "required")
	}
	return nil
}

// guardMutation projects the mutation onto the current thread and
// rejects transitions that leave a terminal status or break the
// INTERRUPTED iff pending_review invariant.
func guardMutation(id uuid.UUID, current *Thread, m Mutation) error {
	next := current.Status
	if m.Status != nil {
		next = *m.Status
	}

	if current.Terminal() {
		return faults.InvalidState("thread", id.String(), string(current.Status), string(next))
	}

	review := current.PendingReview
	if m.ClearPendingReview {
		review = nil
	}
	if m.PendingReview != nil {
		review = m.PendingReview
	}

	if next == StatusInterrupted && review == nil {
		return faults.Validation("pending_review", "required for INTERRUPTED")
	}
	if next != StatusInterrupted && review != nil {
		return faults.Validation("pending_review", "must be null outside INTERRUPTED")
	}

	return nil
}
