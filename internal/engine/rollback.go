package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// RollbackPlan applies a plan's rollback statements to the monitored
// database. Rollback never happens automatically; this is the single
// entry point, and it only accepts plans that reached EXECUTED or
// FAILED. An EXECUTED plan moves to FAILED once its effects are undone.
func (e *Engine) RollbackPlan(ctx context.Context, planID uuid.UUID, actor string) (*collaborators.ExecutionReport, error) {
	plan, err := e.rt.Plans.Find(ctx, planID)
	if err != nil {
		return nil, err
	}

	switch plan.Status {
	case remediations.StatusExecuted, remediations.StatusFailed:
	default:
		return nil, faults.InvalidState("remediation plan", plan.ID.String(), string(plan.Status), "rollback")
	}

	if len(plan.RollbackStatements) == 0 {
		return nil, faults.Validation("rollback_statements", "plan has no rollback statements")
	}

	v, err := e.rt.Violations.Find(ctx, plan.ViolationID)
	if err != nil {
		return nil, err
	}

	connStr, err := e.rt.Connections.ConnectionString(ctx, v.ConnectionID)
	if err != nil {
		return nil, err
	}

	report, err := e.rt.Executor.Rollback(ctx, connStr, plan.RollbackStatements)
	if err != nil {
		return nil, faults.Execution("rollback", err.Error())
	}

	if actor == "" {
		actor = audit.ActorSystem
	}

	if plan.Status == remediations.StatusExecuted {
		if _, err := e.rt.Plans.Transition(ctx, remediations.TransitionCommand{
			ID:     plan.ID,
			Status: remediations.StatusFailed,
			Actor:  actor,
			Report: &report,
		}); err != nil {
			return &report, err
		}
	} else {
		// No transition occurs for a plan already FAILED; the rollback
		// still ran against the target and belongs on the audit trail.
		entityID := plan.ID.String()
		entityType := "remediation_plan"
		if _, err := e.rt.Audit.Record(ctx, audit.Event{
			EventType:  audit.EventPlanRollback,
			EntityType: &entityType,
			EntityID:   &entityID,
			Actor:      actor,
			Detail: map[string]any{
				"succeeded": report.Succeeded,
				"failed":    report.Failed,
			},
		}); err != nil {
			return &report, err
		}
	}

	e.rt.Logger.Info("plan rolled back",
		"plan", plan.ID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return &report, nil
}
