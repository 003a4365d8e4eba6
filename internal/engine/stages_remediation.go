package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// runDraftPlan proposes a remediation plan for the violation named in the
// thread input. The plan stays in PROPOSED until the approval stage.
func runDraftPlan(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	violationID, err := inputUUID(t, "violation_id")
	if err != nil {
		return StageOutcome{}, err
	}

	v, err := rt.Violations.Find(ctx, violationID)
	if err != nil {
		return StageOutcome{}, err
	}
	if v.Status != violations.StatusOpen {
		return StageOutcome{}, faults.InvalidState("violation", v.ID.String(), string(v.Status), "remediate")
	}

	// Idempotent re-run: reuse a plan this thread already drafted.
	if existing, err := latestPlan(ctx, rt, t.ID); err != nil {
		return StageOutcome{}, err
	} else if existing != nil {
		return StageOutcome{Detail: map[string]any{"plan_id": existing.ID.String(), "reused": true}}, nil
	}

	statements, rollback := buildStatements(v)

	plan, err := rt.Plans.Create(ctx, remediations.CreateCommand{
		ThreadID:           t.ID,
		ViolationID:        v.ID,
		Statements:         statements,
		RollbackStatements: rollback,
		RiskLevel:          riskForSeverity(v.Severity),
		Actor:              audit.ActorSystem,
	})
	if err != nil {
		return StageOutcome{}, err
	}

	return StageOutcome{Detail: map[string]any{
		"plan_id":    plan.ID.String(),
		"statements": len(plan.Statements),
		"risk_level": string(plan.RiskLevel),
	}}, nil
}

// runApproval holds the proposed plan for a human decision. Rejection
// completes the thread without touching the monitored database.
func runApproval(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	plan, err := latestPlan(ctx, rt, t.ID)
	if err != nil {
		return StageOutcome{}, err
	}
	if plan == nil {
		return StageOutcome{}, faults.Reference("remediation plan", t.ID.String(), "no plan drafted for thread")
	}

	if t.HumanDecision == nil {
		if plan.Status != remediations.StatusProposed {
			// Already decided on a prior run; fall through to execute.
			return StageOutcome{Detail: map[string]any{"plan_id": plan.ID.String(), "status": string(plan.Status)}}, nil
		}
		return StageOutcome{Interrupt: buildPlanReview(plan)}, nil
	}

	actor := t.Actor
	if actor == "" {
		actor = audit.ActorSystem
	}

	switch decision := *t.HumanDecision; decision {
	case "approve":
		if plan.Status == remediations.StatusProposed {
			if _, err := rt.Plans.Transition(ctx, remediations.TransitionCommand{
				ID:     plan.ID,
				Status: remediations.StatusApproved,
				Actor:  actor,
			}); err != nil {
				return StageOutcome{}, err
			}
		}
		return StageOutcome{Detail: map[string]any{"plan_id": plan.ID.String(), "decision": decision}}, nil
	case "reject":
		if plan.Status == remediations.StatusProposed {
			if _, err := rt.Plans.Transition(ctx, remediations.TransitionCommand{
				ID:     plan.ID,
				Status: remediations.StatusRejected,
				Actor:  actor,
			}); err != nil {
				return StageOutcome{}, err
			}
		}
		response := fmt.Sprintf("remediation plan %s rejected; no statements were executed", plan.ID)
		return StageOutcome{
			Complete:      true,
			ClearDecision: true,
			FinalResponse: &response,
			Detail:        map[string]any{"plan_id": plan.ID.String(), "decision": decision},
		}, nil
	default:
		return StageOutcome{}, faults.Validation("decision", fmt.Sprintf("%q not allowed for remediation", decision))
	}
}

// runExecute runs the approved plan against the violating connection and
// verifies the outcome. A failed execution fails the whole thread.
func runExecute(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	plan, err := latestPlan(ctx, rt, t.ID)
	if err != nil {
		return StageOutcome{}, err
	}
	if plan == nil {
		return StageOutcome{}, faults.Reference("remediation plan", t.ID.String(), "no plan drafted for thread")
	}
	if plan.Status != remediations.StatusApproved {
		return StageOutcome{}, faults.InvalidState("remediation plan", plan.ID.String(), string(plan.Status), "execute")
	}

	v, err := rt.Violations.Find(ctx, plan.ViolationID)
	if err != nil {
		return StageOutcome{}, err
	}

	connStr, err := rt.Connections.ConnectionString(ctx, v.ConnectionID)
	if err != nil {
		return StageOutcome{}, err
	}

	report, err := rt.Executor.Execute(ctx, connStr, plan.Statements)
	if err != nil {
		_, terr := rt.Plans.Transition(ctx, remediations.TransitionCommand{
			ID:     plan.ID,
			Status: remediations.StatusFailed,
			Actor:  audit.ActorSystem,
			Report: &report,
		})
		if terr != nil {
			rt.Logger.Error("mark plan failed", "plan", plan.ID, "error", terr)
		}
		return StageOutcome{}, faults.Execution("remediation plan", err.Error())
	}

	if report.Failed > 0 {
		// Rollback is a deliberate human action, never applied here.
		if _, terr := rt.Plans.Transition(ctx, remediations.TransitionCommand{
			ID:     plan.ID,
			Status: remediations.StatusFailed,
			Actor:  audit.ActorSystem,
			Report: &report,
		}); terr != nil {
			rt.Logger.Error("mark plan failed", "plan", plan.ID, "error", terr)
		}
		return StageOutcome{}, faults.Execution(
			"remediation plan",
			fmt.Sprintf("%d of %d statements failed", report.Failed, len(plan.Statements)),
		)
	}

	if _, err := rt.Plans.Transition(ctx, remediations.TransitionCommand{
		ID:     plan.ID,
		Status: remediations.StatusExecuted,
		Actor:  audit.ActorSystem,
		Report: &report,
	}); err != nil {
		return StageOutcome{}, err
	}

	if _, err := rt.Plans.Transition(ctx, remediations.TransitionCommand{
		ID:     plan.ID,
		Status: remediations.StatusVerified,
		Actor:  audit.ActorSystem,
	}); err != nil {
		return StageOutcome{}, err
	}

	if _, err := rt.Violations.Resolve(ctx, violations.ResolveCommand{
		ID:         v.ID,
		Status:     violations.StatusRemediated,
		ResolvedBy: audit.ActorSystem,
		Actor:      audit.ActorSystem,
	}); err != nil {
		return StageOutcome{}, err
	}

	response := fmt.Sprintf("remediation plan %s executed and verified; violation %s remediated", plan.ID, v.ID)
	return StageOutcome{
		Complete:      true,
		ClearDecision: true,
		FinalResponse: &response,
		Detail: map[string]any{
			"plan_id":    plan.ID.String(),
			"violation":  v.ID.String(),
			"statements": report.Succeeded,
		},
	}, nil
}

func latestPlan(ctx context.Context, rt *Runtime, threadID uuid.UUID) (*remediations.Plan, error) {
	tid := threadID.String()
	result, err := rt.Plans.List(ctx, pagination.PageRequest{Page: 1, PageSize: 1}, remediations.Filters{
		ThreadID: &tid,
	})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, nil
	}
	return &result.Data[0], nil
}

func buildPlanReview(plan *remediations.Plan) *threads.ReviewRequest {
	return &threads.ReviewRequest{
		ReviewType:  "remediation_approval",
		Title:       fmt.Sprintf("Approve remediation plan (%s risk)", plan.RiskLevel),
		Description: fmt.Sprintf("Plan %s will execute %d statement(s) against the monitored database.", plan.ID, len(plan.Statements)),
		Data: map[string]any{
			"plan_id":    plan.ID.String(),
			"violation":  plan.ViolationID.String(),
			"statements": plan.Statements,
			"risk_level": string(plan.RiskLevel),
		},
		Options: decisionOptions(threads.WorkflowRemediation),
	}
}

// buildStatements derives remediation SQL from the violation. A stored
// template wins; otherwise a masking update is generated from the
// violating table and column.
func buildStatements(v *violations.Violation) (statements, rollback []string) {
	if v.RemediationTemplate != nil && strings.TrimSpace(*v.RemediationTemplate) != "" {
		for _, stmt := range strings.Split(*v.RemediationTemplate, ";") {
			if s := strings.TrimSpace(stmt); s != "" {
				statements = append(statements, s)
			}
		}
		return statements, nil
	}

	column := "payload"
	if v.ColumnName != nil {
		column = *v.ColumnName
	}

	statements = []string{fmt.Sprintf(
		"UPDATE %s SET %s = NULL WHERE %s",
		v.TableName, column, v.ConditionMatched,
	)}
	return statements, nil
}

func riskForSeverity(s violations.Severity) remediations.RiskLevel {
	switch s {
	case violations.SeverityCritical:
		return remediations.RiskCritical
	case violations.SeverityHigh:
		return remediations.RiskHigh
	case violations.SeverityMedium:
		return remediations.RiskMedium
	default:
		return remediations.RiskLow
	}
}
