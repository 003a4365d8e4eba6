package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/findings"
	"github.com/sentinel-compliance/sentinel/internal/ingestions"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

func mustEngine(t *testing.T, f *fixture, opts Options) *Engine {
	t.Helper()

	e, err := f.engine(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func startThread(t *testing.T, e *Engine, cmd threads.CreateCommand) *threads.Thread {
	t.Helper()

	th, err := e.CreateThread(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	return th
}

func ingestionDrafts(flagged int) []collaborators.RuleDraft {
	drafts := []collaborators.RuleDraft{
		{
			RuleID:         "GDPR-ART17-001",
			RuleText:       "Personal data must be erased without undue delay.",
			ObligationType: "REQUIREMENT",
			ViolationConditions: []collaborators.ConditionDraft{
				{Expression: "retention_days > 30", Severity: "HIGH"},
			},
		},
		{
			RuleID:         "GDPR-ART17-002",
			RuleText:       "Processing of special categories is prohibited.",
			ObligationType: "PROHIBITION",
			ViolationConditions: []collaborators.ConditionDraft{
				{Expression: "category = 'health'", Severity: "CRITICAL"},
			},
		},
		{
			RuleID:         "GDPR-ART17-003",
			RuleText:       "Data subjects may request access to their data.",
			ObligationType: "PERMISSION",
			ViolationConditions: []collaborators.ConditionDraft{
				{Expression: "access_denied = true", Severity: "MEDIUM"},
			},
		},
	}
	for i := 0; i < flagged && i < len(drafts); i++ {
		drafts[i].NeedsReview = true
		drafts[i].ReviewReason = "ambiguous obligation"
	}
	return drafts
}

func seedIngestion(f *fixture, flagged int) *ingestions.Job {
	job := f.jobs.add("job-2024-001", "gdpr.pdf", "documents/gdpr.pdf")
	f.blobs.blobs[job.StorageKey] = []byte("%PDF-1.7 regulation body")
	f.pipeline.spans = []collaborators.CandidateSpan{
		{SpanID: "s1", Text: "Article 17", Page: 12},
		{SpanID: "s2", Text: "Article 9", Page: 4},
	}
	f.pipeline.drafts = ingestionDrafts(flagged)
	return job
}

func TestIngestionWithoutFlaggedDraftsCompletes(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 0)
	e := mustEngine(t, f, Options{})

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	got, err := e.Advance(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}

	stored, _ := f.jobs.FindByJobID(context.Background(), job.JobID)
	if stored.Status != ingestions.StatusCompleted {
		t.Errorf("job status = %s, want %s", stored.Status, ingestions.StatusCompleted)
	}
	if stored.RulesApproved != 3 || stored.RulesRejected != 0 {
		t.Errorf("counts = %d approved / %d rejected, want 3 / 0", stored.RulesApproved, stored.RulesRejected)
	}

	active, _ := f.rules.Active(context.Background())
	if len(active) != 3 {
		t.Errorf("active rules = %d, want 3", len(active))
	}
}

func TestIngestionApproveActivatesFlaggedDrafts(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 2)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}
	if got.PendingReview == nil || got.PendingReview.ReviewType != "rule_approval" {
		t.Fatalf("pending review = %+v, want rule_approval", got.PendingReview)
	}

	stored, _ := f.jobs.FindByJobID(ctx, job.JobID)
	if stored.Status != ingestions.StatusAwaitingReview {
		t.Fatalf("job status = %s, want %s", stored.Status, ingestions.StatusAwaitingReview)
	}

	got, err = e.Resume(ctx, th.ID, "approve", nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status after resume = %s, want %s", got.Status, threads.StatusCompleted)
	}
	if got.PendingReview != nil {
		t.Error("pending review survived completion")
	}
	if got.HumanDecision != nil {
		t.Error("human decision survived completion")
	}

	stored, _ = f.jobs.FindByJobID(ctx, job.JobID)
	if stored.RulesApproved != 3 || stored.RulesRejected != 0 {
		t.Errorf("counts = %d approved / %d rejected, want 3 / 0", stored.RulesApproved, stored.RulesRejected)
	}

	active, _ := f.rules.Active(ctx)
	if len(active) != 3 {
		t.Errorf("active rules = %d, want 3", len(active))
	}
}

func TestIngestionRejectDeletesFlaggedDrafts(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 2)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	got, err := e.Resume(ctx, th.ID, "reject", nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}

	stored, _ := f.jobs.FindByJobID(ctx, job.JobID)
	if stored.RulesApproved != 1 || stored.RulesRejected != 2 {
		t.Errorf("counts = %d approved / %d rejected, want 1 / 2", stored.RulesApproved, stored.RulesRejected)
	}

	active, _ := f.rules.Active(ctx)
	if len(active) != 1 {
		t.Errorf("active rules = %d, want 1", len(active))
	}
}

func TestIngestionResumesOverPartialJobProgress(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 0)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	// A crash after the job advanced but before the thread transitioned
	// leaves the job mid-lifecycle with the thread still at ingest.
	for _, s := range []ingestions.Status{ingestions.StatusExtracting, ingestions.StatusDecomposing} {
		if _, err := f.jobs.Transition(ctx, ingestions.TransitionCommand{
			ID:     job.ID,
			Status: s,
			Actor:  "system",
		}); err != nil {
			t.Fatalf("seed job transition error = %v", err)
		}
	}

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s (error detail %v)", got.Status, threads.StatusCompleted, got.ErrorDetail)
	}

	stored, _ := f.jobs.Find(ctx, job.ID)
	if stored.Status != ingestions.StatusCompleted {
		t.Errorf("job status = %s, want %s", stored.Status, ingestions.StatusCompleted)
	}
}

func TestIngestionCompletedJobCompletesThread(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 0)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	for _, s := range []ingestions.Status{ingestions.StatusExtracting, ingestions.StatusDecomposing, ingestions.StatusCompleted} {
		if _, err := f.jobs.Transition(ctx, ingestions.TransitionCommand{
			ID:     job.ID,
			Status: s,
			Actor:  "system",
		}); err != nil {
			t.Fatalf("seed job transition error = %v", err)
		}
	}

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Errorf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}
}

func TestAdvanceOnInterruptedThreadIsIdempotent(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 1)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})

	first, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	second, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("second Advance() error = %v", err)
	}
	if second.Status != threads.StatusInterrupted {
		t.Errorf("status = %s, want %s", second.Status, threads.StatusInterrupted)
	}
	if second.Version != first.Version {
		t.Errorf("version changed %d -> %d on idempotent advance", first.Version, second.Version)
	}
}

func TestResumeRejectsNonInterruptedThread(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 0)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err := e.Resume(ctx, th.ID, "approve", nil)
	if !faults.IsInvalidState(err) {
		t.Fatalf("Resume() error = %v, want invalid-state", err)
	}

	got, _ := e.GetThread(ctx, th.ID)
	if got.Status != threads.StatusCompleted {
		t.Errorf("status mutated to %s by rejected resume", got.Status)
	}
}

func TestResumeRejectsUnknownDecision(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 1)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err := e.Resume(ctx, th.ID, "escalate", nil)
	if !faults.IsValidation(err) {
		t.Fatalf("Resume() error = %v, want validation", err)
	}

	got, _ := e.GetThread(ctx, th.ID)
	if got.Status != threads.StatusInterrupted {
		t.Errorf("status = %s, want still %s", got.Status, threads.StatusInterrupted)
	}
	if got.PendingReview == nil {
		t.Error("pending review cleared by rejected decision")
	}
}

func TestCancelClearsReviewAndFailsPlans(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("prod", "postgres://scan", collaborators.SchemaMap{
		"customers": {"email": "contact"},
	})
	vid := f.violations.add(violations.Violation{
		ConnectionID:     connID,
		RuleID:           "GDPR-ART17-001",
		TableName:        "customers",
		ConditionMatched: "retention_days > 30",
		Severity:         violations.SeverityHigh,
	})
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}

	got, err = e.Cancel(ctx, th.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if got.Status != threads.StatusCancelled {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCancelled)
	}
	if got.PendingReview != nil {
		t.Error("pending review survived cancellation")
	}

	plans, _ := f.plans.List(ctx, listPage(1), remediations.Filters{})
	if len(plans.Data) != 1 || plans.Data[0].Status != remediations.StatusFailed {
		t.Errorf("plans after cancel = %+v, want one FAILED", plans.Data)
	}

	// Cancelling again is a no-op.
	again, err := e.Cancel(ctx, th.ID)
	if err != nil {
		t.Fatalf("repeat Cancel() error = %v", err)
	}
	if again.Status != threads.StatusCancelled {
		t.Errorf("repeat cancel status = %s", again.Status)
	}
}

func TestCancelRejectsCompletedThread(t *testing.T) {
	f := newFixture()
	job := seedIngestion(f, 0)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowIngestion,
		Input:        map[string]any{"job_id": job.JobID},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	_, err := e.Cancel(ctx, th.ID)
	if !errors.Is(err, ErrThreadTerminal) {
		t.Fatalf("Cancel() error = %v, want ErrThreadTerminal", err)
	}
}

func seedRemediation(f *fixture) uuid.UUID {
	connID := f.connections.add("prod", "postgres://target", collaborators.SchemaMap{
		"customers": {"ssn": "government_id"},
	})
	return f.violations.add(violations.Violation{
		ConnectionID:     connID,
		RuleID:           "GDPR-ART9-001",
		TableName:        "customers",
		ColumnName:       ptr("ssn"),
		ConditionMatched: "category = 'health'",
		Severity:         violations.SeverityCritical,
	})
}

func ptr[T any](v T) *T { return &v }

func TestRemediationApproveExecutesAndVerifies(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
		Actor:        "dpo@example.com",
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}
	if got.PendingReview.ReviewType != "remediation_approval" {
		t.Fatalf("review type = %s", got.PendingReview.ReviewType)
	}

	got, err = e.Resume(ctx, th.ID, "approve", nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}

	plans, _ := f.plans.List(ctx, listPage(1), remediations.Filters{})
	if len(plans.Data) != 1 {
		t.Fatalf("plans = %d, want 1", len(plans.Data))
	}
	plan := plans.Data[0]
	if plan.Status != remediations.StatusVerified {
		t.Errorf("plan status = %s, want %s", plan.Status, remediations.StatusVerified)
	}
	if plan.ExecutionReport == nil || plan.ExecutionReport.Failed != 0 {
		t.Errorf("execution report = %+v", plan.ExecutionReport)
	}

	v, _ := f.violations.Find(ctx, vid)
	if v.Status != violations.StatusRemediated {
		t.Errorf("violation status = %s, want %s", v.Status, violations.StatusRemediated)
	}
	if len(f.executor.executed) != 1 {
		t.Errorf("executor invoked %d times, want 1", len(f.executor.executed))
	}
}

func TestRemediationRejectNeverExecutes(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	got, err := e.Resume(ctx, th.ID, "reject", ptr("risk too high"))
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}

	if len(f.executor.executed) != 0 {
		t.Errorf("executor invoked on rejected plan")
	}

	plans, _ := f.plans.List(ctx, listPage(1), remediations.Filters{})
	if plans.Data[0].Status != remediations.StatusRejected {
		t.Errorf("plan status = %s, want %s", plans.Data[0].Status, remediations.StatusRejected)
	}

	v, _ := f.violations.Find(ctx, vid)
	if v.Status != violations.StatusOpen {
		t.Errorf("violation status = %s, want still %s", v.Status, violations.StatusOpen)
	}
}

func TestRemediationExecutionFailureFailsThread(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	f.executor.report = collaborators.ExecutionReport{
		Statements: []collaborators.StatementResult{
			{Statement: "UPDATE customers SET ssn = NULL", OK: false, Error: "permission denied"},
		},
		Failed: 1,
	}
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	got, err := e.Resume(ctx, th.ID, "approve", nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusFailed {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusFailed)
	}
	if got.ErrorDetail == nil {
		t.Error("failed thread carries no error detail")
	}

	plans, _ := f.plans.List(ctx, listPage(1), remediations.Filters{})
	if plans.Data[0].Status != remediations.StatusFailed {
		t.Errorf("plan status = %s, want %s", plans.Data[0].Status, remediations.StatusFailed)
	}
	if len(f.executor.rolledBack) != 0 {
		t.Error("rollback ran without an explicit request")
	}

	v, _ := f.violations.Find(ctx, vid)
	if v.Status != violations.StatusOpen {
		t.Errorf("violation status = %s, want still %s", v.Status, violations.StatusOpen)
	}
}

func TestRemediationRejectsResolvedViolation(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	if _, err := f.violations.Resolve(context.Background(), violations.ResolveCommand{
		ID:         vid,
		Status:     violations.StatusRemediated,
		ResolvedBy: "dpo@example.com",
	}); err != nil {
		t.Fatalf("seed resolve error = %v", err)
	}
	e := mustEngine(t, f, Options{})

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
	})

	got, err := e.Advance(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, threads.StatusFailed)
	}
}

func TestConversationalConfirmationUsesFeedback(t *testing.T) {
	f := newFixture()
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowConversational,
		UserMessage:  ptr("Which tables hold health data?"),
		Input:        map[string]any{"require_confirmation": true},
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}
	if got.PendingReview.ReviewType != "response_confirmation" {
		t.Fatalf("review type = %s", got.PendingReview.ReviewType)
	}

	edited := "The customers.category column is classified as health data."
	got, err = e.Resume(ctx, th.ID, "approve", &edited)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}
	if got.FinalResponse == nil || *got.FinalResponse != edited {
		t.Errorf("final response = %v, want reviewer's edit", got.FinalResponse)
	}
}

func TestConversationalWithoutConfirmationCompletes(t *testing.T) {
	f := newFixture()
	e := mustEngine(t, f, Options{})

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowConversational,
		UserMessage:  ptr("Summarize open violations."),
	})

	got, err := e.Advance(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}
	if got.FinalResponse == nil {
		t.Error("completed conversational thread has no final response")
	}
}

func TestPolicyReviewMissingSchemaMapShortCircuits(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("unmapped", "postgres://target", nil)
	f.scanner.classifyErr = errors.New("connection refused")
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowPolicyReview,
		Input:        map[string]any{"connection_id": connID.String()},
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}

	list, _ := f.findings.List(ctx, listPage(50), findingFilters(th.ID))
	if len(list.Data) != 1 {
		t.Fatalf("findings = %d, want 1", len(list.Data))
	}
	if list.Data[0].FindingType != findings.MissingSchemaMap {
		t.Errorf("finding type = %s, want %s", list.Data[0].FindingType, findings.MissingSchemaMap)
	}
}

func TestPolicyReviewDismissCompletesThread(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("prod", "postgres://target", collaborators.SchemaMap{
		"customers": {"email": "contact"},
	})
	seedActiveRule(t, f, "GDPR-ART17-001", []string{"health"})
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowPolicyReview,
		Input:        map[string]any{"connection_id": connID.String()},
	})

	got, err := e.Advance(ctx, th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusInterrupted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusInterrupted)
	}
	if got.PendingReview.ReviewType != "policy_gap_confirmation" {
		t.Fatalf("review type = %s", got.PendingReview.ReviewType)
	}

	got, err = e.Resume(ctx, th.ID, "dismiss", nil)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}

	list, _ := f.findings.List(ctx, listPage(50), findingFilters(th.ID))
	for _, fd := range list.Data {
		if !fd.Dismissed {
			t.Errorf("finding %s left open after dismissal", fd.ID)
		}
	}

	if _, scanned := f.connections.scanned[connID]; !scanned {
		t.Error("connection scan timestamp not touched")
	}
}

func TestPolicyReviewWithNoGapsCompletesInOneAdvance(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("prod", "postgres://target", collaborators.SchemaMap{
		"patients": {"diagnosis": "health"},
	})
	seedActiveRule(t, f, "GDPR-ART9-001", []string{"health"})
	e := mustEngine(t, f, Options{})

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowPolicyReview,
		Input:        map[string]any{"connection_id": connID.String()},
	})

	got, err := e.Advance(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusCompleted {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusCompleted)
	}
}

func TestStageTimeoutFailsThread(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("slow", "postgres://target", collaborators.SchemaMap{
		"customers": {"email": "contact"},
	})
	f.scanner.block = make(chan struct{})
	defer close(f.scanner.block)
	e := mustEngine(t, f, Options{StageTimeout: 20 * time.Millisecond})

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowPolicyReview,
		Input:        map[string]any{"connection_id": connID.String()},
	})

	got, err := e.Advance(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if got.Status != threads.StatusFailed {
		t.Fatalf("status = %s, want %s", got.Status, threads.StatusFailed)
	}
	if got.ErrorDetail == nil {
		t.Error("timed-out thread carries no error detail")
	}
}

func TestConcurrentAdvanceFailsFast(t *testing.T) {
	f := newFixture()
	connID := f.connections.add("slow", "postgres://target", nil)
	f.scanner.block = make(chan struct{})
	e := mustEngine(t, f, Options{StageTimeout: time.Second})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowPolicyReview,
		Input:        map[string]any{"connection_id": connID.String()},
	})

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		e.Advance(ctx, th.ID)
		close(done)
	}()

	<-started
	var busyErr error
	for i := 0; i < 50; i++ {
		if _, busyErr = e.Advance(ctx, th.ID); errors.Is(busyErr, ErrThreadBusy) {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !errors.Is(busyErr, ErrThreadBusy) {
		t.Errorf("concurrent Advance() error = %v, want ErrThreadBusy", busyErr)
	}

	close(f.scanner.block)
	<-done
}

func TestRollbackPlanRunsRollbackStatements(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	plan, err := f.plans.Create(ctx, remediations.CreateCommand{
		ThreadID:           uuid.New(),
		ViolationID:        vid,
		Statements:         []string{"UPDATE customers SET ssn = NULL WHERE category = 'health'"},
		RollbackStatements: []string{"UPDATE customers SET ssn = b.ssn FROM customers_backup b WHERE customers.id = b.id"},
		RiskLevel:          remediations.RiskCritical,
	})
	if err != nil {
		t.Fatalf("seed plan error = %v", err)
	}
	for _, status := range []remediations.Status{remediations.StatusApproved, remediations.StatusExecuted} {
		if _, err := f.plans.Transition(ctx, remediations.TransitionCommand{ID: plan.ID, Status: status}); err != nil {
			t.Fatalf("seed transition to %s error = %v", status, err)
		}
	}

	report, err := e.RollbackPlan(ctx, plan.ID, "dpo@example.com")
	if err != nil {
		t.Fatalf("RollbackPlan() error = %v", err)
	}
	if report.Succeeded != 1 {
		t.Errorf("rollback succeeded = %d, want 1", report.Succeeded)
	}
	if len(f.executor.rolledBack) != 1 {
		t.Errorf("executor rollback invoked %d times, want 1", len(f.executor.rolledBack))
	}

	stored, _ := f.plans.Find(ctx, plan.ID)
	if stored.Status != remediations.StatusFailed {
		t.Errorf("plan status after rollback = %s, want %s", stored.Status, remediations.StatusFailed)
	}
}

func TestRollbackPlanOnFailedPlanRecordsAuditEvent(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	plan, err := f.plans.Create(ctx, remediations.CreateCommand{
		ThreadID:           uuid.New(),
		ViolationID:        vid,
		Statements:         []string{"UPDATE customers SET ssn = NULL WHERE category = 'health'"},
		RollbackStatements: []string{"UPDATE customers SET ssn = b.ssn FROM customers_backup b WHERE customers.id = b.id"},
		RiskLevel:          remediations.RiskCritical,
	})
	if err != nil {
		t.Fatalf("seed plan error = %v", err)
	}
	for _, status := range []remediations.Status{remediations.StatusApproved, remediations.StatusFailed} {
		if _, err := f.plans.Transition(ctx, remediations.TransitionCommand{ID: plan.ID, Status: status}); err != nil {
			t.Fatalf("seed transition to %s error = %v", status, err)
		}
	}

	report, err := e.RollbackPlan(ctx, plan.ID, "dpo@example.com")
	if err != nil {
		t.Fatalf("RollbackPlan() error = %v", err)
	}
	if report.Succeeded != 1 {
		t.Errorf("rollback succeeded = %d, want 1", report.Succeeded)
	}

	if len(f.audit.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(f.audit.events))
	}
	ev := f.audit.events[0]
	if ev.EventType != audit.EventPlanRollback {
		t.Errorf("event type = %s, want %s", ev.EventType, audit.EventPlanRollback)
	}
	if ev.Actor != "dpo@example.com" {
		t.Errorf("event actor = %s, want dpo@example.com", ev.Actor)
	}
	if ev.EntityID == nil || *ev.EntityID != plan.ID.String() {
		t.Errorf("event entity id = %v, want %s", ev.EntityID, plan.ID)
	}
}

func TestRollbackPlanRejectsProposedPlan(t *testing.T) {
	f := newFixture()
	vid := seedRemediation(f)
	e := mustEngine(t, f, Options{})
	ctx := context.Background()

	th := startThread(t, e, threads.CreateCommand{
		WorkflowType: threads.WorkflowRemediation,
		Input:        map[string]any{"violation_id": vid.String()},
	})
	if _, err := e.Advance(ctx, th.ID); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}

	plans, _ := f.plans.List(ctx, listPage(1), remediations.Filters{})
	_, err := e.RollbackPlan(ctx, plans.Data[0].ID, "dpo@example.com")
	if !faults.IsInvalidState(err) {
		t.Fatalf("RollbackPlan() error = %v, want invalid-state", err)
	}
}

func TestCreateThreadRejectsUnknownWorkflow(t *testing.T) {
	f := newFixture()
	e := mustEngine(t, f, Options{})

	_, err := e.CreateThread(context.Background(), threads.CreateCommand{
		WorkflowType: "auditing",
	})
	if !errors.Is(err, ErrUnknownWorkflow) {
		t.Fatalf("CreateThread() error = %v, want ErrUnknownWorkflow", err)
	}
}

func seedActiveRule(t *testing.T, f *fixture, ruleID string, scope []string) {
	t.Helper()

	if _, err := f.rules.Create(context.Background(), rules.CreateCommand{
		RuleID:           ruleID,
		RuleText:         "Sensitive data must be governed.",
		SourceDoc:        "gdpr.pdf",
		Status:           rules.StatusActive,
		ObligationType:   rules.Requirement,
		DataSubjectScope: scope,
		ViolationConditions: []rules.Condition{
			{Expression: "category IN ('health')", Severity: "HIGH"},
		},
	}); err != nil {
		t.Fatalf("seed rule error = %v", err)
	}
}

func listPage(size int) pagination.PageRequest {
	return pagination.PageRequest{Page: 1, PageSize: size}
}

func findingFilters(threadID uuid.UUID) findings.Filters {
	id := threadID.String()
	return findings.Filters{ThreadID: &id}
}
