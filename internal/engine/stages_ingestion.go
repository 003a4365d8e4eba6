package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/ingestions"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// runIngest extracts the job's source document and decomposes it into
// rule drafts. Drafts flagged for review are persisted DRAFT and send
// the job to AWAITING_REVIEW; otherwise the job completes here.
func runIngest(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	job, err := ingestionJob(ctx, rt, t)
	if err != nil {
		return StageOutcome{}, err
	}

	if job.ThreadID == nil {
		if err := rt.Jobs.AttachThread(ctx, job.ID, t.ID); err != nil {
			return StageOutcome{}, err
		}
	}

	// A crash between a job transition and the thread checkpoint re-runs
	// this stage against a job that already moved forward. Jobs past the
	// pipeline pick up where they left off instead of replaying lifecycle
	// transitions the forward-only guard would reject.
	switch job.Status {
	case ingestions.StatusCompleted:
		return StageOutcome{Complete: true, Detail: map[string]any{"job_id": job.JobID}}, nil
	case ingestions.StatusAwaitingReview:
		return StageOutcome{Detail: map[string]any{"job_id": job.JobID}}, nil
	case ingestions.StatusFailed:
		return StageOutcome{}, faults.InvalidState("ingestion_job", job.ID.String(), string(job.Status), string(ingestions.StatusExtracting))
	}

	if err := advanceJob(ctx, rt, job, ingestions.StatusExtracting); err != nil {
		return StageOutcome{}, err
	}

	doc, err := rt.Blobs.Download(ctx, job.StorageKey)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("download source document: %w", err)
	}
	spans, err := rt.Pipeline.Extract(ctx, job.SourceDoc, doc)
	doc.Close()
	if err != nil {
		return StageOutcome{}, fmt.Errorf("extract candidate spans: %w", err)
	}

	spanCount := len(spans)
	if _, err := rt.Jobs.SetCounts(ctx, job.ID, ingestions.CountsUpdate{
		CandidateSpans: &spanCount,
	}); err != nil {
		return StageOutcome{}, err
	}

	if err := advanceJob(ctx, rt, job, ingestions.StatusDecomposing); err != nil {
		return StageOutcome{}, err
	}

	drafts, err := rt.Pipeline.Decompose(ctx, spans)
	if err != nil {
		return StageOutcome{}, fmt.Errorf("decompose rule drafts: %w", err)
	}

	needsReview := 0
	for _, draft := range drafts {
		status := rules.StatusActive
		if draft.NeedsReview {
			status = rules.StatusDraft
			needsReview++
		}
		if _, err := rt.Rules.Create(ctx, draftToCommand(draft, job.SourceDoc, status)); err != nil {
			return StageOutcome{}, fmt.Errorf("persist rule draft %s: %w", draft.RuleID, err)
		}
	}

	decomposed := len(drafts)
	if _, err := rt.Jobs.SetCounts(ctx, job.ID, ingestions.CountsUpdate{
		RulesDecomposed: &decomposed,
	}); err != nil {
		return StageOutcome{}, err
	}

	detail := map[string]any{
		"job_id":           job.JobID,
		"candidate_spans":  spanCount,
		"rules_decomposed": decomposed,
		"needs_review":     needsReview,
	}

	if needsReview == 0 {
		if _, err := rt.Jobs.SetCounts(ctx, job.ID, ingestions.CountsUpdate{
			RulesApproved: &decomposed,
		}); err != nil {
			return StageOutcome{}, err
		}
		if err := advanceJob(ctx, rt, job, ingestions.StatusCompleted); err != nil {
			return StageOutcome{}, err
		}
		return StageOutcome{Complete: true, Detail: detail}, nil
	}

	if err := advanceJob(ctx, rt, job, ingestions.StatusAwaitingReview); err != nil {
		return StageOutcome{}, err
	}
	return StageOutcome{Detail: detail}, nil
}

// advanceJob moves the job forward to the target status, skipping the
// transition when a prior run already carried it past that point.
func advanceJob(ctx context.Context, rt *Runtime, job *ingestions.Job, to ingestions.Status) error {
	if job.Status == to || !ingestions.CanTransition(job.Status, to) {
		return nil
	}
	updated, err := rt.Jobs.Transition(ctx, ingestions.TransitionCommand{
		ID:     job.ID,
		Status: to,
		Actor:  audit.ActorSystem,
	})
	if err != nil {
		return err
	}
	job.Status = updated.Status
	return nil
}

// runIngestionReview gates flagged drafts behind human approval. With
// no decision recorded it interrupts; after resume it applies the
// decision to every draft and completes the job.
func runIngestionReview(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	job, err := ingestionJob(ctx, rt, t)
	if err != nil {
		return StageOutcome{}, err
	}

	drafts, err := draftRules(ctx, rt, job.SourceDoc)
	if err != nil {
		return StageOutcome{}, err
	}

	if t.HumanDecision == nil {
		if len(drafts) == 0 {
			return completeIngestion(ctx, rt, job, job.RulesDecomposed, 0, "")
		}
		return StageOutcome{Interrupt: buildRuleReview(job, drafts)}, nil
	}

	decision := *t.HumanDecision
	approved, rejected := job.RulesDecomposed, 0

	switch decision {
	case "approve", "modify":
		for _, draft := range drafts {
			if _, err := rt.Rules.Activate(ctx, draft.RuleID, audit.ActorSystem); err != nil {
				return StageOutcome{}, err
			}
		}
	case "reject":
		for _, draft := range drafts {
			if err := rt.Rules.Delete(ctx, draft.RuleID, audit.ActorSystem); err != nil {
				return StageOutcome{}, err
			}
		}
		approved = job.RulesDecomposed - len(drafts)
		rejected = len(drafts)
	default:
		return StageOutcome{}, faults.Validation("decision", fmt.Sprintf("%q not allowed for ingestion review", decision))
	}

	return completeIngestion(ctx, rt, job, approved, rejected, decision)
}

func completeIngestion(
	ctx context.Context,
	rt *Runtime,
	job *ingestions.Job,
	approved, rejected int,
	decision string,
) (StageOutcome, error) {
	if _, err := rt.Jobs.SetCounts(ctx, job.ID, ingestions.CountsUpdate{
		RulesApproved: &approved,
		RulesRejected: &rejected,
	}); err != nil {
		return StageOutcome{}, err
	}

	if !ingestions.Terminal(job.Status) {
		if _, err := rt.Jobs.Transition(ctx, ingestions.TransitionCommand{
			ID:     job.ID,
			Status: ingestions.StatusCompleted,
			Actor:  audit.ActorSystem,
		}); err != nil {
			return StageOutcome{}, err
		}
	}

	detail := map[string]any{
		"job_id":         job.JobID,
		"rules_approved": approved,
		"rules_rejected": rejected,
	}
	if decision != "" {
		detail["decision"] = decision
	}
	return StageOutcome{Complete: true, ClearDecision: true, Detail: detail}, nil
}

func ingestionJob(ctx context.Context, rt *Runtime, t *threads.Thread) (*ingestions.Job, error) {
	jobID, _ := t.Input["job_id"].(string)
	if jobID == "" {
		return nil, faults.Validation("job_id", "required in thread input")
	}
	return rt.Jobs.FindByJobID(ctx, jobID)
}

func draftRules(ctx context.Context, rt *Runtime, sourceDoc string) ([]rules.Rule, error) {
	status := string(rules.StatusDraft)
	page := pagination.PageRequest{Page: 1, PageSize: 200}

	result, err := rt.Rules.List(ctx, page, rules.Filters{
		Status:    &status,
		SourceDoc: &sourceDoc,
	})
	if err != nil {
		return nil, fmt.Errorf("list draft rules: %w", err)
	}
	return result.Data, nil
}

func buildRuleReview(job *ingestions.Job, drafts []rules.Rule) *threads.ReviewRequest {
	ids := make([]string, len(drafts))
	for i, d := range drafts {
		ids[i] = d.RuleID
	}

	return &threads.ReviewRequest{
		ReviewType:  "rule_approval",
		Title:       fmt.Sprintf("Approve %d decomposed rule(s)", len(drafts)),
		Description: fmt.Sprintf("Ingestion of %s decomposed %d rule(s); %s require review.", job.SourceDoc, job.RulesDecomposed, strings.Join(ids, ", ")),
		Data: map[string]any{
			"job_id":   job.JobID,
			"rule_ids": ids,
		},
		Options: decisionOptions(threads.WorkflowIngestion),
	}
}

func draftToCommand(draft collaborators.RuleDraft, sourceDoc string, status rules.Status) rules.CreateCommand {
	conditions := make([]rules.Condition, len(draft.ViolationConditions))
	for i, c := range draft.ViolationConditions {
		conditions[i] = rules.Condition{
			Expression: c.Expression,
			Severity:   c.Severity,
		}
	}

	cmd := rules.CreateCommand{
		RuleID:              draft.RuleID,
		RuleText:            draft.RuleText,
		SourceDoc:           sourceDoc,
		Status:              status,
		ObligationType:      rules.ObligationType(draft.ObligationType),
		ViolationConditions: conditions,
		Actor:               audit.ActorSystem,
	}
	if draft.ArticleRef != "" {
		cmd.ArticleRef = &draft.ArticleRef
	}
	return cmd
}
