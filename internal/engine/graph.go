package engine

import (
	"context"
	"fmt"

	"github.com/sentinel-compliance/sentinel/internal/threads"
)

// StageOutcome is what a stage handler reports back to the drive loop.
// Exactly one of Interrupt, Complete, or a next stage applies:
// Interrupt suspends the thread on the current stage, Complete finishes
// it, otherwise the thread moves to Next (or the graph's default).
type StageOutcome struct {
	Next          string
	Interrupt     *threads.ReviewRequest
	Complete      bool
	FinalResponse *string
	ClearDecision bool
	Detail        map[string]any
}

// StageHandler executes one stage of a workflow. Handlers that
// interrupt must be side-effect free up to the interrupt, since the
// same stage re-runs after resume with the human decision populated.
type StageHandler func(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error)

type stageSpec struct {
	handler StageHandler
	next    string
}

type graph struct {
	initial string
	stages  map[string]stageSpec
}

// Ingestion stage names.
const (
	stageIngest          = "ingest"
	stageIngestionReview = "review"
)

// Policy-review stage names.
const (
	stageScan    = "scan"
	stageConfirm = "confirm"
)

// Remediation stage names.
const (
	stageDraftPlan = "draft_plan"
	stageApproval  = "approval"
	stageExecute   = "execute"
)

// Conversational stage name.
const stageRespond = "respond"

// graphs fixes the stage sequence per workflow type. A stage with an
// empty next completes the thread unless its handler says otherwise.
var graphs = map[threads.WorkflowType]graph{
	threads.WorkflowIngestion: {
		initial: stageIngest,
		stages: map[string]stageSpec{
			stageIngest:          {handler: runIngest, next: stageIngestionReview},
			stageIngestionReview: {handler: runIngestionReview},
		},
	},
	threads.WorkflowPolicyReview: {
		initial: stageScan,
		stages: map[string]stageSpec{
			stageScan:    {handler: runScan, next: stageConfirm},
			stageConfirm: {handler: runConfirm},
		},
	},
	threads.WorkflowRemediation: {
		initial: stageDraftPlan,
		stages: map[string]stageSpec{
			stageDraftPlan: {handler: runDraftPlan, next: stageApproval},
			stageApproval:  {handler: runApproval, next: stageExecute},
			stageExecute:   {handler: runExecute},
		},
	},
	threads.WorkflowConversational: {
		initial: stageRespond,
		stages: map[string]stageSpec{
			stageRespond: {handler: runRespond},
		},
	},
}

// allowedDecisions is the valid resume decision set per workflow type.
var allowedDecisions = map[threads.WorkflowType]map[string]struct{}{
	threads.WorkflowIngestion:      {"approve": {}, "reject": {}, "modify": {}},
	threads.WorkflowPolicyReview:   {"confirm_gap": {}, "dismiss": {}},
	threads.WorkflowRemediation:    {"approve": {}, "reject": {}},
	threads.WorkflowConversational: {"approve": {}, "reject": {}},
}

func decisionOptions(wt threads.WorkflowType) []string {
	switch wt {
	case threads.WorkflowIngestion:
		return []string{"approve", "reject", "modify"}
	case threads.WorkflowPolicyReview:
		return []string{"confirm_gap", "dismiss"}
	default:
		return []string{"approve", "reject"}
	}
}

// validateGraphs checks every graph at construction: the initial stage
// exists, every next edge points at a defined stage, and every stage is
// reachable from the initial one.
func validateGraphs() error {
	for wt, g := range graphs {
		if _, ok := g.stages[g.initial]; !ok {
			return fmt.Errorf("workflow %s: initial stage %q undefined", wt, g.initial)
		}

		reachable := map[string]bool{g.initial: true}
		frontier := []string{g.initial}
		for len(frontier) > 0 {
			name := frontier[0]
			frontier = frontier[1:]

			spec := g.stages[name]
			if spec.next == "" {
				continue
			}
			if _, ok := g.stages[spec.next]; !ok {
				return fmt.Errorf("workflow %s: stage %q points at undefined stage %q", wt, name, spec.next)
			}
			if !reachable[spec.next] {
				reachable[spec.next] = true
				frontier = append(frontier, spec.next)
			}
		}

		for name := range g.stages {
			if !reachable[name] {
				return fmt.Errorf("workflow %s: stage %q unreachable", wt, name)
			}
		}
	}
	return nil
}
