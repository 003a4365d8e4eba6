package engine

import (
	"testing"

	"github.com/sentinel-compliance/sentinel/internal/threads"
)

func TestValidateGraphs(t *testing.T) {
	if err := validateGraphs(); err != nil {
		t.Fatalf("validateGraphs() error = %v", err)
	}
}

func TestGraphInitialStages(t *testing.T) {
	tests := []struct {
		workflow threads.WorkflowType
		initial  string
	}{
		{threads.WorkflowIngestion, stageIngest},
		{threads.WorkflowPolicyReview, stageScan},
		{threads.WorkflowRemediation, stageDraftPlan},
		{threads.WorkflowConversational, stageRespond},
	}

	for _, tt := range tests {
		g, ok := graphs[tt.workflow]
		if !ok {
			t.Errorf("no graph for %s", tt.workflow)
			continue
		}
		if g.initial != tt.initial {
			t.Errorf("graph %s initial = %s, want %s", tt.workflow, g.initial, tt.initial)
		}
	}
}

func TestAllowedDecisions(t *testing.T) {
	tests := []struct {
		workflow threads.WorkflowType
		decision string
		want     bool
	}{
		{threads.WorkflowIngestion, "approve", true},
		{threads.WorkflowIngestion, "modify", true},
		{threads.WorkflowIngestion, "confirm_gap", false},
		{threads.WorkflowPolicyReview, "confirm_gap", true},
		{threads.WorkflowPolicyReview, "dismiss", true},
		{threads.WorkflowPolicyReview, "modify", false},
		{threads.WorkflowRemediation, "approve", true},
		{threads.WorkflowRemediation, "reject", true},
		{threads.WorkflowRemediation, "dismiss", false},
		{threads.WorkflowConversational, "approve", true},
		{threads.WorkflowConversational, "escalate", false},
	}

	for _, tt := range tests {
		_, got := allowedDecisions[tt.workflow][tt.decision]
		if got != tt.want {
			t.Errorf("allowedDecisions[%s][%s] = %v, want %v", tt.workflow, tt.decision, got, tt.want)
		}
	}
}

func TestDecisionOptionsMatchAllowed(t *testing.T) {
	for workflow, allowed := range allowedDecisions {
		options := decisionOptions(workflow)
		if len(options) != len(allowed) {
			t.Errorf("decisionOptions(%s) has %d entries, allowed set has %d", workflow, len(options), len(allowed))
			continue
		}
		for _, opt := range options {
			if _, ok := allowed[opt]; !ok {
				t.Errorf("decisionOptions(%s) includes %q, not in allowed set", workflow, opt)
			}
		}
	}
}
