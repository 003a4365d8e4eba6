package threads

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "orchestrator_threads", "t").
	Project("id", "ID").
	Project("workflow_type", "WorkflowType").
	Project("status", "Status").
	Project("stage", "Stage").
	Project("input", "Input").
	Project("pending_review", "PendingReview").
	Project("human_decision", "HumanDecision").
	Project("human_feedback", "HumanFeedback").
	Project("user_message", "UserMessage").
	Project("final_response", "FinalResponse").
	Project("error_detail", "ErrorDetail").
	Project("actor", "Actor").
	Project("version", "Version").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("completed_at", "CompletedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for thread queries.
// Nil fields are ignored.
type Filters struct {
	WorkflowType *string `json:"workflow_type,omitempty"`
	Status       *string `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("WorkflowType", f.WorkflowType).
		WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("workflow_type"); v != "" {
		f.WorkflowType = &v
	}
	if v := values.Get("status"); v != "" {
		f.Status = &v
	}

	return f
}

func scanThread(s repository.Scanner) (Thread, error) {
	var (
		t      Thread
		input  []byte
		review []byte
	)

	err := s.Scan(
		&t.ID,
		&t.WorkflowType,
		&t.Status,
		&t.Stage,
		&input,
		&review,
		&t.HumanDecision,
		&t.HumanFeedback,
		&t.UserMessage,
		&t.FinalResponse,
		&t.ErrorDetail,
		&t.Actor,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return t, err
	}

	if len(input) > 0 {
		if err := json.Unmarshal(input, &t.Input); err != nil {
			return t, err
		}
	}
	if len(review) > 0 {
		if err := json.Unmarshal(review, &t.PendingReview); err != nil {
			return t, err
		}
	}

	return t, nil
}
