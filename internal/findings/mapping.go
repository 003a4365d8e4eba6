package findings

import (
	"net/url"
	"strconv"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "policy_review_findings", "f").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("connection_id", "ConnectionID").
	Project("rule_id", "RuleID").
	Project("finding_type", "FindingType").
	Project("description", "Description").
	Project("dismissed", "Dismissed").
	Project("dismissed_by", "DismissedBy").
	Project("dismissed_at", "DismissedAt").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for finding queries.
// Nil fields are ignored.
type Filters struct {
	ThreadID     *string `json:"thread_id,omitempty"`
	ConnectionID *string `json:"connection_id,omitempty"`
	RuleID       *string `json:"rule_id,omitempty"`
	FindingType  *string `json:"finding_type,omitempty"`
	Dismissed    *bool   `json:"dismissed,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ThreadID", f.ThreadID).
		WhereEquals("ConnectionID", f.ConnectionID).
		WhereEquals("RuleID", f.RuleID).
		WhereEquals("FindingType", f.FindingType).
		WhereEquals("Dismissed", f.Dismissed)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("thread_id"); v != "" {
		f.ThreadID = &v
	}
	if v := values.Get("connection_id"); v != "" {
		f.ConnectionID = &v
	}
	if v := values.Get("rule_id"); v != "" {
		f.RuleID = &v
	}
	if v := values.Get("finding_type"); v != "" {
		f.FindingType = &v
	}
	if v := values.Get("dismissed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Dismissed = &b
		}
	}

	return f
}

func scanFinding(s repository.Scanner) (Finding, error) {
	var f Finding

	err := s.Scan(
		&f.ID,
		&f.ThreadID,
		&f.ConnectionID,
		&f.RuleID,
		&f.FindingType,
		&f.Description,
		&f.Dismissed,
		&f.DismissedBy,
		&f.DismissedAt,
		&f.CreatedAt,
	)
	return f, err
}
