package violations

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "violations", "v").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("connection_id", "ConnectionID").
	Project("rule_id", "RuleID").
	Project("table_name", "TableName").
	Project("column_name", "ColumnName").
	Project("condition_matched", "ConditionMatched").
	Project("severity", "Severity").
	Project("status", "Status").
	Project("evidence", "Evidence").
	Project("remediation_template", "RemediationTemplate").
	Project("resolved_at", "ResolvedAt").
	Project("resolved_by", "ResolvedBy").
	Project("detected_at", "DetectedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "DetectedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for violation queries.
// Nil fields are ignored.
type Filters struct {
	ConnectionID *string `json:"connection_id,omitempty"`
	RuleID       *string `json:"rule_id,omitempty"`
	ThreadID     *string `json:"thread_id,omitempty"`
	Severity     *string `json:"severity,omitempty"`
	Status       *string `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ConnectionID", f.ConnectionID).
		WhereEquals("RuleID", f.RuleID).
		WhereEquals("ThreadID", f.ThreadID).
		WhereEquals("Severity", f.Severity).
		WhereEquals("Status", f.Status)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("connection_id"); v != "" {
		f.ConnectionID = &v
	}
	if v := values.Get("rule_id"); v != "" {
		f.RuleID = &v
	}
	if v := values.Get("thread_id"); v != "" {
		f.ThreadID = &v
	}
	if v := values.Get("severity"); v != "" {
		f.Severity = &v
	}
	if v := values.Get("status"); v != "" {
		f.Status = &v
	}

	return f
}

func scanViolation(s repository.Scanner) (Violation, error) {
	var (
		v        Violation
		evidence []byte
	)

	err := s.Scan(
		&v.ID,
		&v.ThreadID,
		&v.ConnectionID,
		&v.RuleID,
		&v.TableName,
		&v.ColumnName,
		&v.ConditionMatched,
		&v.Severity,
		&v.Status,
		&evidence,
		&v.RemediationTemplate,
		&v.ResolvedAt,
		&v.ResolvedBy,
		&v.DetectedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return v, err
	}

	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &v.Evidence); err != nil {
			return v, err
		}
	}

	return v, nil
}
