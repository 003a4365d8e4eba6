package remediations

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "remediation_plans", "p").
	Project("id", "ID").
	Project("thread_id", "ThreadID").
	Project("violation_id", "ViolationID").
	Project("statements", "Statements").
	Project("rollback_statements", "RollbackStatements").
	Project("risk_level", "RiskLevel").
	Project("status", "Status").
	Project("execution_report", "ExecutionReport").
	Project("approved_by", "ApprovedBy").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for plan queries.
// Nil fields are ignored.
type Filters struct {
	ThreadID    *string `json:"thread_id,omitempty"`
	ViolationID *string `json:"violation_id,omitempty"`
	Status      *string `json:"status,omitempty"`
	RiskLevel   *string `json:"risk_level,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ThreadID", f.ThreadID).
		WhereEquals("ViolationID", f.ViolationID).
		WhereEquals("Status", f.Status).
		WhereEquals("RiskLevel", f.RiskLevel)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("thread_id"); v != "" {
		f.ThreadID = &v
	}
	if v := values.Get("violation_id"); v != "" {
		f.ViolationID = &v
	}
	if v := values.Get("status"); v != "" {
		f.Status = &v
	}
	if v := values.Get("risk_level"); v != "" {
		f.RiskLevel = &v
	}

	return f
}

func scanPlan(s repository.Scanner) (Plan, error) {
	var (
		p          Plan
		statements []byte
		rollback   []byte
		report     []byte
	)

	err := s.Scan(
		&p.ID,
		&p.ThreadID,
		&p.ViolationID,
		&statements,
		&rollback,
		&p.RiskLevel,
		&p.Status,
		&report,
		&p.ApprovedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}

	if len(statements) > 0 {
		if err := json.Unmarshal(statements, &p.Statements); err != nil {
			return p, err
		}
	}
	if len(rollback) > 0 {
		if err := json.Unmarshal(rollback, &p.RollbackStatements); err != nil {
			return p, err
		}
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &p.ExecutionReport); err != nil {
			return p, err
		}
	}

	return p, nil
}
