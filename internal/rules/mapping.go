package rules

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "rules", "r").
	Project("rule_id", "RuleID").
	Project("rule_text", "RuleText").
	Project("source_doc", "SourceDoc").
	Project("article_ref", "ArticleRef").
	Project("version", "Version").
	Project("status", "Status").
	Project("superseded_by", "SupersededBy").
	Project("effective_date", "EffectiveDate").
	Project("obligation_type", "ObligationType").
	Project("data_subject_scope", "DataSubjectScope").
	Project("violation_conditions", "ViolationConditions").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for rule queries.
// Nil fields are ignored.
type Filters struct {
	Status         *string `json:"status,omitempty"`
	SourceDoc      *string `json:"source_doc,omitempty"`
	ObligationType *string `json:"obligation_type,omitempty"`
	ArticleRef     *string `json:"article_ref,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("SourceDoc", f.SourceDoc).
		WhereEquals("ObligationType", f.ObligationType).
		WhereContains("ArticleRef", f.ArticleRef)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("status"); v != "" {
		f.Status = &v
	}
	if v := values.Get("source_doc"); v != "" {
		f.SourceDoc = &v
	}
	if v := values.Get("obligation_type"); v != "" {
		f.ObligationType = &v
	}
	if v := values.Get("article_ref"); v != "" {
		f.ArticleRef = &v
	}

	return f
}

func scanRule(s repository.Scanner) (Rule, error) {
	var (
		r          Rule
		scope      []byte
		conditions []byte
	)

	err := s.Scan(
		&r.RuleID,
		&r.RuleText,
		&r.SourceDoc,
		&r.ArticleRef,
		&r.Version,
		&r.Status,
		&r.SupersededBy,
		&r.EffectiveDate,
		&r.ObligationType,
		&scope,
		&conditions,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	if len(scope) > 0 {
		if err := json.Unmarshal(scope, &r.DataSubjectScope); err != nil {
			return r, err
		}
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.ViolationConditions); err != nil {
			return r, err
		}
	}

	return r, nil
}
