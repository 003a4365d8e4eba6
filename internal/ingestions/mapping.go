package ingestions

import (
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "pdf_ingestion_jobs", "j").
	Project("id", "ID").
	Project("job_id", "JobID").
	Project("thread_id", "ThreadID").
	Project("source_doc", "SourceDoc").
	Project("content_type", "ContentType").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("storage_key", "StorageKey").
	Project("status", "Status").
	Project("candidate_spans", "CandidateSpans").
	Project("rules_decomposed", "RulesDecomposed").
	Project("rules_approved", "RulesApproved").
	Project("rules_rejected", "RulesRejected").
	Project("error_detail", "ErrorDetail").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for job queries.
// Nil fields are ignored.
type Filters struct {
	Status    *string `json:"status,omitempty"`
	SourceDoc *string `json:"source_doc,omitempty"`
	ThreadID  *string `json:"thread_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereContains("SourceDoc", f.SourceDoc).
		WhereEquals("ThreadID", f.ThreadID)
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
	if v := values.Get("thread_id"); v != "" {
		f.ThreadID = &v
	}

	return f
}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job

	err := s.Scan(
		&j.ID,
		&j.JobID,
		&j.ThreadID,
		&j.SourceDoc,
		&j.ContentType,
		&j.SizeBytes,
		&j.PageCount,
		&j.StorageKey,
		&j.Status,
		&j.CandidateSpans,
		&j.RulesDecomposed,
		&j.RulesApproved,
		&j.RulesRejected,
		&j.ErrorDetail,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	return j, err
}
