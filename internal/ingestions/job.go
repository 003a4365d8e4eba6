// Package ingestions implements the document-ingestion domain: source
// regulatory documents uploaded to blob storage and the jobs that track
// their extraction and decomposition into candidate rules.
package ingestions

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an ingestion job. Transitions move
// strictly forward; AWAITING_REVIEW is only reachable from DECOMPOSING.
type Status string

const (
	StatusQueued         Status = "QUEUED"
	StatusExtracting     Status = "EXTRACTING"
	StatusDecomposing    Status = "DECOMPOSING"
	StatusAwaitingReview Status = "AWAITING_REVIEW"
	StatusCompleted      Status = "COMPLETED"
	StatusFailed         Status = "FAILED"
)

// Job represents one document-ingestion run. The counts accumulate as
// the pipeline extracts candidate spans and decomposes them into rules,
// and as review decisions approve or reject the drafts.
type Job struct {
	ID              uuid.UUID  `json:"id"`
	JobID           string     `json:"job_id"`
	ThreadID        *uuid.UUID `json:"thread_id,omitempty"`
	SourceDoc       string     `json:"source_doc"`
	ContentType     string     `json:"content_type"`
	SizeBytes       int64      `json:"size_bytes"`
	PageCount       *int       `json:"page_count,omitempty"`
	StorageKey      string     `json:"storage_key"`
	Status          Status     `json:"status"`
	CandidateSpans  int        `json:"candidate_spans"`
	RulesDecomposed int        `json:"rules_decomposed"`
	RulesApproved   int        `json:"rules_approved"`
	RulesRejected   int        `json:"rules_rejected"`
	ErrorDetail     *string    `json:"error_detail,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateCommand carries the data needed to register a new ingestion job.
// Data holds the raw document bytes. PageCount is optional and may be
// extracted by the caller via pdfcpu; nil values are stored as NULL.
type CreateCommand struct {
	Data        []byte
	SourceDoc   string
	ContentType string
	PageCount   *int
	Actor       string
}

// TransitionCommand advances a job to its next lifecycle status.
// ErrorDetail carries the failure reason for FAILED.
type TransitionCommand struct {
	ID          uuid.UUID `json:"id"`
	Status      Status    `json:"status"`
	ErrorDetail *string   `json:"error_detail,omitempty"`
	Actor       string    `json:"actor,omitempty"`
}

// CountsUpdate adjusts the job's pipeline counters. Nil fields are
// left unchanged.
type CountsUpdate struct {
	CandidateSpans  *int `json:"candidate_spans,omitempty"`
	RulesDecomposed *int `json:"rules_decomposed,omitempty"`
	RulesApproved   *int `json:"rules_approved,omitempty"`
	RulesRejected   *int `json:"rules_rejected,omitempty"`
}
