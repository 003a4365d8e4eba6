// Package findings implements policy-review findings: coverage gaps
// discovered while evaluating active rules against a connection's schema
// map. Findings cascade with their owning thread and restrict deletion
// of the rule they reference.
package findings

import (
	"time"

	"github.com/google/uuid"
)

// FindingType classifies the kind of gap a policy review discovered.
type FindingType string

const (
	CoverageGap      FindingType = "COVERAGE_GAP"
	PartialCoverage  FindingType = "PARTIAL_COVERAGE"
	MissingSchemaMap FindingType = "MISSING_SCHEMA_MAP"
	StaleRule        FindingType = "STALE_RULE"
)

// Finding is one gap discovered during a policy-review thread. RuleID is
// nil for findings that concern the connection rather than a specific
// rule (MISSING_SCHEMA_MAP).
type Finding struct {
	ID           uuid.UUID   `json:"id"`
	ThreadID     uuid.UUID   `json:"thread_id"`
	ConnectionID uuid.UUID   `json:"connection_id"`
	RuleID       *string     `json:"rule_id,omitempty"`
	FindingType  FindingType `json:"finding_type"`
	Description  string      `json:"description"`
	Dismissed    bool        `json:"dismissed"`
	DismissedBy  *string     `json:"dismissed_by,omitempty"`
	DismissedAt  *time.Time  `json:"dismissed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CreateCommand carries the data needed to record a finding.
type CreateCommand struct {
	ThreadID     uuid.UUID   `json:"thread_id"`
	ConnectionID uuid.UUID   `json:"connection_id"`
	RuleID       *string     `json:"rule_id,omitempty"`
	FindingType  FindingType `json:"finding_type"`
	Description  string      `json:"description"`
	Actor        string      `json:"actor,omitempty"`
}
