// Package rules implements the regulatory rule domain: obligations
// extracted from source documents, their versioning through supersession,
// and the restrict-on-delete semantics that keep historical violations
// anchored to the rule text they were detected against.
package rules

import "time"

// ObligationType classifies what a rule demands of the data it governs.
type ObligationType string

const (
	Prohibition ObligationType = "PROHIBITION"
	Requirement ObligationType = "REQUIREMENT"
	Permission  ObligationType = "PERMISSION"
)

// Status is the lifecycle state of a rule. DEPRECATED rules remain
// referenceable by historical violations; they are detached, never deleted.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusDeprecated Status = "DEPRECATED"
	StatusDraft      Status = "DRAFT"
)

// Condition is one machine-checkable violation condition of a rule.
type Condition struct {
	ConditionID string `json:"condition_id,omitempty"`
	Expression  string `json:"expression"`
	Severity    string `json:"severity"`
}

// Rule represents one obligation extracted from a regulatory document.
type Rule struct {
	RuleID              string         `json:"rule_id"`
	RuleText            string         `json:"rule_text"`
	SourceDoc           string         `json:"source_doc"`
	ArticleRef          *string        `json:"article_ref,omitempty"`
	Version             int            `json:"version"`
	Status              Status         `json:"status"`
	SupersededBy        *string        `json:"superseded_by,omitempty"`
	EffectiveDate       time.Time      `json:"effective_date"`
	ObligationType      ObligationType `json:"obligation_type"`
	DataSubjectScope    []string       `json:"data_subject_scope,omitempty"`
	ViolationConditions []Condition    `json:"violation_conditions"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CreateCommand carries the data needed to register a new rule.
type CreateCommand struct {
	RuleID              string         `json:"rule_id"`
	RuleText            string         `json:"rule_text"`
	SourceDoc           string         `json:"source_doc"`
	ArticleRef          *string        `json:"article_ref,omitempty"`
	Status              Status         `json:"status,omitempty"`
	EffectiveDate       *time.Time     `json:"effective_date,omitempty"`
	ObligationType      ObligationType `json:"obligation_type"`
	DataSubjectScope    []string       `json:"data_subject_scope,omitempty"`
	ViolationConditions []Condition    `json:"violation_conditions"`
	Actor               string         `json:"actor,omitempty"`
}

// DeprecateCommand retires a rule. SupersededBy may be nil when no
// replacement exists yet.
type DeprecateCommand struct {
	RuleID       string  `json:"rule_id"`
	SupersededBy *string `json:"superseded_by,omitempty"`
	Actor        string  `json:"actor,omitempty"`
}
