// Package collaborators defines the narrow interfaces through which the
// orchestration engine invokes external systems: the document pipeline
// that extracts and decomposes regulatory text, the scanner that
// classifies schemas and detects violations, the executor that applies
// remediation SQL to target databases, and the cipher that protects
// connection strings at rest. Implementations live outside the core and
// are injected at composition time.
package collaborators

import (
	"context"
	"io"
)

// CandidateSpan is a fragment of regulatory text identified as a possible
// obligation during extraction.
type CandidateSpan struct {
	SpanID     string `json:"span_id"`
	Text       string `json:"text"`
	ArticleRef string `json:"article_ref,omitempty"`
	Page       int    `json:"page"`
}

// ConditionDraft is one machine-checkable violation condition proposed by
// decomposition.
type ConditionDraft struct {
	Expression string `json:"expression"`
	Severity   string `json:"severity"`
}

// RuleDraft is a decomposed rule candidate awaiting commit. Drafts flagged
// NeedsReview pause the owning workflow for human approval before the rule
// becomes authoritative.
type RuleDraft struct {
	RuleID              string           `json:"rule_id"`
	RuleText            string           `json:"rule_text"`
	ArticleRef          string           `json:"article_ref,omitempty"`
	ObligationType      string           `json:"obligation_type"`
	ViolationConditions []ConditionDraft `json:"violation_conditions"`
	NeedsReview         bool             `json:"needs_review"`
	ReviewReason        string           `json:"review_reason,omitempty"`
}

// DocumentPipeline extracts candidate spans from a source document and
// decomposes them into rule drafts.
type DocumentPipeline interface {
	Extract(ctx context.Context, filename string, document io.Reader) ([]CandidateSpan, error)
	Decompose(ctx context.Context, spans []CandidateSpan) ([]RuleDraft, error)
}

// SchemaMap categorizes the columns of a monitored database:
// table name to column name to data category.
type SchemaMap map[string]map[string]string

// ViolationDraft is a detected rule breach awaiting persistence.
type ViolationDraft struct {
	RuleID           string         `json:"rule_id"`
	TableName        string         `json:"table_name"`
	ColumnName       string         `json:"column_name,omitempty"`
	ConditionMatched string         `json:"condition_matched"`
	Severity         string         `json:"severity"`
	Evidence         map[string]any `json:"evidence,omitempty"`
}

// RuleRef carries the subset of a rule that the scanner needs to evaluate
// a connection.
type RuleRef struct {
	RuleID     string   `json:"rule_id"`
	Conditions []string `json:"conditions"`
}

// SchemaScanner classifies a monitored database's schema and evaluates
// rules against it. The connection string is passed decrypted; the scanner
// never sees the stored ciphertext.
type SchemaScanner interface {
	Classify(ctx context.Context, connectionString string) (SchemaMap, error)
	DetectViolations(ctx context.Context, connectionString string, rules []RuleRef) ([]ViolationDraft, error)
}

// StatementResult reports the outcome of a single remediation statement.
type StatementResult struct {
	Statement    string `json:"statement"`
	OK           bool   `json:"ok"`
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}

// ExecutionReport aggregates per-statement results of a remediation run.
type ExecutionReport struct {
	Statements []StatementResult `json:"statements"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
}

// SQLExecutor applies remediation statements to a target database.
// Rollback is a distinct, explicitly invoked operation; the core never
// rolls back automatically.
type SQLExecutor interface {
	Execute(ctx context.Context, connectionString string, statements []string) (ExecutionReport, error)
	Rollback(ctx context.Context, connectionString string, statements []string) (ExecutionReport, error)
}

// Cipher protects connection strings at rest. The ciphertext format is
// opaque to the core.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
