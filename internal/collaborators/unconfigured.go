package collaborators

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by unconfigured collaborator stubs. Threads
// whose stages depend on a missing collaborator fail cleanly instead of
// panicking.
var ErrNotConfigured = errors.New("collaborator not configured")

type unconfiguredPipeline struct{}

// UnconfiguredPipeline returns a DocumentPipeline whose operations fail
// with ErrNotConfigured.
func UnconfiguredPipeline() DocumentPipeline {
	return unconfiguredPipeline{}
}

func (unconfiguredPipeline) Extract(context.Context, string, io.Reader) ([]CandidateSpan, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredPipeline) Decompose(context.Context, []CandidateSpan) ([]RuleDraft, error) {
	return nil, ErrNotConfigured
}

type unconfiguredScanner struct{}

// UnconfiguredScanner returns a SchemaScanner whose operations fail with
// ErrNotConfigured.
func UnconfiguredScanner() SchemaScanner {
	return unconfiguredScanner{}
}

func (unconfiguredScanner) Classify(context.Context, string) (SchemaMap, error) {
	return nil, ErrNotConfigured
}

func (unconfiguredScanner) DetectViolations(context.Context, string, []RuleRef) ([]ViolationDraft, error) {
	return nil, ErrNotConfigured
}

type unconfiguredExecutor struct{}

// UnconfiguredExecutor returns a SQLExecutor whose operations fail with
// ErrNotConfigured.
func UnconfiguredExecutor() SQLExecutor {
	return unconfiguredExecutor{}
}

func (unconfiguredExecutor) Execute(context.Context, string, []string) (ExecutionReport, error) {
	return ExecutionReport{}, ErrNotConfigured
}

func (unconfiguredExecutor) Rollback(context.Context, string, []string) (ExecutionReport, error) {
	return ExecutionReport{}, ErrNotConfigured
}
