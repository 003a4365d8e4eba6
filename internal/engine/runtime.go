package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/connections"
	"github.com/sentinel-compliance/sentinel/internal/findings"
	"github.com/sentinel-compliance/sentinel/internal/ingestions"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// The engine consumes narrow slices of the domain systems. Each
// interface below is structurally satisfied by the corresponding
// repository; tests substitute in-memory fakes.

// ThreadStore persists thread state and audit events atomically.
type ThreadStore interface {
	Find(ctx context.Context, id uuid.UUID) (*threads.Thread, error)
	Create(ctx context.Context, cmd threads.CreateCommand) (*threads.Thread, error)
	Checkpoint(ctx context.Context, id uuid.UUID, stage string, expectedVersion int) (*threads.Thread, error)
	Transition(
		ctx context.Context,
		id uuid.UUID,
		expectedVersion int,
		m threads.Mutation,
		eventType string,
		actor string,
		detail map[string]any,
	) (*threads.Thread, error)
}

// RuleStore reads and writes rules on behalf of ingestion and
// policy-review stages.
type RuleStore interface {
	List(ctx context.Context, page pagination.PageRequest, filters rules.Filters) (*pagination.PageResult[rules.Rule], error)
	Active(ctx context.Context) ([]rules.Rule, error)
	Create(ctx context.Context, cmd rules.CreateCommand) (*rules.Rule, error)
	Activate(ctx context.Context, ruleID, actor string) (*rules.Rule, error)
	Delete(ctx context.Context, ruleID, actor string) error
}

// ConnectionStore resolves monitored connections for scan and
// remediation stages.
type ConnectionStore interface {
	Find(ctx context.Context, id uuid.UUID) (*connections.Connection, error)
	ConnectionString(ctx context.Context, id uuid.UUID) (string, error)
	SetSchemaMap(ctx context.Context, id uuid.UUID, schemaMap collaborators.SchemaMap, actor string) (*connections.Connection, error)
	TouchScanned(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ViolationStore records and resolves detected violations.
type ViolationStore interface {
	Find(ctx context.Context, id uuid.UUID) (*violations.Violation, error)
	Create(ctx context.Context, cmd violations.CreateCommand) (*violations.Violation, error)
	Resolve(ctx context.Context, cmd violations.ResolveCommand) (*violations.Violation, error)
}

// FindingStore records and dismisses policy-review findings.
type FindingStore interface {
	List(ctx context.Context, page pagination.PageRequest, filters findings.Filters) (*pagination.PageResult[findings.Finding], error)
	Create(ctx context.Context, cmd findings.CreateCommand) (*findings.Finding, error)
	Dismiss(ctx context.Context, id uuid.UUID, actor string) (*findings.Finding, error)
}

// PlanStore drives remediation plans through their lifecycle.
type PlanStore interface {
	List(ctx context.Context, page pagination.PageRequest, filters remediations.Filters) (*pagination.PageResult[remediations.Plan], error)
	Find(ctx context.Context, id uuid.UUID) (*remediations.Plan, error)
	Create(ctx context.Context, cmd remediations.CreateCommand) (*remediations.Plan, error)
	Transition(ctx context.Context, cmd remediations.TransitionCommand) (*remediations.Plan, error)
	FailActiveForThread(ctx context.Context, threadID uuid.UUID, actor string) (int, error)
}

// JobStore tracks ingestion jobs alongside their threads.
type JobStore interface {
	Find(ctx context.Context, id uuid.UUID) (*ingestions.Job, error)
	FindByJobID(ctx context.Context, jobID string) (*ingestions.Job, error)
	Transition(ctx context.Context, cmd ingestions.TransitionCommand) (*ingestions.Job, error)
	SetCounts(ctx context.Context, id uuid.UUID, update ingestions.CountsUpdate) (*ingestions.Job, error)
	AttachThread(ctx context.Context, id uuid.UUID, threadID uuid.UUID) error
}

// BlobStore fetches source documents for the ingestion pipeline.
type BlobStore interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// AuditStore records engine actions that do not flow through a domain
// transition, such as rollback of an already failed plan.
type AuditStore interface {
	Record(ctx context.Context, event audit.Event) (int64, error)
}

// Runtime bundles the domain stores and external collaborators that
// stage handlers draw on.
type Runtime struct {
	Threads     ThreadStore
	Rules       RuleStore
	Connections ConnectionStore
	Violations  ViolationStore
	Findings    FindingStore
	Plans       PlanStore
	Jobs        JobStore
	Blobs       BlobStore
	Audit       AuditStore

	Pipeline collaborators.DocumentPipeline
	Scanner  collaborators.SchemaScanner
	Executor collaborators.SQLExecutor

	Logger *slog.Logger
}
