package ingestions

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for ingestion job operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Job], error)

	Find(ctx context.Context, id uuid.UUID) (*Job, error)
	FindByJobID(ctx context.Context, jobID string) (*Job, error)

	// Create uploads the source document to blob storage and registers
	// the job in QUEUED.
	Create(ctx context.Context, cmd CreateCommand) (*Job, error)

	// Transition advances a job along its forward-only lifecycle.
	Transition(ctx context.Context, cmd TransitionCommand) (*Job, error)

	// SetCounts updates the job's pipeline counters.
	SetCounts(ctx context.Context, id uuid.UUID, update CountsUpdate) (*Job, error)

	// AttachThread links the job to its orchestrator thread.
	AttachThread(ctx context.Context, id uuid.UUID, threadID uuid.UUID) error
}
