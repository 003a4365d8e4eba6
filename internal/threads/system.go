package threads

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for thread persistence. The engine
// is the only writer; reads are exposed over HTTP for status queries.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Thread], error)

	Find(ctx context.Context, id uuid.UUID) (*Thread, error)
	Create(ctx context.Context, cmd CreateCommand) (*Thread, error)

	// Checkpoint persists the stage marker before its handler runs, so
	// a crash resumes at the stage that was executing.
	Checkpoint(ctx context.Context, id uuid.UUID, stage string, expectedVersion int) (*Thread, error)

	// Transition applies one logical mutation and its audit event
	// atomically, guarded by the optimistic version column and the
	// status invariants.
	Transition(
		ctx context.Context,
		id uuid.UUID,
		expectedVersion int,
		m Mutation,
		eventType string,
		actor string,
		detail map[string]any,
	) (*Thread, error)
}
