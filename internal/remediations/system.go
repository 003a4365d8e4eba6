package remediations

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for remediation plan operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Plan], error)

	Find(ctx context.Context, id uuid.UUID) (*Plan, error)
	Create(ctx context.Context, cmd CreateCommand) (*Plan, error)

	// Transition advances a plan along its forward-only lifecycle.
	// Skipping a required predecessor fails without mutation.
	Transition(ctx context.Context, cmd TransitionCommand) (*Plan, error)

	// FailActiveForThread fails every PROPOSED or APPROVED plan owned by
	// the thread. Used when the owning thread is cancelled. Returns the
	// number of plans failed.
	FailActiveForThread(ctx context.Context, threadID uuid.UUID, actor string) (int, error)
}
