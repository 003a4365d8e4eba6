package violations

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for violation domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Violation], error)

	Find(ctx context.Context, id uuid.UUID) (*Violation, error)
	Create(ctx context.Context, cmd CreateCommand) (*Violation, error)

	// Resolve moves an OPEN violation to REMEDIATED, ACCEPTED_RISK, or
	// FALSE_POSITIVE, stamping resolved_at and resolved_by together.
	Resolve(ctx context.Context, cmd ResolveCommand) (*Violation, error)

	// Reopen returns a resolved violation to OPEN and clears its
	// resolution metadata.
	Reopen(ctx context.Context, id uuid.UUID, actor string) (*Violation, error)
}
