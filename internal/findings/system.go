package findings

import (
	"context"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for finding domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Finding], error)

	Find(ctx context.Context, id uuid.UUID) (*Finding, error)
	Create(ctx context.Context, cmd CreateCommand) (*Finding, error)

	// Dismiss marks a finding as reviewed and set aside. Dismissing an
	// already dismissed finding is rejected.
	Dismiss(ctx context.Context, id uuid.UUID, actor string) (*Finding, error)
}
