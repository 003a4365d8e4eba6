package audit

import (
	"context"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for the audit log. Append-only: the
// interface deliberately carries no update or delete operation, so
// immutability holds regardless of the storage engine behind it.
type System interface {
	Handler() *Handler

	// Record appends an event and returns its assigned id.
	Record(ctx context.Context, event Event) (int64, error)

	// List returns a page of events matching the filter, newest first.
	// Re-issuing the same request restarts the listing from the same point.
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Event], error)

	// Count returns the total number of recorded events.
	Count(ctx context.Context) (int64, error)
}
