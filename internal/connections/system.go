package connections

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for connection domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Connection], error)

	Find(ctx context.Context, id uuid.UUID) (*Connection, error)
	Create(ctx context.Context, cmd CreateCommand) (*Connection, error)
	Delete(ctx context.Context, id uuid.UUID, actor string) error

	// SetSchemaMap stores the classified schema map. The schema_mapped flag
	// follows the map: true for a non-nil map, false when cleared.
	SetSchemaMap(ctx context.Context, id uuid.UUID, schemaMap collaborators.SchemaMap, actor string) (*Connection, error)

	// TouchScanned records the completion time of a scan.
	TouchScanned(ctx context.Context, id uuid.UUID, at time.Time) error

	// ConnectionString returns the decrypted connection string for handing
	// to a scanner or executor collaborator.
	ConnectionString(ctx context.Context, id uuid.UUID) (string, error)
}
