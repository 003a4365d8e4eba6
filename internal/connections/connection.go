// Package connections implements the monitored data source domain.
// Connection strings are encrypted before they reach the database and only
// decrypted on the way to a scanner or executor collaborator.
package connections

import (
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/collaborators"
)

// ScanMode determines how a connection is scanned for violations.
type ScanMode string

const (
	ScanCDC       ScanMode = "CDC"
	ScanScheduled ScanMode = "SCHEDULED"
	ScanManual    ScanMode = "MANUAL"
)

// Connection represents a monitored data source. SchemaMapped is true iff
// SchemaMap is non-null; the repository maintains the pair together.
type Connection struct {
	ID                  uuid.UUID               `json:"id"`
	Name                string                  `json:"name"`
	ConnectionStringEnc string                  `json:"-"`
	DBType              string                  `json:"db_type"`
	ServerRegion        *string                 `json:"server_region,omitempty"`
	ScanMode            ScanMode                `json:"scan_mode"`
	CronExpression      *string                 `json:"cron_expression,omitempty"`
	SchemaMap           collaborators.SchemaMap `json:"schema_map,omitempty"`
	SchemaMapped        bool                    `json:"schema_mapped"`
	OwnerUserID         *string                 `json:"owner_user_id,omitempty"`
	LastScannedAt       *time.Time              `json:"last_scanned_at,omitempty"`
	CreatedAt           time.Time               `json:"created_at"`
}

// CreateCommand carries the data needed to register a new connection.
// ConnectionString arrives in plaintext and is encrypted before storage.
type CreateCommand struct {
	Name             string   `json:"name"`
	ConnectionString string   `json:"connection_string"`
	DBType           string   `json:"db_type"`
	ServerRegion     *string  `json:"server_region,omitempty"`
	ScanMode         ScanMode `json:"scan_mode,omitempty"`
	CronExpression   *string  `json:"cron_expression,omitempty"`
	OwnerUserID      *string  `json:"owner_user_id,omitempty"`
	Actor            string   `json:"actor,omitempty"`
}
