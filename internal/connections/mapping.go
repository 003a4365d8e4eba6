package connections

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "database_connections", "c").
	Project("id", "ID").
	Project("name", "Name").
	Project("connection_string_enc", "ConnectionStringEnc").
	Project("db_type", "DBType").
	Project("server_region", "ServerRegion").
	Project("scan_mode", "ScanMode").
	Project("cron_expression", "CronExpression").
	Project("schema_map", "SchemaMap").
	Project("owner_user_id", "OwnerUserID").
	Project("last_scanned_at", "LastScannedAt").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for connection queries.
// Nil fields are ignored.
type Filters struct {
	Name         *string `json:"name,omitempty"`
	DBType       *string `json:"db_type,omitempty"`
	ScanMode     *string `json:"scan_mode,omitempty"`
	ServerRegion *string `json:"server_region,omitempty"`
	OwnerUserID  *string `json:"owner_user_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("DBType", f.DBType).
		WhereEquals("ScanMode", f.ScanMode).
		WhereEquals("ServerRegion", f.ServerRegion).
		WhereEquals("OwnerUserID", f.OwnerUserID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("name"); v != "" {
		f.Name = &v
	}
	if v := values.Get("db_type"); v != "" {
		f.DBType = &v
	}
	if v := values.Get("scan_mode"); v != "" {
		f.ScanMode = &v
	}
	if v := values.Get("server_region"); v != "" {
		f.ServerRegion = &v
	}
	if v := values.Get("owner_user_id"); v != "" {
		f.OwnerUserID = &v
	}

	return f
}

func scanConnection(s repository.Scanner) (Connection, error) {
	var (
		c         Connection
		schemaMap []byte
	)

	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.ConnectionStringEnc,
		&c.DBType,
		&c.ServerRegion,
		&c.ScanMode,
		&c.CronExpression,
		&schemaMap,
		&c.OwnerUserID,
		&c.LastScannedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return c, err
	}

	if len(schemaMap) > 0 {
		if err := json.Unmarshal(schemaMap, &c.SchemaMap); err != nil {
			return c, err
		}
	}
	c.SchemaMapped = c.SchemaMap != nil

	return c, nil
}
