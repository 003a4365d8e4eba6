package audit

import (
	"encoding/json"
	"net/url"

	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "audit_logs", "a").
	Project("id", "ID").
	Project("event_type", "EventType").
	Project("entity_type", "EntityType").
	Project("entity_id", "EntityID").
	Project("actor", "Actor").
	Project("detail", "Detail").
	Project("checkpoint_id", "CheckpointID").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "ID",
	Descending: true,
}

// Filters contains optional filtering criteria for audit queries.
// Nil fields are ignored.
type Filters struct {
	EventType    *string `json:"event_type,omitempty"`
	EntityType   *string `json:"entity_type,omitempty"`
	EntityID     *string `json:"entity_id,omitempty"`
	Actor        *string `json:"actor,omitempty"`
	CheckpointID *string `json:"checkpoint_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("EventType", f.EventType).
		WhereEquals("EntityType", f.EntityType).
		WhereEquals("EntityID", f.EntityID).
		WhereEquals("Actor", f.Actor).
		WhereEquals("CheckpointID", f.CheckpointID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("event_type"); v != "" {
		f.EventType = &v
	}
	if v := values.Get("entity_type"); v != "" {
		f.EntityType = &v
	}
	if v := values.Get("entity_id"); v != "" {
		f.EntityID = &v
	}
	if v := values.Get("actor"); v != "" {
		f.Actor = &v
	}
	if v := values.Get("checkpoint_id"); v != "" {
		f.CheckpointID = &v
	}

	return f
}

func scanEvent(s repository.Scanner) (Event, error) {
	var (
		e      Event
		detail []byte
	)

	err := s.Scan(
		&e.ID,
		&e.EventType,
		&e.EntityType,
		&e.EntityID,
		&e.Actor,
		&detail,
		&e.CheckpointID,
		&e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return e, err
		}
	}

	return e, nil
}
