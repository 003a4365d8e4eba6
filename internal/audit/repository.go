package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an audit log repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "audit"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Record(ctx context.Context, event Event) (int64, error) {
	id, err := Append(ctx, r.db, event)
	if err != nil {
		return 0, err
	}

	r.logger.Info(
		"audit",
		"event_type", event.EventType,
		"entity_type", event.EntityType,
		"entity_id", event.EntityID,
		"actor", event.Actor,
	)
	return id, nil
}

// Append inserts an event using the given querier, which may be a
// transaction. Domain repositories call Append inside the same transaction
// as the state change the event describes, keeping the pair atomic.
func Append(ctx context.Context, q repository.Querier, event Event) (int64, error) {
	var detail []byte
	if event.Detail != nil {
		data, err := json.Marshal(event.Detail)
		if err != nil {
			return 0, fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = data
	}

	actor := event.Actor
	if actor == "" {
		actor = ActorSystem
	}

	stmt := `
		INSERT INTO audit_logs(event_type, entity_type, entity_id, actor, detail, checkpoint_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	row := q.QueryRowContext(
		ctx, stmt,
		event.EventType,
		event.EntityType,
		event.EntityID,
		actor,
		detail,
		event.CheckpointID,
	)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("append audit event: %w", err)
	}

	return id, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Event], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "EventType", "EntityID", "Actor")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit events: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	events, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	result := pagination.NewPageResult(events, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&total); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return total, nil
}
