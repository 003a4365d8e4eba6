package connections

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

type repo struct {
	db         *sql.DB
	cipher     collaborators.Cipher
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a connection repository implementing the System interface.
func New(
	db *sql.DB,
	cipher collaborators.Cipher,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		cipher:     cipher,
		logger:     logger.With("system", "connections"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Connection], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "DBType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count connections: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanConnection)
	if err != nil {
		return nil, fmt.Errorf("query connections: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Connection, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanConnection)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &c, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Connection, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	encrypted, err := r.cipher.Encrypt(cmd.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("encrypt connection string: %w", err)
	}

	id := uuid.New()
	scanMode := cmd.ScanMode
	if scanMode == "" {
		scanMode = ScanScheduled
	}
	cron := cmd.CronExpression
	if scanMode == ScanScheduled && cron == nil {
		// Scheduled connections default to a nightly scan.
		expr := "0 2 * * *"
		cron = &expr
	}

	stmt := `
		INSERT INTO database_connections(id, name, connection_string_enc, db_type, server_region, scan_mode, cron_expression, owner_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, connection_string_enc, db_type, server_region, scan_mode, cron_expression, schema_map, owner_user_id, last_scanned_at, created_at`

	args := []any{
		id,
		cmd.Name,
		encrypted,
		cmd.DBType,
		cmd.ServerRegion,
		scanMode,
		cron,
		cmd.OwnerUserID,
	}

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Connection, error) {
		c, err := repository.QueryOne(ctx, tx, stmt, args, scanConnection)
		if err != nil {
			return Connection{}, err
		}

		entityID := c.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventConnectionCreated,
			EntityType: ptr("connection"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"name":      c.Name,
				"db_type":   c.DBType,
				"scan_mode": c.ScanMode,
			},
		})
		return c, err
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection created", "id", c.ID, "name", c.Name)
	return &c, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM database_connections WHERE id = $1",
			id,
		); err != nil {
			if repository.IsForeignKey(err) {
				return struct{}{}, faults.Reference("connection", id.String(), "still referenced")
			}
			return struct{}{}, err
		}

		entityID := id.String()
		_, err := audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventConnectionDeleted,
			EntityType: ptr("connection"),
			EntityID:   &entityID,
			Actor:      actor,
		})
		return struct{}{}, err
	})

	if err != nil {
		if faults.IsReference(err) {
			return err
		}
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("connection deleted", "id", id)
	return nil
}

func (r *repo) SetSchemaMap(
	ctx context.Context,
	id uuid.UUID,
	schemaMap collaborators.SchemaMap,
	actor string,
) (*Connection, error) {
	var payload []byte
	if schemaMap != nil {
		data, err := json.Marshal(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("marshal schema map: %w", err)
		}
		payload = data
	}

	c, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Connection, error) {
		stmt := `
			UPDATE database_connections SET schema_map = $1 WHERE id = $2
			RETURNING id, name, connection_string_enc, db_type, server_region, scan_mode, cron_expression, schema_map, owner_user_id, last_scanned_at, created_at`

		c, err := repository.QueryOne(ctx, tx, stmt, []any{payload, id}, scanConnection)
		if err != nil {
			return Connection{}, err
		}

		entityID := c.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventSchemaMapClassified,
			EntityType: ptr("connection"),
			EntityID:   &entityID,
			Actor:      actor,
			Detail: map[string]any{
				"schema_mapped": c.SchemaMapped,
				"tables":        len(c.SchemaMap),
			},
		})
		return c, err
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("schema map updated", "id", c.ID, "schema_mapped", c.SchemaMapped)
	return &c, nil
}

func (r *repo) TouchScanned(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE database_connections SET last_scanned_at = $1 WHERE id = $2",
		at, id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func (r *repo) ConnectionString(ctx context.Context, id uuid.UUID) (string, error) {
	c, err := r.Find(ctx, id)
	if err != nil {
		return "", err
	}

	plaintext, err := r.cipher.Decrypt(c.ConnectionStringEnc)
	if err != nil {
		return "", fmt.Errorf("decrypt connection string: %w", err)
	}
	return plaintext, nil
}

func validateCreate(cmd CreateCommand) error {
	if cmd.Name == "" {
		return faults.Validation("name", "required")
	}
	if cmd.ConnectionString == "" {
		return faults.Validation("connection_string", "required")
	}
	if cmd.DBType == "" {
		return faults.Validation("db_type", "required")
	}
	switch cmd.ScanMode {
	case "", ScanCDC, ScanScheduled, ScanManual:
	default:
		return faults.Validation("scan_mode", "must be CDC, SCHEDULED, or MANUAL")
	}
	return nil
}

func ptr(s string) *string {
	return &s
}
