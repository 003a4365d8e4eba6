package violations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

const violationColumns = "id, thread_id, connection_id, rule_id, table_name, column_name, condition_matched, severity, status, evidence, remediation_template, resolved_at, resolved_by, detected_at, updated_at"

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a violation repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "violations"),
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
) (*pagination.PageResult[Violation], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "TableName", "ConditionMatched")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanViolation)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Violation, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	v, err := repository.QueryOne(ctx, r.db, q, args, scanViolation)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &v, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Violation, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	var evidence []byte
	if cmd.Evidence != nil {
		data, err := json.Marshal(cmd.Evidence)
		if err != nil {
			return nil, fmt.Errorf("marshal evidence: %w", err)
		}
		evidence = data
	}

	id := uuid.New()
	stmt := fmt.Sprintf(`
		INSERT INTO violations(id, thread_id, connection_id, rule_id, table_name, column_name, condition_matched, severity, evidence, remediation_template)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING %s`, violationColumns)

	args := []any{
		id,
		cmd.ThreadID,
		cmd.ConnectionID,
		cmd.RuleID,
		cmd.TableName,
		cmd.ColumnName,
		cmd.ConditionMatched,
		cmd.Severity,
		evidence,
		cmd.RemediationTemplate,
	}

	v, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Violation, error) {
		v, err := repository.QueryOne(ctx, tx, stmt, args, scanViolation)
		if err != nil {
			if repository.IsForeignKey(err) {
				return Violation{}, faults.Reference("violation", cmd.RuleID, "referenced connection, rule, or thread does not exist")
			}
			return Violation{}, err
		}

		entityID := v.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventViolationDetected,
			EntityType: ptr("violation"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"rule_id":       v.RuleID,
				"connection_id": v.ConnectionID.String(),
				"table_name":    v.TableName,
				"severity":      v.Severity,
			},
		})
		return v, err
	})

	if err != nil {
		if faults.IsReference(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("violation detected",
		"id", v.ID,
		"rule_id", v.RuleID,
		"severity", v.Severity,
	)
	return &v, nil
}

func (r *repo) Resolve(ctx context.Context, cmd ResolveCommand) (*Violation, error) {
	v, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Violation, error) {
		current, err := findForUpdate(ctx, tx, cmd.ID)
		if err != nil {
			return Violation{}, err
		}

		if err := guardResolve(current.Status, cmd); err != nil {
			return Violation{}, err
		}

		stmt := fmt.Sprintf(`
			UPDATE violations
			SET status = $1, resolved_at = now(), resolved_by = $2, updated_at = now()
			WHERE id = $3
			RETURNING %s`, violationColumns)

		v, err := repository.QueryOne(ctx, tx, stmt, []any{cmd.Status, cmd.ResolvedBy, cmd.ID}, scanViolation)
		if err != nil {
			return Violation{}, err
		}

		entityID := v.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventViolationResolved,
			EntityType: ptr("violation"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"status":      v.Status,
				"resolved_by": cmd.ResolvedBy,
			},
		})
		return v, err
	})

	if err != nil {
		if faults.IsValidation(err) || faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("violation resolved", "id", v.ID, "status", v.Status)
	return &v, nil
}

func (r *repo) Reopen(ctx context.Context, id uuid.UUID, actor string) (*Violation, error) {
	v, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Violation, error) {
		current, err := findForUpdate(ctx, tx, id)
		if err != nil {
			return Violation{}, err
		}

		if err := guardReopen(&current); err != nil {
			return Violation{}, err
		}

		stmt := fmt.Sprintf(`
			UPDATE violations
			SET status = $1, resolved_at = NULL, resolved_by = NULL, updated_at = now()
			WHERE id = $2
			RETURNING %s`, violationColumns)

		v, err := repository.QueryOne(ctx, tx, stmt, []any{StatusOpen, id}, scanViolation)
		if err != nil {
			return Violation{}, err
		}

		entityID := v.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventViolationReopened,
			EntityType: ptr("violation"),
			EntityID:   &entityID,
			Actor:      actor,
			Detail: map[string]any{
				"previous_status": current.Status,
			},
		})
		return v, err
	})

	if err != nil {
		if faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("violation reopened", "id", v.ID)
	return &v, nil
}

func findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Violation, error) {
	stmt := fmt.Sprintf(`
		SELECT %s FROM violations WHERE id = $1 FOR UPDATE`, violationColumns)

	v, err := repository.QueryOne(ctx, tx, stmt, []any{id}, scanViolation)
	if err != nil {
		return Violation{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return v, nil
}

func ptr(s string) *string {
	return &s
}
