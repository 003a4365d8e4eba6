package remediations

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

const planColumns = "id, thread_id, violation_id, statements, rollback_statements, risk_level, status, execution_report, approved_by, created_at, updated_at"

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a remediation plan repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "remediations"),
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
) (*pagination.PageResult[Plan], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Status", "RiskLevel")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count remediation plans: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanPlan)
	if err != nil {
		return nil, fmt.Errorf("query remediation plans: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Plan, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, r.db, q, args, scanPlan)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &p, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Plan, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	statements, err := json.Marshal(cmd.Statements)
	if err != nil {
		return nil, fmt.Errorf("marshal statements: %w", err)
	}
	var rollback []byte
	if cmd.RollbackStatements != nil {
		rollback, err = json.Marshal(cmd.RollbackStatements)
		if err != nil {
			return nil, fmt.Errorf("marshal rollback statements: %w", err)
		}
	}

	id := uuid.New()
	stmt := fmt.Sprintf(`
		INSERT INTO remediation_plans(id, thread_id, violation_id, statements, rollback_statements, risk_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, planColumns)

	args := []any{
		id,
		cmd.ThreadID,
		cmd.ViolationID,
		statements,
		rollback,
		cmd.RiskLevel,
	}

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Plan, error) {
		p, err := repository.QueryOne(ctx, tx, stmt, args, scanPlan)
		if err != nil {
			if repository.IsForeignKey(err) {
				return Plan{}, faults.Reference("remediation_plan", id.String(), "referenced thread or violation does not exist")
			}
			return Plan{}, err
		}

		entityID := p.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventPlanCreated,
			EntityType: ptr("remediation_plan"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"violation_id": p.ViolationID.String(),
				"risk_level":   p.RiskLevel,
				"statements":   len(p.Statements),
			},
		})
		return p, err
	})

	if err != nil {
		if faults.IsReference(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("remediation plan proposed",
		"id", p.ID,
		"violation_id", p.ViolationID,
		"risk_level", p.RiskLevel,
	)
	return &p, nil
}

func (r *repo) Transition(ctx context.Context, cmd TransitionCommand) (*Plan, error) {
	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Plan, error) {
		current, err := findForUpdate(ctx, tx, cmd.ID)
		if err != nil {
			return Plan{}, err
		}

		if err := guardTransition(cmd.ID, current.Status, cmd.Status); err != nil {
			return Plan{}, err
		}

		var report []byte
		if cmd.Report != nil {
			report, err = json.Marshal(cmd.Report)
			if err != nil {
				return Plan{}, fmt.Errorf("marshal execution report: %w", err)
			}
		}

		var approvedBy *string
		if cmd.Status == StatusApproved && cmd.Actor != "" {
			approvedBy = &cmd.Actor
		}

		stmt := fmt.Sprintf(`
			UPDATE remediation_plans
			SET status = $1,
			    execution_report = COALESCE($2, execution_report),
			    approved_by = COALESCE($3, approved_by),
			    updated_at = now()
			WHERE id = $4
			RETURNING %s`, planColumns)

		p, err := repository.QueryOne(ctx, tx, stmt, []any{cmd.Status, report, approvedBy, cmd.ID}, scanPlan)
		if err != nil {
			return Plan{}, err
		}

		eventType := audit.EventPlanTransition
		if cmd.Status == StatusFailed {
			eventType = audit.EventPlanFailed
		}

		entityID := p.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  eventType,
			EntityType: ptr("remediation_plan"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"from": current.Status,
				"to":   p.Status,
			},
		})
		return p, err
	})

	if err != nil {
		if faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("remediation plan transitioned", "id", p.ID, "status", p.Status)
	return &p, nil
}

func (r *repo) FailActiveForThread(ctx context.Context, threadID uuid.UUID, actor string) (int, error) {
	failed, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Plan, error) {
		stmt := fmt.Sprintf(`
			UPDATE remediation_plans
			SET status = $1, updated_at = now()
			WHERE thread_id = $2 AND status IN ($3, $4)
			RETURNING %s`, planColumns)

		args := []any{StatusFailed, threadID, StatusProposed, StatusApproved}
		plans, err := repository.QueryMany(ctx, tx, stmt, args, scanPlan)
		if err != nil {
			return nil, err
		}

		for _, p := range plans {
			entityID := p.ID.String()
			if _, err := audit.Append(ctx, tx, audit.Event{
				EventType:  audit.EventPlanFailed,
				EntityType: ptr("remediation_plan"),
				EntityID:   &entityID,
				Actor:      actor,
				Detail: map[string]any{
					"reason": "owning thread cancelled",
				},
			}); err != nil {
				return nil, err
			}
		}
		return plans, nil
	})

	if err != nil {
		return 0, fmt.Errorf("fail active plans: %w", err)
	}

	if len(failed) > 0 {
		r.logger.Info("active plans failed for cancelled thread",
			"thread_id", threadID,
			"count", len(failed),
		)
	}
	return len(failed), nil
}

func findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Plan, error) {
	stmt := fmt.Sprintf(`
		SELECT %s FROM remediation_plans WHERE id = $1 FOR UPDATE`, planColumns)

	p, err := repository.QueryOne(ctx, tx, stmt, []any{id}, scanPlan)
	if err != nil {
		return Plan{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return p, nil
}

func ptr(s string) *string {
	return &s
}
