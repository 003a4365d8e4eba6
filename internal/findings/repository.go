package findings

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

const findingColumns = "id, thread_id, connection_id, rule_id, finding_type, description, dismissed, dismissed_by, dismissed_at, created_at"

var findingTypes = map[FindingType]struct{}{
	CoverageGap:      {},
	PartialCoverage:  {},
	MissingSchemaMap: {},
	StaleRule:        {},
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a finding repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "findings"),
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
) (*pagination.PageResult[Finding], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Description", "FindingType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count findings: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanFinding)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Finding, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	f, err := repository.QueryOne(ctx, r.db, q, args, scanFinding)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Finding, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	id := uuid.New()
	stmt := fmt.Sprintf(`
		INSERT INTO policy_review_findings(id, thread_id, connection_id, rule_id, finding_type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, findingColumns)

	args := []any{
		id,
		cmd.ThreadID,
		cmd.ConnectionID,
		cmd.RuleID,
		cmd.FindingType,
		cmd.Description,
	}

	f, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Finding, error) {
		f, err := repository.QueryOne(ctx, tx, stmt, args, scanFinding)
		if err != nil {
			if repository.IsForeignKey(err) {
				return Finding{}, faults.Reference("finding", id.String(), "referenced thread, connection, or rule does not exist")
			}
			return Finding{}, err
		}

		entityID := f.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventFindingCreated,
			EntityType: ptr("finding"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"thread_id":    f.ThreadID.String(),
				"finding_type": f.FindingType,
			},
		})
		return f, err
	})

	if err != nil {
		if faults.IsReference(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("finding created", "id", f.ID, "finding_type", f.FindingType)
	return &f, nil
}

func (r *repo) Dismiss(ctx context.Context, id uuid.UUID, actor string) (*Finding, error) {
	f, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Finding, error) {
		stmt := fmt.Sprintf(`
			SELECT %s FROM policy_review_findings WHERE id = $1 FOR UPDATE`, findingColumns)

		current, err := repository.QueryOne(ctx, tx, stmt, []any{id}, scanFinding)
		if err != nil {
			return Finding{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		if current.Dismissed {
			return Finding{}, faults.InvalidState("finding", id.String(), "dismissed", "dismissed")
		}

		update := fmt.Sprintf(`
			UPDATE policy_review_findings
			SET dismissed = true, dismissed_by = $1, dismissed_at = now()
			WHERE id = $2
			RETURNING %s`, findingColumns)

		f, err := repository.QueryOne(ctx, tx, update, []any{actor, id}, scanFinding)
		if err != nil {
			return Finding{}, err
		}

		entityID := f.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventFindingDismissed,
			EntityType: ptr("finding"),
			EntityID:   &entityID,
			Actor:      actor,
			Detail: map[string]any{
				"finding_type": f.FindingType,
			},
		})
		return f, err
	})

	if err != nil {
		if faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("finding dismissed", "id", f.ID)
	return &f, nil
}

func validateCreate(cmd CreateCommand) error {
	if cmd.ThreadID == uuid.Nil {
		return faults.Validation("thread_id", "required")
	}
	if cmd.ConnectionID == uuid.Nil {
		return faults.Validation("connection_id", "required")
	}
	if _, ok := findingTypes[cmd.FindingType]; !ok {
		return faults.Validation("finding_type", "must be COVERAGE_GAP, PARTIAL_COVERAGE, MISSING_SCHEMA_MAP, or STALE_RULE")
	}
	if cmd.FindingType != MissingSchemaMap && cmd.RuleID == nil {
		return faults.Validation("rule_id", "required for rule-scoped finding types")
	}
	return nil
}

func ptr(s string) *string {
	return &s
}
