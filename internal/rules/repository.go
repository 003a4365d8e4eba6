package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a rule repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "rules"),
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
) (*pagination.PageResult[Rule], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "RuleID", "RuleText", "SourceDoc")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, ruleID string) (*Rule, error) {
	q, args := query.NewBuilder(projection).BuildSingle("RuleID", ruleID)

	rule, err := repository.QueryOne(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rule, nil
}

func (r *repo) Active(ctx context.Context) ([]Rule, error) {
	status := string(StatusActive)
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("Status", &status).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	return items, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Rule, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		rule, err := insertRule(ctx, tx, cmd, 1)
		if err != nil {
			return Rule{}, err
		}

		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventRuleCreated,
			EntityType: ptr("rule"),
			EntityID:   &rule.RuleID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"source_doc": rule.SourceDoc,
				"status":     rule.Status,
			},
		})
		if err != nil {
			return Rule{}, err
		}

		return rule, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule created", "rule_id", rule.RuleID, "source_doc", rule.SourceDoc)
	return &rule, nil
}

func (r *repo) Activate(ctx context.Context, ruleID, actor string) (*Rule, error) {
	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		current, err := findForUpdate(ctx, tx, ruleID)
		if err != nil {
			return Rule{}, err
		}
		if current.Status != StatusDraft {
			return Rule{}, faults.InvalidState("rule", ruleID, string(current.Status), string(StatusActive))
		}

		stmt := `
			UPDATE rules SET status = $1, updated_at = now() WHERE rule_id = $2
			RETURNING rule_id, rule_text, source_doc, article_ref, version, status, superseded_by, effective_date, obligation_type, data_subject_scope, violation_conditions, created_at, updated_at`

		rule, err := repository.QueryOne(ctx, tx, stmt, []any{StatusActive, ruleID}, scanRule)
		if err != nil {
			return Rule{}, err
		}

		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventRuleActivated,
			EntityType: ptr("rule"),
			EntityID:   &rule.RuleID,
			Actor:      actor,
		})
		return rule, err
	})

	if err != nil {
		if faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule activated", "rule_id", rule.RuleID)
	return &rule, nil
}

func (r *repo) Deprecate(ctx context.Context, cmd DeprecateCommand) (*Rule, error) {
	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		current, err := findForUpdate(ctx, tx, cmd.RuleID)
		if err != nil {
			return Rule{}, err
		}

		if cmd.SupersededBy != nil {
			if _, err := findForUpdate(ctx, tx, *cmd.SupersededBy); err != nil {
				if errors.Is(err, ErrNotFound) {
					return Rule{}, faults.Reference("rule", *cmd.SupersededBy, "superseded_by target does not exist")
				}
				return Rule{}, err
			}

			cycle, err := chainWouldCycle(cmd.RuleID, *cmd.SupersededBy, chainLookup(ctx, tx))
			if err != nil {
				return Rule{}, err
			}
			if cycle {
				return Rule{}, faults.Validation("superseded_by", "chain would create a cycle")
			}
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE rules SET status = $1, superseded_by = $2, updated_at = now() WHERE rule_id = $3",
			StatusDeprecated, cmd.SupersededBy, cmd.RuleID,
		); err != nil {
			return Rule{}, err
		}

		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventRuleDeprecated,
			EntityType: ptr("rule"),
			EntityID:   &cmd.RuleID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"previous_status": current.Status,
				"superseded_by":   cmd.SupersededBy,
			},
		})
		if err != nil {
			return Rule{}, err
		}

		current.Status = StatusDeprecated
		current.SupersededBy = cmd.SupersededBy
		return current, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule deprecated", "rule_id", rule.RuleID)
	return &rule, nil
}

func (r *repo) Supersede(ctx context.Context, oldRuleID string, cmd CreateCommand) (*Rule, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}
	if cmd.RuleID == oldRuleID {
		return nil, faults.Validation("rule_id", "replacement cannot supersede itself")
	}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		old, err := findForUpdate(ctx, tx, oldRuleID)
		if err != nil {
			return Rule{}, err
		}

		replacement, err := insertRule(ctx, tx, cmd, old.Version+1)
		if err != nil {
			return Rule{}, err
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE rules SET status = $1, superseded_by = $2, updated_at = now() WHERE rule_id = $3",
			StatusDeprecated, replacement.RuleID, oldRuleID,
		); err != nil {
			return Rule{}, err
		}

		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventRuleSuperseded,
			EntityType: ptr("rule"),
			EntityID:   &oldRuleID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"replacement": replacement.RuleID,
				"version":     replacement.Version,
			},
		})
		if err != nil {
			return Rule{}, err
		}

		return replacement, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule superseded", "old", oldRuleID, "replacement", rule.RuleID)
	return &rule, nil
}

func (r *repo) Delete(ctx context.Context, ruleID, actor string) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		refs, err := referenceCount(ctx, tx, ruleID)
		if err != nil {
			return struct{}{}, err
		}
		if refs > 0 {
			return struct{}{}, faults.Reference(
				"rule", ruleID,
				fmt.Sprintf("referenced by %d violations or findings", refs),
			)
		}

		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM rules WHERE rule_id = $1",
			ruleID,
		); err != nil {
			if repository.IsForeignKey(err) {
				return struct{}{}, faults.Reference("rule", ruleID, "still referenced")
			}
			return struct{}{}, err
		}

		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventRuleDeleted,
			EntityType: ptr("rule"),
			EntityID:   &ruleID,
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

	r.logger.Info("rule deleted", "rule_id", ruleID)
	return nil
}

func insertRule(ctx context.Context, tx *sql.Tx, cmd CreateCommand, version int) (Rule, error) {
	status := cmd.Status
	if status == "" {
		status = StatusActive
	}

	effective := time.Now().UTC()
	if cmd.EffectiveDate != nil {
		effective = *cmd.EffectiveDate
	}

	scope, err := json.Marshal(cmd.DataSubjectScope)
	if err != nil {
		return Rule{}, fmt.Errorf("marshal data_subject_scope: %w", err)
	}
	conditions, err := json.Marshal(cmd.ViolationConditions)
	if err != nil {
		return Rule{}, fmt.Errorf("marshal violation_conditions: %w", err)
	}

	stmt := `
		INSERT INTO rules(rule_id, rule_text, source_doc, article_ref, version, status, effective_date, obligation_type, data_subject_scope, violation_conditions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING rule_id, rule_text, source_doc, article_ref, version, status, superseded_by, effective_date, obligation_type, data_subject_scope, violation_conditions, created_at, updated_at`

	args := []any{
		cmd.RuleID,
		cmd.RuleText,
		cmd.SourceDoc,
		cmd.ArticleRef,
		version,
		status,
		effective,
		cmd.ObligationType,
		scope,
		conditions,
	}

	return repository.QueryOne(ctx, tx, stmt, args, scanRule)
}

func findForUpdate(ctx context.Context, tx *sql.Tx, ruleID string) (Rule, error) {
	stmt := `
		SELECT rule_id, rule_text, source_doc, article_ref, version, status, superseded_by, effective_date, obligation_type, data_subject_scope, violation_conditions, created_at, updated_at
		FROM rules WHERE rule_id = $1 FOR UPDATE`

	rule, err := repository.QueryOne(ctx, tx, stmt, []any{ruleID}, scanRule)
	if err != nil {
		return Rule{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return rule, nil
}

func chainLookup(ctx context.Context, tx *sql.Tx) ChainLookup {
	return func(ruleID string) (*string, error) {
		var next *string
		row := tx.QueryRowContext(ctx, "SELECT superseded_by FROM rules WHERE rule_id = $1", ruleID)
		if err := row.Scan(&next); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return next, nil
	}
}

func referenceCount(ctx context.Context, tx *sql.Tx, ruleID string) (int, error) {
	stmt := `
		SELECT
			(SELECT COUNT(*) FROM violations WHERE rule_id = $1) +
			(SELECT COUNT(*) FROM policy_review_findings WHERE rule_id = $1)`

	var refs int
	if err := tx.QueryRowContext(ctx, stmt, ruleID).Scan(&refs); err != nil {
		return 0, fmt.Errorf("count rule references: %w", err)
	}
	return refs, nil
}

func validateCreate(cmd CreateCommand) error {
	if cmd.RuleID == "" {
		return faults.Validation("rule_id", "required")
	}
	if cmd.RuleText == "" {
		return faults.Validation("rule_text", "required")
	}
	if cmd.SourceDoc == "" {
		return faults.Validation("source_doc", "required")
	}
	switch cmd.ObligationType {
	case Prohibition, Requirement, Permission:
	default:
		return faults.Validation("obligation_type", "must be PROHIBITION, REQUIREMENT, or PERMISSION")
	}
	if len(cmd.ViolationConditions) == 0 {
		return faults.Validation("violation_conditions", "at least one condition required")
	}
	return nil
}

func ptr(s string) *string {
	return &s
}
