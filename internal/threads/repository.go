package threads

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

const threadColumns = "id, workflow_type, status, stage, input, pending_review, human_decision, human_feedback, user_message, final_response, error_detail, actor, version, created_at, updated_at, completed_at"

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a thread repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "threads"),
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
) (*pagination.PageResult[Thread], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Stage", "WorkflowType")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count threads: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanThread)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Thread, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	t, err := repository.QueryOne(ctx, r.db, q, args, scanThread)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Thread, error) {
	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	var input []byte
	if cmd.Input != nil {
		data, err := json.Marshal(cmd.Input)
		if err != nil {
			return nil, fmt.Errorf("marshal thread input: %w", err)
		}
		input = data
	}

	id := uuid.New()
	stmt := fmt.Sprintf(`
		INSERT INTO orchestrator_threads(id, workflow_type, status, stage, input, user_message, actor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, threadColumns)

	args := []any{
		id,
		cmd.WorkflowType,
		StatusRunning,
		cmd.Stage,
		input,
		cmd.UserMessage,
		cmd.Actor,
	}

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Thread, error) {
		t, err := repository.QueryOne(ctx, tx, stmt, args, scanThread)
		if err != nil {
			return Thread{}, err
		}

		entityID := t.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventThreadCreated,
			EntityType: ptr("thread"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"workflow_type": t.WorkflowType,
				"stage":         t.Stage,
			},
		})
		return t, err
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("thread created", "id", t.ID, "workflow_type", t.WorkflowType)
	return &t, nil
}

func (r *repo) Checkpoint(ctx context.Context, id uuid.UUID, stage string, expectedVersion int) (*Thread, error) {
	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Thread, error) {
		current, err := findForUpdate(ctx, tx, id)
		if err != nil {
			return Thread{}, err
		}
		if current.Version != expectedVersion {
			return Thread{}, ErrStale
		}
		if current.Terminal() {
			return Thread{}, faults.InvalidState("thread", id.String(), string(current.Status), string(current.Status))
		}

		stmt := fmt.Sprintf(`
			UPDATE orchestrator_threads
			SET stage = $1, version = version + 1, updated_at = now()
			WHERE id = $2
			RETURNING %s`, threadColumns)

		return repository.QueryOne(ctx, tx, stmt, []any{stage, id}, scanThread)
	})

	if err != nil {
		if err == ErrStale || faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	return &t, nil
}

func (r *repo) Transition(
	ctx context.Context,
	id uuid.UUID,
	expectedVersion int,
	m Mutation,
	eventType string,
	actor string,
	detail map[string]any,
) (*Thread, error) {
	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Thread, error) {
		current, err := findForUpdate(ctx, tx, id)
		if err != nil {
			return Thread{}, err
		}
		if current.Version != expectedVersion {
			return Thread{}, ErrStale
		}
		if err := guardMutation(id, &current, m); err != nil {
			return Thread{}, err
		}

		next := projectMutation(&current, m)

		var review []byte
		if next.PendingReview != nil {
			review, err = json.Marshal(next.PendingReview)
			if err != nil {
				return Thread{}, fmt.Errorf("marshal pending review: %w", err)
			}
		}

		stmt := fmt.Sprintf(`
			UPDATE orchestrator_threads
			SET status = $1,
			    stage = $2,
			    pending_review = $3,
			    human_decision = $4,
			    human_feedback = $5,
			    final_response = $6,
			    error_detail = $7,
			    version = version + 1,
			    updated_at = now(),
			    completed_at = CASE WHEN $8 THEN now() ELSE completed_at END
			WHERE id = $9
			RETURNING %s`, threadColumns)

		args := []any{
			next.Status,
			next.Stage,
			review,
			next.HumanDecision,
			next.HumanFeedback,
			next.FinalResponse,
			next.ErrorDetail,
			next.Terminal(),
			id,
		}

		t, err := repository.QueryOne(ctx, tx, stmt, args, scanThread)
		if err != nil {
			return Thread{}, err
		}

		entityID := t.ID.String()
		checkpoint := fmt.Sprintf("%s@%d", t.Stage, t.Version)
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:    eventType,
			EntityType:   ptr("thread"),
			EntityID:     &entityID,
			Actor:        actor,
			Detail:       detail,
			CheckpointID: &checkpoint,
		})
		return t, err
	})

	if err != nil {
		if err == ErrStale || faults.IsInvalidState(err) || faults.IsValidation(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("thread transitioned",
		"id", t.ID,
		"status", t.Status,
		"stage", t.Stage,
		"event", eventType,
	)
	return &t, nil
}

// projectMutation computes the thread state the mutation produces.
func projectMutation(current *Thread, m Mutation) Thread {
	next := *current

	if m.Status != nil {
		next.Status = *m.Status
	}
	if m.Stage != nil {
		next.Stage = *m.Stage
	}
	if m.ClearPendingReview {
		next.PendingReview = nil
	}
	if m.PendingReview != nil {
		next.PendingReview = m.PendingReview
	}
	if m.ClearHumanDecision {
		next.HumanDecision = nil
		next.HumanFeedback = nil
	}
	if m.HumanDecision != nil {
		next.HumanDecision = m.HumanDecision
	}
	if m.HumanFeedback != nil {
		next.HumanFeedback = m.HumanFeedback
	}
	if m.FinalResponse != nil {
		next.FinalResponse = m.FinalResponse
	}
	if m.ErrorDetail != nil {
		next.ErrorDetail = m.ErrorDetail
	}

	return next
}

func findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Thread, error) {
	stmt := fmt.Sprintf(`
		SELECT %s FROM orchestrator_threads WHERE id = $1 FOR UPDATE`, threadColumns)

	t, err := repository.QueryOne(ctx, tx, stmt, []any{id}, scanThread)
	if err != nil {
		return Thread{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return t, nil
}

func ptr(s string) *string {
	return &s
}
