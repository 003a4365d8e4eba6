package ingestions

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
	"github.com/sentinel-compliance/sentinel/pkg/query"
	"github.com/sentinel-compliance/sentinel/pkg/repository"
	"github.com/sentinel-compliance/sentinel/pkg/storage"
)

const jobColumns = "id, job_id, thread_id, source_doc, content_type, size_bytes, page_count, storage_key, status, candidate_spans, rules_decomposed, rules_approved, rules_rejected, error_detail, created_at, updated_at"

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an ingestion job repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "ingestions"),
		pagination: pagination,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SourceDoc", "JobID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count ingestion jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	jobs, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query ingestion jobs: %w", err)
	}

	result := pagination.NewPageResult(jobs, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *repo) FindByJobID(ctx context.Context, jobID string) (*Job, error) {
	q, args := query.NewBuilder(projection).BuildSingle("JobID", jobID)

	j, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Job, error) {
	if cmd.SourceDoc == "" {
		return nil, faults.Validation("source_doc", "required")
	}
	if len(cmd.Data) == 0 {
		return nil, faults.Validation("data", "document is empty")
	}

	id := uuid.New()
	jobID := buildJobID(id)
	key := buildStorageKey(jobID, sanitizeFilename(cmd.SourceDoc))

	if err := r.storage.Upload(ctx, key, bytes.NewReader(cmd.Data), cmd.ContentType); err != nil {
		return nil, fmt.Errorf("upload source document: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO pdf_ingestion_jobs(id, job_id, source_doc, content_type, size_bytes, page_count, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s`, jobColumns)

	args := []any{
		id,
		jobID,
		cmd.SourceDoc,
		cmd.ContentType,
		int64(len(cmd.Data)),
		cmd.PageCount,
		key,
	}

	j, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Job, error) {
		j, err := repository.QueryOne(ctx, tx, stmt, args, scanJob)
		if err != nil {
			return Job{}, err
		}

		entityID := j.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  audit.EventJobCreated,
			EntityType: ptr("ingestion_job"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"job_id":     j.JobID,
				"source_doc": j.SourceDoc,
				"size_bytes": j.SizeBytes,
			},
		})
		return j, err
	})

	if err != nil {
		if delErr := r.storage.Delete(ctx, key); delErr != nil {
			r.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("ingestion job created", "id", j.ID, "job_id", j.JobID, "source_doc", j.SourceDoc)
	return &j, nil
}

func (r *repo) Transition(ctx context.Context, cmd TransitionCommand) (*Job, error) {
	j, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Job, error) {
		current, err := findForUpdate(ctx, tx, cmd.ID)
		if err != nil {
			return Job{}, err
		}

		if err := guardTransition(cmd.ID, current.Status, cmd.Status); err != nil {
			return Job{}, err
		}

		stmt := fmt.Sprintf(`
			UPDATE pdf_ingestion_jobs
			SET status = $1, error_detail = $2, updated_at = now()
			WHERE id = $3
			RETURNING %s`, jobColumns)

		j, err := repository.QueryOne(ctx, tx, stmt, []any{cmd.Status, cmd.ErrorDetail, cmd.ID}, scanJob)
		if err != nil {
			return Job{}, err
		}

		eventType := audit.EventJobTransition
		if cmd.Status == StatusFailed {
			eventType = audit.EventJobFailed
		}

		entityID := j.ID.String()
		_, err = audit.Append(ctx, tx, audit.Event{
			EventType:  eventType,
			EntityType: ptr("ingestion_job"),
			EntityID:   &entityID,
			Actor:      cmd.Actor,
			Detail: map[string]any{
				"from": current.Status,
				"to":   j.Status,
			},
		})
		return j, err
	})

	if err != nil {
		if faults.IsInvalidState(err) {
			return nil, err
		}
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("ingestion job transitioned", "id", j.ID, "status", j.Status)
	return &j, nil
}

func (r *repo) SetCounts(ctx context.Context, id uuid.UUID, update CountsUpdate) (*Job, error) {
	stmt := fmt.Sprintf(`
		UPDATE pdf_ingestion_jobs
		SET candidate_spans = COALESCE($1, candidate_spans),
		    rules_decomposed = COALESCE($2, rules_decomposed),
		    rules_approved = COALESCE($3, rules_approved),
		    rules_rejected = COALESCE($4, rules_rejected),
		    updated_at = now()
		WHERE id = $5
		RETURNING %s`, jobColumns)

	args := []any{
		update.CandidateSpans,
		update.RulesDecomposed,
		update.RulesApproved,
		update.RulesRejected,
		id,
	}

	j, err := repository.QueryOne(ctx, r.db, stmt, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &j, nil
}

func (r *repo) AttachThread(ctx context.Context, id uuid.UUID, threadID uuid.UUID) error {
	err := repository.ExecExpectOne(
		ctx, r.db,
		"UPDATE pdf_ingestion_jobs SET thread_id = $1, updated_at = now() WHERE id = $2",
		threadID, id,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return nil
}

func findForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (Job, error) {
	stmt := fmt.Sprintf(`
		SELECT %s FROM pdf_ingestion_jobs WHERE id = $1 FOR UPDATE`, jobColumns)

	j, err := repository.QueryOne(ctx, tx, stmt, []any{id}, scanJob)
	if err != nil {
		return Job{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return j, nil
}

func buildJobID(id uuid.UUID) string {
	return "job-" + strings.ReplaceAll(id.String(), "-", "")[:12]
}

func buildStorageKey(jobID, filename string) string {
	return fmt.Sprintf("documents/%s/%s", jobID, filename)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "" {
		name = "document"
	}
	return url.PathEscape(name)
}

func ptr(s string) *string {
	return &s
}
