// Package engine implements the workflow state machine: it drives
// durable threads through fixed per-workflow stage graphs, suspends and
// resumes them at human-review gates, and serializes access per thread
// through a lease.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Options controls engine concurrency behavior.
type Options struct {
	// LeaseWait selects blocking acquisition of a busy thread's lease.
	// When false, concurrent calls on the same thread fail fast with
	// ErrThreadBusy.
	LeaseWait bool

	// StageTimeout bounds each stage handler invocation. A stage that
	// exceeds it fails with a stage timeout and the thread transitions
	// to FAILED.
	StageTimeout time.Duration
}

// Engine drives workflow threads. Distinct threads advance in
// parallel; operations on the same thread serialize through the lease.
type Engine struct {
	rt    *Runtime
	opts  Options
	lease *keyedLease
}

// New creates an Engine and validates the stage graphs.
func New(rt *Runtime, opts Options) (*Engine, error) {
	if err := validateGraphs(); err != nil {
		return nil, err
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 5 * time.Minute
	}

	return &Engine{
		rt:    rt,
		opts:  opts,
		lease: newKeyedLease(),
	}, nil
}

// CreateThread starts a new thread for the workflow type at its
// graph's initial stage. The thread is persisted RUNNING; call Advance
// to drive it.
func (e *Engine) CreateThread(ctx context.Context, cmd threads.CreateCommand) (*threads.Thread, error) {
	g, ok := graphs[cmd.WorkflowType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, cmd.WorkflowType)
	}

	cmd.Stage = g.initial
	return e.rt.Threads.Create(ctx, cmd)
}

// GetThread returns the current thread snapshot.
func (e *Engine) GetThread(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	return e.rt.Threads.Find(ctx, id)
}

// Advance drives the thread through its stage graph until it
// interrupts, completes, fails, or is already quiescent. Calling
// Advance on an interrupted or terminal thread returns the unchanged
// snapshot.
func (e *Engine) Advance(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	release, err := e.lease.Acquire(ctx, id, e.opts.LeaseWait)
	if err != nil {
		return nil, err
	}
	defer release()

	return e.drive(ctx, id)
}

// Interrupt suspends a RUNNING thread with the given review payload.
// Stage handlers normally interrupt through their outcome; this entry
// point serves external callers.
func (e *Engine) Interrupt(ctx context.Context, id uuid.UUID, review threads.ReviewRequest) (*threads.Thread, error) {
	release, err := e.lease.Acquire(ctx, id, e.opts.LeaseWait)
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := e.rt.Threads.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != threads.StatusRunning {
		return nil, faults.InvalidState("thread", id.String(), string(t.Status), string(threads.StatusInterrupted))
	}

	status := threads.StatusInterrupted
	return e.rt.Threads.Transition(ctx, id, t.Version, threads.Mutation{
		Status:        &status,
		PendingReview: &review,
	}, audit.EventThreadInterrupted, audit.ActorSystem, map[string]any{
		"review_type": review.ReviewType,
		"stage":       t.Stage,
	})
}

// Resume validates the human decision, records it, clears the pending
// review, and re-enters the stage graph. A thread not in INTERRUPTED
// fails with an invalid-state error and no mutation; an invalid
// decision fails with a validation error and no mutation.
func (e *Engine) Resume(ctx context.Context, id uuid.UUID, decision string, feedback *string) (*threads.Thread, error) {
	release, err := e.lease.Acquire(ctx, id, e.opts.LeaseWait)
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := e.rt.Threads.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != threads.StatusInterrupted {
		return nil, faults.InvalidState("thread", id.String(), string(t.Status), string(threads.StatusRunning))
	}
	if _, ok := allowedDecisions[t.WorkflowType][decision]; !ok {
		return nil, faults.Validation("decision", fmt.Sprintf("%q not allowed for %s", decision, t.WorkflowType))
	}

	status := threads.StatusRunning
	t, err = e.rt.Threads.Transition(ctx, id, t.Version, threads.Mutation{
		Status:             &status,
		ClearPendingReview: true,
		HumanDecision:      &decision,
		HumanFeedback:      feedback,
	}, audit.EventThreadResumed, audit.ActorSystem, map[string]any{
		"decision": decision,
		"stage":    t.Stage,
	})
	if err != nil {
		return nil, err
	}

	return e.drive(ctx, id)
}

// Cancel transitions a RUNNING or INTERRUPTED thread to CANCELLED and
// fails its in-flight remediation plans. Cancelling a CANCELLED thread
// is a no-op; COMPLETED and FAILED return ErrThreadTerminal.
func (e *Engine) Cancel(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	release, err := e.lease.Acquire(ctx, id, e.opts.LeaseWait)
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := e.rt.Threads.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch t.Status {
	case threads.StatusCancelled:
		return t, nil
	case threads.StatusCompleted, threads.StatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrThreadTerminal, t.Status)
	}

	status := threads.StatusCancelled
	t, err = e.rt.Threads.Transition(ctx, id, t.Version, threads.Mutation{
		Status:             &status,
		ClearPendingReview: true,
	}, audit.EventThreadCancelled, audit.ActorSystem, map[string]any{
		"stage": t.Stage,
	})
	if err != nil {
		return nil, err
	}

	if _, err := e.rt.Plans.FailActiveForThread(ctx, id, audit.ActorSystem); err != nil {
		return nil, fmt.Errorf("fail plans for cancelled thread: %w", err)
	}

	return t, nil
}

// drive runs stages until the thread leaves RUNNING. The caller must
// hold the thread's lease.
func (e *Engine) drive(ctx context.Context, id uuid.UUID) (*threads.Thread, error) {
	for {
		t, err := e.rt.Threads.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.Status != threads.StatusRunning {
			return t, nil
		}

		g := graphs[t.WorkflowType]
		spec, ok := g.stages[t.Stage]
		if !ok {
			return e.failThread(ctx, t, faults.Execution(t.Stage, "stage not defined for workflow"))
		}

		// Persist the checkpoint marker before the handler runs so a
		// crash resumes at the executing stage.
		t, err = e.rt.Threads.Checkpoint(ctx, id, t.Stage, t.Version)
		if err != nil {
			return nil, err
		}

		outcome, err := e.runStage(ctx, spec, t)
		if err != nil {
			return e.failThread(ctx, t, err)
		}

		t, err = e.applyOutcome(ctx, t, spec, outcome)
		if err != nil {
			return nil, err
		}
		if t.Status != threads.StatusRunning {
			return t, nil
		}
	}
}

// runStage invokes the handler under the per-stage timeout.
func (e *Engine) runStage(ctx context.Context, spec stageSpec, t *threads.Thread) (StageOutcome, error) {
	hctx, cancel := context.WithTimeout(ctx, e.opts.StageTimeout)
	defer cancel()

	outcome, err := spec.handler(hctx, e.rt, t)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return StageOutcome{}, faults.StageTimeout(t.Stage, e.opts.StageTimeout)
		}
		return StageOutcome{}, err
	}
	return outcome, nil
}

func (e *Engine) applyOutcome(
	ctx context.Context,
	t *threads.Thread,
	spec stageSpec,
	outcome StageOutcome,
) (*threads.Thread, error) {
	switch {
	case outcome.Interrupt != nil:
		status := threads.StatusInterrupted
		return e.rt.Threads.Transition(ctx, t.ID, t.Version, threads.Mutation{
			Status:        &status,
			PendingReview: outcome.Interrupt,
		}, audit.EventThreadInterrupted, audit.ActorSystem, map[string]any{
			"stage":       t.Stage,
			"review_type": outcome.Interrupt.ReviewType,
		})

	case outcome.Complete:
		status := threads.StatusCompleted
		return e.rt.Threads.Transition(ctx, t.ID, t.Version, threads.Mutation{
			Status:             &status,
			ClearHumanDecision: outcome.ClearDecision,
			FinalResponse:      outcome.FinalResponse,
		}, audit.EventThreadCompleted, audit.ActorSystem, mergeDetail(outcome.Detail, map[string]any{
			"stage": t.Stage,
		}))

	default:
		next := outcome.Next
		if next == "" {
			next = spec.next
		}
		if next == "" {
			// Graph exhausted without an explicit completion.
			status := threads.StatusCompleted
			return e.rt.Threads.Transition(ctx, t.ID, t.Version, threads.Mutation{
				Status:             &status,
				ClearHumanDecision: outcome.ClearDecision,
				FinalResponse:      outcome.FinalResponse,
			}, audit.EventThreadCompleted, audit.ActorSystem, mergeDetail(outcome.Detail, map[string]any{
				"stage": t.Stage,
			}))
		}

		return e.rt.Threads.Transition(ctx, t.ID, t.Version, threads.Mutation{
			Stage:              &next,
			ClearHumanDecision: outcome.ClearDecision,
		}, audit.EventStageCompleted, audit.ActorSystem, mergeDetail(outcome.Detail, map[string]any{
			"stage": t.Stage,
			"next":  next,
		}))
	}
}

// failThread records the stage failure and moves the thread to FAILED.
// The failure is reported through the thread's error_detail, not as an
// error return; callers receive the FAILED snapshot.
func (e *Engine) failThread(ctx context.Context, t *threads.Thread, cause error) (*threads.Thread, error) {
	status := threads.StatusFailed
	detail := cause.Error()

	failed, err := e.rt.Threads.Transition(ctx, t.ID, t.Version, threads.Mutation{
		Status:             &status,
		ClearPendingReview: true,
		ErrorDetail:        &detail,
	}, audit.EventStageFailed, audit.ActorSystem, map[string]any{
		"stage": t.Stage,
		"error": detail,
	})
	if err != nil {
		return nil, errors.Join(cause, err)
	}

	e.rt.Logger.Error("stage failed",
		"thread_id", t.ID,
		"stage", t.Stage,
		"error", cause,
	)
	return failed, nil
}

func mergeDetail(detail, base map[string]any) map[string]any {
	if detail == nil {
		return base
	}
	for k, v := range base {
		if _, ok := detail[k]; !ok {
			detail[k] = v
		}
	}
	return detail
}
