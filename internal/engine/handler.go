package engine

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/pkg/handlers"
	"github.com/sentinel-compliance/sentinel/pkg/routes"
)

// Handler exposes the orchestrator over HTTP. These are the only routes
// that mutate threads; the threads handler is read-only.
type Handler struct {
	engine *Engine
	logger *slog.Logger
}

// RunRequest starts a new thread and drives it until it interrupts,
// completes, or fails.
type RunRequest struct {
	WorkflowType threads.WorkflowType `json:"workflow_type"`
	Input        map[string]any       `json:"input,omitempty"`
	UserMessage  *string              `json:"user_message,omitempty"`
	Actor        string               `json:"actor,omitempty"`
}

// ResumeRequest carries a human decision back into an interrupted thread.
type ResumeRequest struct {
	Decision string  `json:"decision"`
	Feedback *string `json:"feedback,omitempty"`
}

// RollbackRequest names the actor undoing an executed plan.
type RollbackRequest struct {
	Actor string `json:"actor,omitempty"`
}

// NewHandler creates a Handler backed by the given engine.
func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{
		engine: engine,
		logger: logger.With("handler", "orchestrator"),
	}
}

// Routes returns the route group definition for orchestrator endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/orchestrator",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/run", Handler: h.Run},
			{Method: "POST", Pattern: "/advance/{id}", Handler: h.Advance},
			{Method: "POST", Pattern: "/resume/{id}", Handler: h.Resume},
			{Method: "POST", Pattern: "/cancel/{id}", Handler: h.Cancel},
			{Method: "GET", Pattern: "/status/{id}", Handler: h.Status},
			{Method: "POST", Pattern: "/rollback/{planId}", Handler: h.Rollback},
		},
	}
}

// Run creates a thread for the requested workflow and advances it to
// quiescence before responding with the resulting snapshot.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.CreateThread(r.Context(), threads.CreateCommand{
		WorkflowType: req.WorkflowType,
		Input:        req.Input,
		UserMessage:  req.UserMessage,
		Actor:        req.Actor,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	t, err = h.engine.Advance(r.Context(), t.ID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, t)
}

// Advance re-drives an existing thread. Advancing an interrupted or
// terminal thread returns the unchanged snapshot.
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.Advance(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Resume applies a human decision to an interrupted thread and drives
// it forward.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var req ResumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.Resume(r.Context(), id, req.Decision, req.Feedback)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Cancel moves a thread to CANCELLED and fails its active remediation
// plans. Cancelling an already-cancelled thread is a no-op.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.Cancel(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Status returns the current thread snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	t, err := h.engine.GetThread(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Rollback applies a plan's rollback statements against the monitored
// database and reports per-statement results.
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	planID, err := uuid.Parse(r.PathValue("planId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	var req RollbackRequest
	if r.Body != nil {
		// Body is optional; a decode failure on an empty body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	report, err := h.engine.RollbackPlan(r.Context(), planID, req.Actor)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}
