package engine

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Engine errors.
var (
	// ErrThreadBusy means another caller holds the thread's lease and
	// lease_wait is disabled.
	ErrThreadBusy = errors.New("thread busy")

	// ErrThreadTerminal means the thread already reached COMPLETED or
	// FAILED and cannot be cancelled.
	ErrThreadTerminal = errors.New("thread already terminal")

	// ErrUnknownWorkflow means no stage graph exists for the requested
	// workflow type.
	ErrUnknownWorkflow = errors.New("unknown workflow type")
)

// MapHTTPStatus maps engine errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrThreadBusy) || errors.Is(err, ErrThreadTerminal) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrUnknownWorkflow) {
		return http.StatusBadRequest
	}
	if errors.Is(err, threads.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, threads.ErrStale) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
