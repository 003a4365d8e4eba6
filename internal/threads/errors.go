package threads

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Domain errors for thread operations.
var (
	ErrNotFound  = errors.New("thread not found")
	ErrDuplicate = errors.New("thread already exists")

	// ErrStale means the thread row changed underneath an optimistic
	// update. The engine's lease makes this rare; it signals a writer
	// outside the lease.
	ErrStale = errors.New("thread version conflict")
)

// MapHTTPStatus maps thread domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrStale) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
