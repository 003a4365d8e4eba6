package connections

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Domain errors for connection operations.
var (
	ErrNotFound  = errors.New("connection not found")
	ErrDuplicate = errors.New("connection already exists")
)

// MapHTTPStatus maps connection domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
