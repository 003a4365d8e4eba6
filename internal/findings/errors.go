package findings

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Domain errors for finding operations.
var (
	ErrNotFound  = errors.New("finding not found")
	ErrDuplicate = errors.New("finding already exists")
)

// MapHTTPStatus maps finding domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
