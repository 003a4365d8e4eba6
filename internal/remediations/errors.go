package remediations

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Domain errors for remediation plan operations.
var (
	ErrNotFound  = errors.New("remediation plan not found")
	ErrDuplicate = errors.New("remediation plan already exists")
)

// MapHTTPStatus maps plan domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return faults.MapHTTPStatus(err)
}
