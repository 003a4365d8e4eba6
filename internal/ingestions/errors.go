package ingestions

import (
	"errors"
	"net/http"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// Domain errors for ingestion job operations.
var (
	ErrNotFound     = errors.New("ingestion job not found")
	ErrDuplicate    = errors.New("ingestion job already exists")
	ErrFileTooLarge = errors.New("file exceeds maximum upload size")
	ErrInvalidFile  = errors.New("invalid file")
)

// MapHTTPStatus maps ingestion domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrInvalidFile) {
		return http.StatusBadRequest
	}
	return faults.MapHTTPStatus(err)
}
