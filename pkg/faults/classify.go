package faults

import (
	"errors"
	"net/http"
)

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsReference reports whether err is a ReferentialIntegrityError.
func IsReference(err error) bool {
	var target *ReferentialIntegrityError
	return errors.As(err, &target)
}

// IsStageTimeout reports whether err is a StageTimeoutError.
func IsStageTimeout(err error) bool {
	var target *StageTimeoutError
	return errors.As(err, &target)
}

// IsExecution reports whether err is an ExecutionError.
func IsExecution(err error) bool {
	var target *ExecutionError
	return errors.As(err, &target)
}

// MapHTTPStatus maps taxonomy errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsInvalidState(err):
		return http.StatusConflict
	case IsReference(err):
		return http.StatusConflict
	case IsStageTimeout(err):
		return http.StatusGatewayTimeout
	case IsExecution(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
