package faults_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

func TestClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", faults.Validation("name", "required"), faults.IsValidation},
		{"invalid state", faults.InvalidState("thread", "t1", "COMPLETED", "resume"), faults.IsInvalidState},
		{"reference", faults.Reference("violation", "R-001", "rule does not exist"), faults.IsReference},
		{"stage timeout", faults.StageTimeout("scan", time.Minute), faults.IsStageTimeout},
		{"execution", faults.Execution("UPDATE users", "syntax error"), faults.IsExecution},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("classifier did not match %v", tt.err)
			}
		})
	}
}

func TestClassifiersRejectOtherCategories(t *testing.T) {
	if faults.IsValidation(faults.Execution("stmt", "boom")) {
		t.Error("IsValidation matched an execution error")
	}
	if faults.IsStageTimeout(errors.New("plain")) {
		t.Error("IsStageTimeout matched a plain error")
	}
}

func TestClassifiersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("create violation: %w", faults.Reference("violation", "R-001", "missing rule"))
	if !faults.IsReference(wrapped) {
		t.Error("IsReference did not match wrapped error")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", faults.Validation("field", "bad"), http.StatusBadRequest},
		{"invalid state", faults.InvalidState("plan", "p1", "REJECTED", "execute"), http.StatusConflict},
		{"reference", faults.Reference("finding", "R-2", "restricted"), http.StatusConflict},
		{"stage timeout", faults.StageTimeout("ingest", 5*time.Minute), http.StatusGatewayTimeout},
		{"execution", faults.Execution("stmt", "failed"), http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := faults.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
