package ingestions

import (
	"testing"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

func TestGuardTransition(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"queued to extracting", StatusQueued, StatusExtracting, false},
		{"extracting to decomposing", StatusExtracting, StatusDecomposing, false},
		{"decomposing to review", StatusDecomposing, StatusAwaitingReview, false},
		{"decomposing skips review", StatusDecomposing, StatusCompleted, false},
		{"review to completed", StatusAwaitingReview, StatusCompleted, false},
		{"any stage can fail", StatusExtracting, StatusFailed, false},
		{"review only from decomposing", StatusQueued, StatusAwaitingReview, true},
		{"extracting cannot skip", StatusExtracting, StatusAwaitingReview, true},
		{"no backward", StatusDecomposing, StatusExtracting, true},
		{"completed is terminal", StatusCompleted, StatusFailed, true},
		{"failed is terminal", StatusFailed, StatusQueued, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guardTransition(id, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("guardTransition(%s -> %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
			if err != nil && !faults.IsInvalidState(err) {
				t.Errorf("expected invalid state error, got %v", err)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusExtracting, StatusDecomposing, StatusAwaitingReview} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
}
