package ingestions

import (
	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// transitions is the strictly forward lifecycle of an ingestion job.
// AWAITING_REVIEW is only reachable from DECOMPOSING; a job with no
// drafts needing review skips straight to COMPLETED.
var transitions = map[Status][]Status{
	StatusQueued:         {StatusExtracting, StatusFailed},
	StatusExtracting:     {StatusDecomposing, StatusFailed},
	StatusDecomposing:    {StatusAwaitingReview, StatusCompleted, StatusFailed},
	StatusAwaitingReview: {StatusCompleted, StatusFailed},
}

// Terminal reports whether no further transitions exist from s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func guardTransition(id uuid.UUID, from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return faults.InvalidState("ingestion_job", id.String(), string(from), string(to))
}
