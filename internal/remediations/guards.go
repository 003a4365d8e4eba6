package remediations

import (
	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

// transitions is the forward-only lifecycle of a plan. A status absent
// from the map is terminal.
var transitions = map[Status][]Status{
	StatusProposed: {StatusApproved, StatusRejected},
	StatusApproved: {StatusExecuted, StatusFailed},
	StatusExecuted: {StatusVerified, StatusFailed},
}

var riskLevels = map[RiskLevel]struct{}{
	RiskLow:      {},
	RiskMedium:   {},
	RiskHigh:     {},
	RiskCritical: {},
}

// Terminal reports whether no further transitions exist from s.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

// guardTransition rejects transitions that skip a required predecessor
// or leave a terminal status.
func guardTransition(id uuid.UUID, from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return faults.InvalidState("remediation_plan", id.String(), string(from), string(to))
}

func validateCreate(cmd CreateCommand) error {
	if cmd.ThreadID == uuid.Nil {
		return faults.Validation("thread_id", "required")
	}
	if cmd.ViolationID == uuid.Nil {
		return faults.Validation("violation_id", "required")
	}
	if len(cmd.Statements) == 0 {
		return faults.Validation("statements", "at least one statement required")
	}
	if _, ok := riskLevels[cmd.RiskLevel]; !ok {
		return faults.Validation("risk_level", "must be LOW, MEDIUM, HIGH, or CRITICAL")
	}
	return nil
}
