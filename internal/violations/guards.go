package violations

import (
	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/pkg/faults"
)

var severities = map[Severity]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

var resolvedStatuses = map[Status]struct{}{
	StatusRemediated:    {},
	StatusAcceptedRisk:  {},
	StatusFalsePositive: {},
}

func validateCreate(cmd CreateCommand) error {
	if cmd.ConnectionID == uuid.Nil {
		return faults.Validation("connection_id", "required")
	}
	if cmd.RuleID == "" {
		return faults.Validation("rule_id", "required")
	}
	if cmd.TableName == "" {
		return faults.Validation("table_name", "required")
	}
	if cmd.ConditionMatched == "" {
		return faults.Validation("condition_matched", "required")
	}
	if _, ok := severities[cmd.Severity]; !ok {
		return faults.Validation("severity", "must be LOW, MEDIUM, HIGH, or CRITICAL")
	}
	return nil
}

// guardResolve checks that a violation may leave OPEN for the requested
// status with complete resolution metadata.
func guardResolve(current Status, cmd ResolveCommand) error {
	if _, ok := resolvedStatuses[cmd.Status]; !ok {
		return faults.Validation("status", "must be REMEDIATED, ACCEPTED_RISK, or FALSE_POSITIVE")
	}
	if cmd.ResolvedBy == "" {
		return faults.Validation("resolved_by", "required when leaving OPEN")
	}
	if current != StatusOpen {
		return faults.InvalidState("violation", cmd.ID.String(), string(current), string(cmd.Status))
	}
	return nil
}

// guardReopen checks that a violation may return to OPEN.
func guardReopen(v *Violation) error {
	if v.Status == StatusOpen {
		return faults.InvalidState("violation", v.ID.String(), string(v.Status), string(StatusOpen))
	}
	return nil
}
