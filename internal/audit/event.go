// Package audit implements the append-only audit log. Events are written
// once and never touched again: the public surface exposes no update or
// delete operation at all, and the database schema installs rules that
// reject mutation even from raw SQL.
package audit

import "time"

// Event is an immutable record of a system or human action.
type Event struct {
	ID           int64          `json:"id"`
	EventType    string         `json:"event_type"`
	EntityType   *string        `json:"entity_type,omitempty"`
	EntityID     *string        `json:"entity_id,omitempty"`
	Actor        string         `json:"actor"`
	Detail       map[string]any `json:"detail,omitempty"`
	CheckpointID *string        `json:"checkpoint_id,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Event types recorded by the orchestration engine and domain systems.
// Failure variants carry the error detail in the event payload.
const (
	EventThreadCreated     = "THREAD_CREATED"
	EventStageCompleted    = "STAGE_COMPLETED"
	EventStageFailed       = "STAGE_FAILED"
	EventThreadInterrupted = "THREAD_INTERRUPTED"
	EventThreadResumed     = "THREAD_RESUMED"
	EventThreadCompleted   = "THREAD_COMPLETED"
	EventThreadFailed      = "THREAD_FAILED"
	EventThreadCancelled   = "THREAD_CANCELLED"

	EventRuleCreated    = "RULE_CREATED"
	EventRuleActivated  = "RULE_ACTIVATED"
	EventRuleDeprecated = "RULE_DEPRECATED"
	EventRuleSuperseded = "RULE_SUPERSEDED"
	EventRuleDeleted    = "RULE_DELETED"

	EventConnectionCreated   = "CONNECTION_CREATED"
	EventConnectionDeleted   = "CONNECTION_DELETED"
	EventSchemaMapClassified = "SCHEMA_MAP_CLASSIFIED"

	EventViolationDetected = "VIOLATION_DETECTED"
	EventViolationResolved = "VIOLATION_RESOLVED"
	EventViolationReopened = "VIOLATION_REOPENED"

	EventFindingCreated   = "FINDING_CREATED"
	EventFindingDismissed = "FINDING_DISMISSED"

	EventPlanCreated    = "REMEDIATION_PLAN_CREATED"
	EventPlanTransition = "REMEDIATION_PLAN_TRANSITION"
	EventPlanFailed     = "REMEDIATION_PLAN_FAILED"
	EventPlanRollback   = "REMEDIATION_PLAN_ROLLBACK"

	EventJobCreated    = "INGESTION_JOB_CREATED"
	EventJobTransition = "INGESTION_JOB_TRANSITION"
	EventJobFailed     = "INGESTION_JOB_FAILED"
)

// ActorSystem is the actor recorded for engine-initiated transitions.
const ActorSystem = "system"
