package rules

import (
	"context"

	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// System defines the public contract for rule domain operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Rule], error)

	Find(ctx context.Context, ruleID string) (*Rule, error)

	// Active returns all rules currently eligible for scanning.
	Active(ctx context.Context) ([]Rule, error)

	Create(ctx context.Context, cmd CreateCommand) (*Rule, error)

	// Activate promotes a DRAFT rule to ACTIVE.
	Activate(ctx context.Context, ruleID, actor string) (*Rule, error)

	// Deprecate retires a rule, optionally pointing at its replacement.
	// Rejects a superseded_by chain that would form a cycle.
	Deprecate(ctx context.Context, cmd DeprecateCommand) (*Rule, error)

	// Supersede inserts the replacement rule and deprecates the old one in
	// a single transaction, linking them through superseded_by.
	Supersede(ctx context.Context, oldRuleID string, cmd CreateCommand) (*Rule, error)

	// Delete removes a rule with zero references. Rules referenced by any
	// violation or finding are restricted; deprecation is the only
	// permitted lifecycle transition for an in-use rule.
	Delete(ctx context.Context, ruleID, actor string) error
}
