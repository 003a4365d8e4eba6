package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/findings"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

const scanConcurrency = 4

// staleRuleAge marks rules whose effective date predates this horizon.
const staleRuleAge = 5 * 365 * 24 * time.Hour

// runScan evaluates the active rule set against one connection's schema
// map, emitting coverage findings and detected violations. Rules are
// evaluated concurrently.
func runScan(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	connID, err := inputUUID(t, "connection_id")
	if err != nil {
		return StageOutcome{}, err
	}

	conn, err := rt.Connections.Find(ctx, connID)
	if err != nil {
		return StageOutcome{}, err
	}

	connStr, err := rt.Connections.ConnectionString(ctx, connID)
	if err != nil {
		return StageOutcome{}, err
	}

	schemaMap := conn.SchemaMap
	if schemaMap == nil {
		schemaMap, err = rt.Scanner.Classify(ctx, connStr)
		if err != nil || len(schemaMap) == 0 {
			if _, ferr := rt.Findings.Create(ctx, findings.CreateCommand{
				ThreadID:     t.ID,
				ConnectionID: connID,
				FindingType:  findings.MissingSchemaMap,
				Description:  fmt.Sprintf("connection %s has no classified schema map", conn.Name),
				Actor:        audit.ActorSystem,
			}); ferr != nil {
				return StageOutcome{}, ferr
			}
			return StageOutcome{Detail: map[string]any{"findings": 1, "schema_mapped": false}}, nil
		}
		if _, err := rt.Connections.SetSchemaMap(ctx, connID, schemaMap, audit.ActorSystem); err != nil {
			return StageOutcome{}, err
		}
	}

	active, err := rt.Rules.Active(ctx)
	if err != nil {
		return StageOutcome{}, err
	}

	var (
		mu           sync.Mutex
		findingCount int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)

	for _, rule := range active {
		g.Go(func() error {
			ft, desc, gap := evaluateCoverage(rule, schemaMap)
			if !gap {
				return nil
			}

			ruleID := rule.RuleID
			if _, err := rt.Findings.Create(gctx, findings.CreateCommand{
				ThreadID:     t.ID,
				ConnectionID: connID,
				RuleID:       &ruleID,
				FindingType:  ft,
				Description:  desc,
				Actor:        audit.ActorSystem,
			}); err != nil {
				return err
			}

			mu.Lock()
			findingCount++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return StageOutcome{}, err
	}

	detected, err := detectViolations(ctx, rt, t.ID, connID, connStr, active)
	if err != nil {
		return StageOutcome{}, err
	}

	if err := rt.Connections.TouchScanned(ctx, connID, time.Now().UTC()); err != nil {
		return StageOutcome{}, err
	}

	return StageOutcome{Detail: map[string]any{
		"rules_evaluated": len(active),
		"findings":        findingCount,
		"violations":      detected,
	}}, nil
}

// runConfirm gates scan findings behind human confirmation. confirm_gap
// keeps them; dismiss marks every finding dismissed.
func runConfirm(ctx context.Context, rt *Runtime, t *threads.Thread) (StageOutcome, error) {
	open, err := openFindings(ctx, rt, t.ID)
	if err != nil {
		return StageOutcome{}, err
	}

	if len(open) == 0 {
		return StageOutcome{Complete: true, ClearDecision: true, Detail: map[string]any{"findings": 0}}, nil
	}

	if t.HumanDecision == nil {
		return StageOutcome{Interrupt: buildGapReview(open)}, nil
	}

	decision := *t.HumanDecision
	switch decision {
	case "confirm_gap":
		// Confirmed findings stay active for follow-up work.
	case "dismiss":
		for _, f := range open {
			if _, err := rt.Findings.Dismiss(ctx, f.ID, audit.ActorSystem); err != nil {
				return StageOutcome{}, err
			}
		}
	default:
		return StageOutcome{}, faults.Validation("decision", fmt.Sprintf("%q not allowed for policy review", decision))
	}

	return StageOutcome{
		Complete:      true,
		ClearDecision: true,
		Detail: map[string]any{
			"decision": decision,
			"findings": len(open),
		},
	}, nil
}

func openFindings(ctx context.Context, rt *Runtime, threadID uuid.UUID) ([]findings.Finding, error) {
	tid := threadID.String()
	dismissed := false
	page := pagination.PageRequest{Page: 1, PageSize: 200}

	result, err := rt.Findings.List(ctx, page, findings.Filters{
		ThreadID:  &tid,
		Dismissed: &dismissed,
	})
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	return result.Data, nil
}

func buildGapReview(open []findings.Finding) *threads.ReviewRequest {
	ids := make([]string, len(open))
	for i, f := range open {
		ids[i] = f.ID.String()
	}

	return &threads.ReviewRequest{
		ReviewType:  "policy_gap_confirmation",
		Title:       fmt.Sprintf("Confirm %d policy finding(s)", len(open)),
		Description: "Policy review detected coverage gaps that need confirmation before they are reported.",
		Data: map[string]any{
			"finding_ids": ids,
		},
		Options: decisionOptions(threads.WorkflowPolicyReview),
	}
}

// evaluateCoverage checks one rule against the schema map: a stale
// effective date beats coverage checks, then scope categories absent
// from the classified columns signal full or partial gaps.
func evaluateCoverage(rule rules.Rule, schemaMap collaborators.SchemaMap) (findings.FindingType, string, bool) {
	if time.Since(rule.EffectiveDate) > staleRuleAge {
		return findings.StaleRule,
			fmt.Sprintf("rule %s effective date %s predates the staleness horizon", rule.RuleID, rule.EffectiveDate.Format("2006-01-02")),
			true
	}

	if len(rule.DataSubjectScope) == 0 {
		return "", "", false
	}

	categories := make(map[string]struct{})
	for _, columns := range schemaMap {
		for _, category := range columns {
			categories[category] = struct{}{}
		}
	}

	missing := 0
	for _, scope := range rule.DataSubjectScope {
		if _, ok := categories[scope]; !ok {
			missing++
		}
	}

	switch {
	case missing == len(rule.DataSubjectScope):
		return findings.CoverageGap,
			fmt.Sprintf("rule %s: no classified columns cover its data subject scope", rule.RuleID),
			true
	case missing > 0:
		return findings.PartialCoverage,
			fmt.Sprintf("rule %s: %d of %d scope categories lack classified columns", rule.RuleID, missing, len(rule.DataSubjectScope)),
			true
	}
	return "", "", false
}

func detectViolations(
	ctx context.Context,
	rt *Runtime,
	threadID, connID uuid.UUID,
	connStr string,
	active []rules.Rule,
) (int, error) {
	refs := make([]collaborators.RuleRef, len(active))
	for i, rule := range active {
		conditions := make([]string, len(rule.ViolationConditions))
		for j, c := range rule.ViolationConditions {
			conditions[j] = c.Expression
		}
		refs[i] = collaborators.RuleRef{RuleID: rule.RuleID, Conditions: conditions}
	}

	drafts, err := rt.Scanner.DetectViolations(ctx, connStr, refs)
	if err != nil {
		return 0, fmt.Errorf("detect violations: %w", err)
	}

	for _, draft := range drafts {
		cmd := violations.CreateCommand{
			ThreadID:         &threadID,
			ConnectionID:     connID,
			RuleID:           draft.RuleID,
			TableName:        draft.TableName,
			ConditionMatched: draft.ConditionMatched,
			Severity:         violations.Severity(draft.Severity),
			Evidence:         draft.Evidence,
			Actor:            audit.ActorSystem,
		}
		if draft.ColumnName != "" {
			col := draft.ColumnName
			cmd.ColumnName = &col
		}
		if _, err := rt.Violations.Create(ctx, cmd); err != nil {
			return 0, err
		}
	}
	return len(drafts), nil
}

func inputUUID(t *threads.Thread, key string) (uuid.UUID, error) {
	raw, _ := t.Input[key].(string)
	if raw == "" {
		return uuid.Nil, faults.Validation(key, "required in thread input")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, faults.Validation(key, "must be a UUID")
	}
	return id, nil
}
