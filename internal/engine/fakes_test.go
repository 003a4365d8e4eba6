package engine

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/connections"
	"github.com/sentinel-compliance/sentinel/internal/findings"
	"github.com/sentinel-compliance/sentinel/internal/ingestions"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
	"github.com/sentinel-compliance/sentinel/pkg/faults"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// The fakes mirror the persistence contracts the engine depends on,
// including the thread invariants the repository enforces, so scenario
// tests exercise the same failure modes as the real stores.

type auditRecord struct {
	EventType string
	ThreadID  uuid.UUID
}

type fakeThreads struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*threads.Thread
	Events []auditRecord
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{byID: make(map[uuid.UUID]*threads.Thread)}
}

func (f *fakeThreads) Create(_ context.Context, cmd threads.CreateCommand) (*threads.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &threads.Thread{
		ID:           uuid.New(),
		WorkflowType: cmd.WorkflowType,
		Status:       threads.StatusRunning,
		Stage:        cmd.Stage,
		Input:        cmd.Input,
		UserMessage:  cmd.UserMessage,
		Actor:        cmd.Actor,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.byID[t.ID] = t
	f.Events = append(f.Events, auditRecord{EventType: "THREAD_CREATED", ThreadID: t.ID})
	return copyThread(t), nil
}

func (f *fakeThreads) Find(_ context.Context, id uuid.UUID) (*threads.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return nil, threads.ErrNotFound
	}
	return copyThread(t), nil
}

func (f *fakeThreads) Checkpoint(_ context.Context, id uuid.UUID, stage string, expectedVersion int) (*threads.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return nil, threads.ErrNotFound
	}
	if t.Version != expectedVersion {
		return nil, threads.ErrStale
	}
	t.Stage = stage
	t.Version++
	return copyThread(t), nil
}

func (f *fakeThreads) Transition(
	_ context.Context,
	id uuid.UUID,
	expectedVersion int,
	m threads.Mutation,
	eventType string,
	_ string,
	_ map[string]any,
) (*threads.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.byID[id]
	if !ok {
		return nil, threads.ErrNotFound
	}
	if t.Version != expectedVersion {
		return nil, threads.ErrStale
	}
	if t.Terminal() {
		return nil, faults.InvalidState("thread", id.String(), string(t.Status), "transition")
	}

	if m.Status != nil {
		t.Status = *m.Status
	}
	if m.Stage != nil {
		t.Stage = *m.Stage
	}
	if m.ClearPendingReview {
		t.PendingReview = nil
	}
	if m.PendingReview != nil {
		t.PendingReview = m.PendingReview
	}
	if m.ClearHumanDecision {
		t.HumanDecision = nil
		t.HumanFeedback = nil
	}
	if m.HumanDecision != nil {
		t.HumanDecision = m.HumanDecision
	}
	if m.HumanFeedback != nil {
		t.HumanFeedback = m.HumanFeedback
	}
	if m.FinalResponse != nil {
		t.FinalResponse = m.FinalResponse
	}
	if m.ErrorDetail != nil {
		t.ErrorDetail = m.ErrorDetail
	}

	if (t.Status == threads.StatusInterrupted) != (t.PendingReview != nil) {
		return nil, faults.Validation("pending_review", "must pair with INTERRUPTED")
	}

	t.Version++
	t.UpdatedAt = time.Now()
	if t.Terminal() {
		now := time.Now()
		t.CompletedAt = &now
	}

	f.Events = append(f.Events, auditRecord{EventType: eventType, ThreadID: id})
	return copyThread(t), nil
}

func copyThread(t *threads.Thread) *threads.Thread {
	clone := *t
	return &clone
}

type fakeRules struct {
	mu   sync.Mutex
	byID map[string]rules.Rule
}

func newFakeRules() *fakeRules {
	return &fakeRules{byID: make(map[string]rules.Rule)}
}

func (f *fakeRules) List(_ context.Context, page pagination.PageRequest, filters rules.Filters) (*pagination.PageResult[rules.Rule], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []rules.Rule
	for _, r := range f.byID {
		if filters.Status != nil && string(r.Status) != *filters.Status {
			continue
		}
		if filters.SourceDoc != nil && r.SourceDoc != *filters.SourceDoc {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].RuleID < matched[j].RuleID })

	result := pagination.NewPageResult(matched, len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (f *fakeRules) Active(_ context.Context) ([]rules.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var active []rules.Rule
	for _, r := range f.byID {
		if r.Status == rules.StatusActive {
			active = append(active, r)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].RuleID < active[j].RuleID })
	return active, nil
}

func (f *fakeRules) Create(_ context.Context, cmd rules.CreateCommand) (*rules.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status := cmd.Status
	if status == "" {
		status = rules.StatusActive
	}

	r := rules.Rule{
		RuleID:              cmd.RuleID,
		RuleText:            cmd.RuleText,
		SourceDoc:           cmd.SourceDoc,
		ArticleRef:          cmd.ArticleRef,
		Version:             1,
		Status:              status,
		ObligationType:      cmd.ObligationType,
		DataSubjectScope:    cmd.DataSubjectScope,
		ViolationConditions: cmd.ViolationConditions,
		EffectiveDate:       time.Now(),
	}
	if cmd.EffectiveDate != nil {
		r.EffectiveDate = *cmd.EffectiveDate
	}
	f.byID[r.RuleID] = r
	return &r, nil
}

func (f *fakeRules) Activate(_ context.Context, ruleID, _ string) (*rules.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.byID[ruleID]
	if !ok {
		return nil, rules.ErrNotFound
	}
	if r.Status != rules.StatusDraft {
		return nil, faults.InvalidState("rule", ruleID, string(r.Status), "activate")
	}
	r.Status = rules.StatusActive
	f.byID[ruleID] = r
	return &r, nil
}

func (f *fakeRules) Delete(_ context.Context, ruleID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.byID[ruleID]; !ok {
		return rules.ErrNotFound
	}
	delete(f.byID, ruleID)
	return nil
}

type fakeConnections struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*connections.Connection
	connStr map[uuid.UUID]string
	scanned map[uuid.UUID]time.Time
}

func newFakeConnections() *fakeConnections {
	return &fakeConnections{
		byID:    make(map[uuid.UUID]*connections.Connection),
		connStr: make(map[uuid.UUID]string),
		scanned: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeConnections) add(name, connStr string, schemaMap collaborators.SchemaMap) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New()
	f.byID[id] = &connections.Connection{ID: id, Name: name, SchemaMap: schemaMap}
	f.connStr[id] = connStr
	return id
}

func (f *fakeConnections) Find(_ context.Context, id uuid.UUID) (*connections.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.byID[id]
	if !ok {
		return nil, connections.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeConnections) ConnectionString(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.connStr[id]
	if !ok {
		return "", connections.ErrNotFound
	}
	return s, nil
}

func (f *fakeConnections) SetSchemaMap(_ context.Context, id uuid.UUID, schemaMap collaborators.SchemaMap, _ string) (*connections.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.byID[id]
	if !ok {
		return nil, connections.ErrNotFound
	}
	c.SchemaMap = schemaMap
	clone := *c
	return &clone, nil
}

func (f *fakeConnections) TouchScanned(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned[id] = at
	return nil
}

type fakeViolations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*violations.Violation
}

func newFakeViolations() *fakeViolations {
	return &fakeViolations{byID: make(map[uuid.UUID]*violations.Violation)}
}

func (f *fakeViolations) add(v violations.Violation) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = violations.StatusOpen
	}
	f.byID[v.ID] = &v
	return v.ID
}

func (f *fakeViolations) Find(_ context.Context, id uuid.UUID) (*violations.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.byID[id]
	if !ok {
		return nil, violations.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (f *fakeViolations) Create(_ context.Context, cmd violations.CreateCommand) (*violations.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := &violations.Violation{
		ID:                  uuid.New(),
		ThreadID:            cmd.ThreadID,
		ConnectionID:        cmd.ConnectionID,
		RuleID:              cmd.RuleID,
		TableName:           cmd.TableName,
		ColumnName:          cmd.ColumnName,
		ConditionMatched:    cmd.ConditionMatched,
		Severity:            cmd.Severity,
		Status:              violations.StatusOpen,
		Evidence:            cmd.Evidence,
		RemediationTemplate: cmd.RemediationTemplate,
		DetectedAt:          time.Now(),
	}
	f.byID[v.ID] = v
	clone := *v
	return &clone, nil
}

func (f *fakeViolations) Resolve(_ context.Context, cmd violations.ResolveCommand) (*violations.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.byID[cmd.ID]
	if !ok {
		return nil, violations.ErrNotFound
	}
	if v.Status != violations.StatusOpen {
		return nil, faults.InvalidState("violation", cmd.ID.String(), string(v.Status), string(cmd.Status))
	}
	now := time.Now()
	v.Status = cmd.Status
	v.ResolvedAt = &now
	v.ResolvedBy = &cmd.ResolvedBy
	clone := *v
	return &clone, nil
}

type fakeFindings struct {
	mu   sync.Mutex
	list []findings.Finding
}

func newFakeFindings() *fakeFindings {
	return &fakeFindings{}
}

func (f *fakeFindings) List(_ context.Context, page pagination.PageRequest, filters findings.Filters) (*pagination.PageResult[findings.Finding], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []findings.Finding
	for _, fd := range f.list {
		if filters.ThreadID != nil && fd.ThreadID.String() != *filters.ThreadID {
			continue
		}
		if filters.Dismissed != nil && fd.Dismissed != *filters.Dismissed {
			continue
		}
		matched = append(matched, fd)
	}

	result := pagination.NewPageResult(matched, len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (f *fakeFindings) Create(_ context.Context, cmd findings.CreateCommand) (*findings.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd := findings.Finding{
		ID:           uuid.New(),
		ThreadID:     cmd.ThreadID,
		ConnectionID: cmd.ConnectionID,
		RuleID:       cmd.RuleID,
		FindingType:  cmd.FindingType,
		Description:  cmd.Description,
		CreatedAt:    time.Now(),
	}
	f.list = append(f.list, fd)
	return &fd, nil
}

func (f *fakeFindings) Dismiss(_ context.Context, id uuid.UUID, actor string) (*findings.Finding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.list {
		if f.list[i].ID != id {
			continue
		}
		if f.list[i].Dismissed {
			return nil, faults.InvalidState("finding", id.String(), "dismissed", "dismiss")
		}
		now := time.Now()
		f.list[i].Dismissed = true
		f.list[i].DismissedBy = &actor
		f.list[i].DismissedAt = &now
		fd := f.list[i]
		return &fd, nil
	}
	return nil, findings.ErrNotFound
}

type fakePlans struct {
	mu    sync.Mutex
	order []uuid.UUID
	byID  map[uuid.UUID]*remediations.Plan
}

func newFakePlans() *fakePlans {
	return &fakePlans{byID: make(map[uuid.UUID]*remediations.Plan)}
}

func (f *fakePlans) List(_ context.Context, page pagination.PageRequest, filters remediations.Filters) (*pagination.PageResult[remediations.Plan], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []remediations.Plan
	for i := len(f.order) - 1; i >= 0; i-- {
		p := f.byID[f.order[i]]
		if filters.ThreadID != nil && p.ThreadID.String() != *filters.ThreadID {
			continue
		}
		matched = append(matched, *p)
	}

	total := len(matched)
	if page.PageSize > 0 && len(matched) > page.PageSize {
		matched = matched[:page.PageSize]
	}
	result := pagination.NewPageResult(matched, total, page.Page, page.PageSize)
	return &result, nil
}

func (f *fakePlans) Find(_ context.Context, id uuid.UUID) (*remediations.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byID[id]
	if !ok {
		return nil, remediations.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakePlans) Create(_ context.Context, cmd remediations.CreateCommand) (*remediations.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &remediations.Plan{
		ID:                 uuid.New(),
		ThreadID:           cmd.ThreadID,
		ViolationID:        cmd.ViolationID,
		Statements:         cmd.Statements,
		RollbackStatements: cmd.RollbackStatements,
		RiskLevel:          cmd.RiskLevel,
		Status:             remediations.StatusProposed,
		CreatedAt:          time.Now(),
	}
	f.byID[p.ID] = p
	f.order = append(f.order, p.ID)
	clone := *p
	return &clone, nil
}

func (f *fakePlans) Transition(_ context.Context, cmd remediations.TransitionCommand) (*remediations.Plan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byID[cmd.ID]
	if !ok {
		return nil, remediations.ErrNotFound
	}
	if remediations.Terminal(p.Status) {
		return nil, faults.InvalidState("remediation_plan", cmd.ID.String(), string(p.Status), string(cmd.Status))
	}
	p.Status = cmd.Status
	if cmd.Report != nil {
		p.ExecutionReport = cmd.Report
	}
	if cmd.Status == remediations.StatusApproved && cmd.Actor != "" {
		p.ApprovedBy = &cmd.Actor
	}
	clone := *p
	return &clone, nil
}

func (f *fakePlans) FailActiveForThread(_ context.Context, threadID uuid.UUID, _ string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	failed := 0
	for _, p := range f.byID {
		if p.ThreadID != threadID {
			continue
		}
		if p.Status == remediations.StatusProposed || p.Status == remediations.StatusApproved {
			p.Status = remediations.StatusFailed
			failed++
		}
	}
	return failed, nil
}

type fakeJobs struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*ingestions.Job
	byJobID map[string]uuid.UUID
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		byID:    make(map[uuid.UUID]*ingestions.Job),
		byJobID: make(map[string]uuid.UUID),
	}
}

func (f *fakeJobs) add(jobID, sourceDoc, storageKey string) *ingestions.Job {
	f.mu.Lock()
	defer f.mu.Unlock()

	j := &ingestions.Job{
		ID:         uuid.New(),
		JobID:      jobID,
		SourceDoc:  sourceDoc,
		StorageKey: storageKey,
		Status:     ingestions.StatusQueued,
	}
	f.byID[j.ID] = j
	f.byJobID[jobID] = j.ID
	clone := *j
	return &clone
}

func (f *fakeJobs) Find(_ context.Context, id uuid.UUID) (*ingestions.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.byID[id]
	if !ok {
		return nil, ingestions.ErrNotFound
	}
	clone := *j
	return &clone, nil
}

func (f *fakeJobs) FindByJobID(_ context.Context, jobID string) (*ingestions.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.byJobID[jobID]
	if !ok {
		return nil, ingestions.ErrNotFound
	}
	clone := *f.byID[id]
	return &clone, nil
}

func (f *fakeJobs) Transition(_ context.Context, cmd ingestions.TransitionCommand) (*ingestions.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.byID[cmd.ID]
	if !ok {
		return nil, ingestions.ErrNotFound
	}
	if !ingestions.CanTransition(j.Status, cmd.Status) {
		return nil, faults.InvalidState("ingestion_job", cmd.ID.String(), string(j.Status), string(cmd.Status))
	}
	j.Status = cmd.Status
	if cmd.ErrorDetail != nil {
		j.ErrorDetail = cmd.ErrorDetail
	}
	clone := *j
	return &clone, nil
}

func (f *fakeJobs) SetCounts(_ context.Context, id uuid.UUID, update ingestions.CountsUpdate) (*ingestions.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.byID[id]
	if !ok {
		return nil, ingestions.ErrNotFound
	}
	if update.CandidateSpans != nil {
		j.CandidateSpans = *update.CandidateSpans
	}
	if update.RulesDecomposed != nil {
		j.RulesDecomposed = *update.RulesDecomposed
	}
	if update.RulesApproved != nil {
		j.RulesApproved = *update.RulesApproved
	}
	if update.RulesRejected != nil {
		j.RulesRejected = *update.RulesRejected
	}
	clone := *j
	return &clone, nil
}

func (f *fakeJobs) AttachThread(_ context.Context, id uuid.UUID, threadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.byID[id]
	if !ok {
		return ingestions.ErrNotFound
	}
	j.ThreadID = &threadID
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (f *fakeAudit) Record(_ context.Context, event audit.Event) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, event)
	return int64(len(f.events)), nil
}

type fakeBlobs struct {
	blobs map[string][]byte
}

func (f *fakeBlobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakePipeline struct {
	spans  []collaborators.CandidateSpan
	drafts []collaborators.RuleDraft
	err    error
}

func (f *fakePipeline) Extract(context.Context, string, io.Reader) ([]collaborators.CandidateSpan, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.spans, nil
}

func (f *fakePipeline) Decompose(context.Context, []collaborators.CandidateSpan) ([]collaborators.RuleDraft, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.drafts, nil
}

type fakeScanner struct {
	schemaMap   collaborators.SchemaMap
	classifyErr error
	drafts      []collaborators.ViolationDraft
	detectErr   error
	block       chan struct{}
}

func (f *fakeScanner) Classify(ctx context.Context, _ string) (collaborators.SchemaMap, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	return f.schemaMap, nil
}

func (f *fakeScanner) DetectViolations(ctx context.Context, _ string, _ []collaborators.RuleRef) ([]collaborators.ViolationDraft, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	return f.drafts, nil
}

type fakeExecutor struct {
	mu         sync.Mutex
	report     collaborators.ExecutionReport
	err        error
	executed   [][]string
	rolledBack [][]string
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, statements []string) (collaborators.ExecutionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.executed = append(f.executed, statements)
	if f.err != nil {
		return collaborators.ExecutionReport{}, f.err
	}
	if f.report.Succeeded == 0 && f.report.Failed == 0 {
		return collaborators.ExecutionReport{Succeeded: len(statements)}, nil
	}
	return f.report, nil
}

func (f *fakeExecutor) Rollback(_ context.Context, _ string, statements []string) (collaborators.ExecutionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rolledBack = append(f.rolledBack, statements)
	return collaborators.ExecutionReport{Succeeded: len(statements)}, nil
}

type fixture struct {
	threads     *fakeThreads
	rules       *fakeRules
	connections *fakeConnections
	violations  *fakeViolations
	findings    *fakeFindings
	plans       *fakePlans
	jobs        *fakeJobs
	blobs       *fakeBlobs
	pipeline    *fakePipeline
	scanner     *fakeScanner
	executor    *fakeExecutor
	audit       *fakeAudit
}

func newFixture() *fixture {
	return &fixture{
		threads:     newFakeThreads(),
		rules:       newFakeRules(),
		connections: newFakeConnections(),
		violations:  newFakeViolations(),
		findings:    newFakeFindings(),
		plans:       newFakePlans(),
		jobs:        newFakeJobs(),
		blobs:       &fakeBlobs{blobs: make(map[string][]byte)},
		pipeline:    &fakePipeline{},
		scanner:     &fakeScanner{},
		executor:    &fakeExecutor{},
		audit:       &fakeAudit{},
	}
}

func (f *fixture) engine(opts Options) (*Engine, error) {
	return New(&Runtime{
		Threads:     f.threads,
		Rules:       f.rules,
		Connections: f.connections,
		Violations:  f.violations,
		Findings:    f.findings,
		Plans:       f.plans,
		Jobs:        f.jobs,
		Blobs:       f.blobs,
		Audit:       f.audit,
		Pipeline:    f.pipeline,
		Scanner:     f.scanner,
		Executor:    f.executor,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, opts)
}
