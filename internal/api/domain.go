package api

import (
	"github.com/sentinel-compliance/sentinel/internal/audit"
	"github.com/sentinel-compliance/sentinel/internal/connections"
	"github.com/sentinel-compliance/sentinel/internal/engine"
	"github.com/sentinel-compliance/sentinel/internal/findings"
	"github.com/sentinel-compliance/sentinel/internal/ingestions"
	"github.com/sentinel-compliance/sentinel/internal/remediations"
	"github.com/sentinel-compliance/sentinel/internal/rules"
	"github.com/sentinel-compliance/sentinel/internal/threads"
	"github.com/sentinel-compliance/sentinel/internal/violations"
)

// Domain holds all domain systems that comprise the API, plus the
// orchestrator engine that drives workflow threads across them.
type Domain struct {
	Rules        rules.System
	Connections  connections.System
	Violations   violations.System
	Findings     findings.System
	Remediations remediations.System
	Ingestions   ingestions.System
	Threads      threads.System
	Audit        audit.System
	Engine       *engine.Engine
}

// NewDomain creates all domain systems from the API runtime and wires
// them into the engine.
func NewDomain(runtime *Runtime) (*Domain, error) {
	db := runtime.Database.Connection()

	rulesSystem := rules.New(db, runtime.Logger, runtime.Pagination)
	connectionsSystem := connections.New(db, runtime.Cipher, runtime.Logger, runtime.Pagination)
	violationsSystem := violations.New(db, runtime.Logger, runtime.Pagination)
	findingsSystem := findings.New(db, runtime.Logger, runtime.Pagination)
	remediationsSystem := remediations.New(db, runtime.Logger, runtime.Pagination)
	ingestionsSystem := ingestions.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	threadsSystem := threads.New(db, runtime.Logger, runtime.Pagination)
	auditSystem := audit.New(db, runtime.Logger, runtime.Pagination)

	eng, err := engine.New(&engine.Runtime{
		Threads:     threadsSystem,
		Rules:       rulesSystem,
		Connections: connectionsSystem,
		Violations:  violationsSystem,
		Findings:    findingsSystem,
		Plans:       remediationsSystem,
		Jobs:        ingestionsSystem,
		Blobs:       runtime.Storage,
		Audit:       auditSystem,
		Pipeline:    runtime.Pipeline,
		Scanner:     runtime.Scanner,
		Executor:    runtime.Executor,
		Logger:      runtime.Logger,
	}, engine.Options{
		LeaseWait:    runtime.Engine.LeaseWait,
		StageTimeout: runtime.Engine.StageTimeoutDuration(),
	})
	if err != nil {
		return nil, err
	}

	return &Domain{
		Rules:        rulesSystem,
		Connections:  connectionsSystem,
		Violations:   violationsSystem,
		Findings:     findingsSystem,
		Remediations: remediationsSystem,
		Ingestions:   ingestionsSystem,
		Threads:      threadsSystem,
		Audit:        auditSystem,
		Engine:       eng,
	}, nil
}
