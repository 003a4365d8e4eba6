package api

import (
	"fmt"

	"github.com/sentinel-compliance/sentinel/internal/collaborators"
	"github.com/sentinel-compliance/sentinel/internal/config"
	"github.com/sentinel-compliance/sentinel/internal/infrastructure"
	"github.com/sentinel-compliance/sentinel/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration and the
// external collaborators domain systems depend on.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Engine     config.EngineConfig

	Cipher   collaborators.Cipher
	Pipeline collaborators.DocumentPipeline
	Scanner  collaborators.SchemaScanner
	Executor collaborators.SQLExecutor
}

// NewRuntime creates an API runtime with a module-scoped logger. The
// connection-string cipher is derived from the configured secrets key;
// pipeline, scanner, and executor default to unconfigured stubs until a
// real integration is attached.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	key, err := cfg.Secrets.KeyBytes()
	if err != nil {
		return nil, err
	}

	cipher, err := collaborators.NewAESCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets cipher: %w", err)
	}

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Engine:     cfg.Engine,
		Cipher:     cipher,
		Pipeline:   collaborators.UnconfiguredPipeline(),
		Scanner:    collaborators.UnconfiguredScanner(),
		Executor:   collaborators.UnconfiguredExecutor(),
	}, nil
}
