package api

import (
	"net/http"

	"github.com/sentinel-compliance/sentinel/internal/config"
	"github.com/sentinel-compliance/sentinel/internal/engine"
	"github.com/sentinel-compliance/sentinel/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Rules.Handler().Routes(),
		domain.Connections.Handler().Routes(),
		domain.Violations.Handler().Routes(),
		domain.Findings.Handler().Routes(),
		domain.Remediations.Handler().Routes(),
		domain.Ingestions.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Threads.Handler().Routes(),
		domain.Audit.Handler().Routes(),
		engine.NewHandler(domain.Engine, runtime.Logger).Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	)
}
