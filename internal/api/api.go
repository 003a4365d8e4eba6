// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/sentinel-compliance/sentinel/internal/config"
	"github.com/sentinel-compliance/sentinel/internal/infrastructure"
	"github.com/sentinel-compliance/sentinel/pkg/middleware"
	"github.com/sentinel-compliance/sentinel/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime, err := NewRuntime(cfg, infra)
	if err != nil {
		return nil, err
	}

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	registerRoutes(mux, domain, cfg, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}
