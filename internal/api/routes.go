package api

import (
	"net/http"

	"agenthost/internal/agent"
	"agenthost/internal/health"
	"agenthost/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Service       *agent.Service
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Service, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Probes - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	authMiddleware := AuthMiddleware(cfg.APIKey)
	mux.Handle("POST /v1/agents", authMiddleware(http.HandlerFunc(handler.EnsureAgent)))
	mux.Handle("GET /v1/agents/{requestId}", authMiddleware(http.HandlerFunc(handler.GetAgent)))

	// Outermost first
	var h http.Handler = mux
	h = ContentTypeMiddleware()(h)
	if cfg.Metrics != nil {
		h = MetricsMiddleware(cfg.Metrics)(h)
	}
	h = LoggingMiddleware()(h)
	h = RecoveryMiddleware()(h)

	return h
}
