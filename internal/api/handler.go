// Package api provides the HTTP API handlers and routing for the agent host.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"agenthost/internal/agent"
	"agenthost/internal/apperrors"
	"agenthost/internal/health"
)

// maxRequestBodySize limits request body to 64KB; ensure requests are tiny.
const maxRequestBodySize = 64 << 10

// Handler contains HTTP handlers for the agents API
type Handler struct {
	svc    *agent.Service
	health *health.Checker
}

// NewHandler creates a new API handler
func NewHandler(svc *agent.Service, healthChecker *health.Checker) *Handler {
	return &Handler{
		svc:    svc,
		health: healthChecker,
	}
}

// EnsureAgent handles POST /v1/agents.
// Responds 201 when a job was created and 200 when it already existed.
func (h *Handler) EnsureAgent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req agent.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Ensure(r.Context(), &req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, result)
}

// GetAgent handles GET /v1/agents/{requestId}
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseInt(r.PathValue("requestId"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "requestId must be an integer")
		return
	}

	status, err := h.svc.Provisioned(r.Context(), requestID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// Livez handles GET /livez - liveness probe.
// Returns 200 if the process is alive. Does not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness probe.
// Returns 503 until the backend is initialized and while its control plane is unreachable.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps service errors to HTTP status codes.
// The service already logged backend failures with request context.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status < 500 {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
