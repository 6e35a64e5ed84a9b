package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"rag-pipeline/internal/contextutil"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "RAG Pipeline"

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingerFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	checks             map[string]Pinger
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. Each named check must answer
// within the timeout for the service to be reported healthy.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		checks:             checks,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Service name
	Service string `json:"service"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Returns 200 OK if healthy, 503 Service Unavailable otherwise.
//
// swagger:route GET /health healthCheck
//
// # Health check endpoint
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string, len(h.checks))
	var issues []string
	for name, p := range h.checks {
		if h.check(checkCtx, logger, name, p) {
			checks[name] = "ok"
		} else {
			checks[name] = "error"
			issues = append(issues, name+"_unavailable")
		}
	}

	slices.Sort(issues)

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Service:   ServiceName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}

func (h *HealthHandler) check(ctx context.Context, logger *slog.Logger, name string, p Pinger) bool {
	if err := p.PingContext(ctx); err != nil {
		logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
		return false
	}
	return true
}
