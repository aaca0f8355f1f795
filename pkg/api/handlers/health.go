package handlers

import (
	"net/http"
	"time"

	"github.com/attache/attache/pkg/api/response"
	"github.com/attache/attache/pkg/memory"
	"github.com/attache/attache/pkg/model"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/version"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	started  time.Time
	router   *model.Router
	executor *tools.Executor
	memory   *memory.Store
	wsCount  func() int
}

// NewHealthHandler creates a new health handler. memory and wsCount may be
// nil when the corresponding subsystem is disabled.
func NewHealthHandler(router *model.Router, executor *tools.Executor, store *memory.Store, wsCount func() int) *HealthHandler {
	return &HealthHandler{
		started:  time.Now(),
		router:   router,
		executor: executor,
		memory:   store,
		wsCount:  wsCount,
	}
}

// Health handles the /health endpoint (liveness probe).
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint (readiness probe). The service is ready
// once the model registry has at least one routable model.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.router != nil && h.router.Registry().Len() > 0 {
		response.JSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}
	response.JSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
}

// Status handles the /status endpoint (detailed status).
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"commit":         version.GitCommit,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	}

	if h.router != nil {
		status["models"] = h.router.Registry().Names()
	}
	if h.executor != nil {
		status["tools"] = h.executor.Names()
	}
	if h.wsCount != nil {
		status["ws_connections"] = h.wsCount()
	}
	if h.memory != nil {
		if n, err := h.memory.ShortTerm().Len(); err == nil {
			status["short_term_entries"] = n
		}
	}

	response.JSON(w, http.StatusOK, status)
}
