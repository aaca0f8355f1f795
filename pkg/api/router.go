// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/api/handlers"
	"github.com/attache/attache/pkg/api/middleware"
	"github.com/attache/attache/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Chat handles the chat, workflow, and direct endpoints.
	Chat *handlers.ChatHandler

	// Tools handles direct tool invocation endpoints.
	Tools *handlers.ToolsHandler

	// ChatSocket handles the streaming websocket endpoint.
	ChatSocket *handlers.ChatSocketHandler

	// Health handles health check endpoints.
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder.
	Metrics middleware.MetricsRecorder

	// MetricsEndpoint serves the scrape endpoint when metrics are enabled.
	MetricsEndpoint http.Handler

	// TracingEnabled adds the tracing middleware.
	TracingEnabled bool
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	if h.TracingEnabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	RegisterRoutes(r, cfg, h)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, cfg *config.Config, h *Handlers) {
	r.Route("/api", func(r chi.Router) {
		if cfg.Server.WriteTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.WriteTimeout))
		}
		if h.Chat != nil {
			r.Post("/chat", h.Chat.Chat)
			r.Post("/chat/auto", h.Chat.Auto)
			r.Post("/agent/direct", h.Chat.Direct)
		}
		if h.Tools != nil {
			r.Post("/tools/execute", h.Tools.Execute)
			r.Post("/tools/database", h.Tools.Database)
		}
	})

	if h.ChatSocket != nil {
		r.Get("/ws/chat", h.ChatSocket.ServeHTTP)
	}

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	if h.MetricsEndpoint != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, h.MetricsEndpoint)
	}
}
