// Package config provides configuration management for Attaché.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Attaché.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Workspace is the workspace directory configuration.
	Workspace WorkspaceConfig `mapstructure:"workspace"`

	// Models is the model registry and backend configuration.
	Models ModelsConfig `mapstructure:"models"`

	// Tools is the tool executor configuration.
	Tools ToolsConfig `mapstructure:"tools"`

	// Safety is the safety gate configuration.
	Safety SafetyConfig `mapstructure:"safety"`

	// Memory is the memory layer configuration.
	Memory MemoryConfig `mapstructure:"memory"`

	// Limits bounds per-request resource usage.
	Limits LimitsConfig `mapstructure:"limits"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum idle time for keep-alive connections.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// WSMaxConnections caps concurrent websocket chat sessions.
	WSMaxConnections int `mapstructure:"ws_max_connections" validate:"min=0"`

	// AllowedOrigins is the CORS / websocket origin allow-list.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the log output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the log destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// WorkspaceConfig holds the workspace layout.
type WorkspaceConfig struct {
	// Root is the workspace root directory. All tool file writes, screenshots,
	// generated media, and memory state live beneath it.
	Root string `mapstructure:"root" validate:"required"`
}

// ModelsConfig holds the model registry and backend endpoints.
type ModelsConfig struct {
	// Default is the model used when routing yields no candidates.
	Default string `mapstructure:"default" validate:"required"`

	// Fallback is the model retried once when the primary is unavailable.
	// Must differ from Default.
	Fallback string `mapstructure:"fallback" validate:"required,nefield=Default"`

	// MaxConcurrent caps in-flight outbound model calls across the process.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1"`

	// RequestsPerSecond rate-limits outbound model calls. Zero disables.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// MaxContextTokens bounds the prompt assembled from memory context.
	MaxContextTokens int `mapstructure:"max_context_tokens" validate:"min=0"`

	// Registry declares the available models. Declaration order is the
	// routing tie-break order.
	Registry []ModelDef `mapstructure:"registry"`

	// Routing holds the task-type routing table.
	Routing RoutingConfig `mapstructure:"routing"`

	// Backends holds per-provider endpoint configuration.
	Backends BackendsConfig `mapstructure:"backends"`
}

// ModelDef declares one model's capability metadata.
type ModelDef struct {
	// Name is the unique model name.
	Name string `mapstructure:"name" validate:"required"`

	// Provider selects the backend adapter (cloud-chat, local-chat, citations).
	Provider string `mapstructure:"provider" validate:"oneof=cloud-chat local-chat citations"`

	// Speed rates response latency from 1 (slow) to 10 (fast).
	Speed int `mapstructure:"speed" validate:"min=1,max=10"`

	// Quality rates answer quality from 1 to 10.
	Quality int `mapstructure:"quality" validate:"min=1,max=10"`

	// CostPerMillionTokens is the blended cost in USD.
	CostPerMillionTokens float64 `mapstructure:"cost_per_million_tokens" validate:"min=0"`

	// Specialties tags what the model is good at (code, hebrew, fast, ...).
	Specialties []string `mapstructure:"specialties"`

	// ContextWindow is the context size in tokens.
	ContextWindow int `mapstructure:"context_window" validate:"min=1"`

	// Temperature is the default sampling temperature.
	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// RoutingConfig holds the keyword routing table.
type RoutingConfig struct {
	// TaskTypes maps a task-type keyword to an ordered candidate model list.
	TaskTypes map[string][]string `mapstructure:"task_types"`

	// DefaultModels is the candidate list when neither the table nor
	// specialty tags match.
	DefaultModels []string `mapstructure:"default_models"`
}

// BackendsConfig holds per-provider connection settings.
type BackendsConfig struct {
	OpenAI     CloudBackendConfig `mapstructure:"openai"`
	Anthropic  CloudBackendConfig `mapstructure:"anthropic"`
	Perplexity CloudBackendConfig `mapstructure:"perplexity"`
	Ollama     LocalBackendConfig `mapstructure:"ollama"`
}

// CloudBackendConfig configures a bearer-token HTTP backend.
type CloudBackendConfig struct {
	// APIKey is the bearer token. Empty disables the backend.
	APIKey string `mapstructure:"api_key"`

	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`

	// Timeout is the per-call deadline.
	Timeout time.Duration `mapstructure:"timeout"`
}

// LocalBackendConfig configures a local unauthenticated backend.
type LocalBackendConfig struct {
	// Host is the backend base URL (e.g. http://localhost:11434).
	Host string `mapstructure:"host"`

	// Timeout is the per-call deadline. Local models are slower, so this
	// defaults higher than the cloud backends.
	Timeout time.Duration `mapstructure:"timeout"`
}

// ToolsConfig holds tool executor settings.
type ToolsConfig struct {
	// EnableBrowser enables the headless browser tool family.
	EnableBrowser bool `mapstructure:"enable_browser"`

	// EnableGit enables the git tool family.
	EnableGit bool `mapstructure:"enable_git"`

	// BrowserHeadless runs the browser without a display.
	BrowserHeadless bool `mapstructure:"browser_headless"`

	// Media holds the fixed-port side-service endpoints.
	Media MediaConfig `mapstructure:"media"`
}

// MediaConfig holds media side-service endpoints.
type MediaConfig struct {
	// ImageURL is the image generation service base URL.
	ImageURL string `mapstructure:"image_url"`

	// VideoURL is the video generation service base URL.
	VideoURL string `mapstructure:"video_url"`

	// TTSURL is the text-to-speech service base URL.
	TTSURL string `mapstructure:"tts_url"`
}

// SafetyConfig holds safety gate settings.
type SafetyConfig struct {
	// RequireConfirmation requires an explicit confirmation flag for
	// dangerous (writing/executing) actions.
	RequireConfirmation bool `mapstructure:"require_confirmation"`

	// MaxFileSize is the largest file a tool may create or read, in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"min=0"`

	// MaxToolTimeout caps any single tool operation's timeout.
	MaxToolTimeout time.Duration `mapstructure:"max_tool_timeout"`
}

// MemoryConfig holds memory layer settings.
type MemoryConfig struct {
	// Path is the memory state directory, relative to the workspace root
	// unless absolute.
	Path string `mapstructure:"path"`

	// VectorDimension is the embedding dimensionality.
	VectorDimension int `mapstructure:"vector_dimension" validate:"min=1"`

	// EmbeddingURL is the external embedding endpoint.
	EmbeddingURL string `mapstructure:"embedding_url"`

	// EmbeddingModel is the embedding model name sent to the endpoint.
	EmbeddingModel string `mapstructure:"embedding_model"`

	// EmbeddingCacheSize caps the embedding LRU cache entries.
	EmbeddingCacheSize int `mapstructure:"embedding_cache_size" validate:"min=0"`

	// RecallWindow is the default time window for recent-conversation recall.
	RecallWindow time.Duration `mapstructure:"recall_window"`

	// RecallTopK is the default document count per collection on recall.
	RecallTopK int `mapstructure:"recall_top_k" validate:"min=1"`
}

// LimitsConfig bounds per-request resources.
type LimitsConfig struct {
	// RequestBudget is the total wall-clock budget for one chat turn.
	RequestBudget time.Duration `mapstructure:"request_budget"`

	// MaxPlanSteps caps the plan length produced by the planner.
	MaxPlanSteps int `mapstructure:"max_plan_steps" validate:"min=1"`

	// MaxStepErrors is the consecutive step error ceiling before the run
	// aborts with a clarification request.
	MaxStepErrors int `mapstructure:"max_step_errors" validate:"min=1"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the exporter ("otlp").
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the export timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// SampleRatio is the trace sampling ratio in [0,1].
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`
}

// String returns a redacted single-line description for startup logging.
func (c *Config) String() string {
	return fmt.Sprintf("app=%s env=%s addr=%s:%d models=%d default=%s fallback=%s workspace=%s",
		c.App.Name, c.App.Environment, c.Server.Host, c.Server.Port,
		len(c.Models.Registry), c.Models.Default, c.Models.Fallback, c.Workspace.Root)
}

// Model returns the registry entry for name, or nil.
func (c *ModelsConfig) Model(name string) *ModelDef {
	for i := range c.Registry {
		if c.Registry[i].Name == name {
			return &c.Registry[i]
		}
	}
	return nil
}
