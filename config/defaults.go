package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "attache",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			WSMaxConnections: 100,
			AllowedOrigins:   []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Workspace: WorkspaceConfig{
			Root: "workspace",
		},
		Models: ModelsConfig{
			Default:           "general",
			Fallback:          "local-small",
			MaxConcurrent:     4,
			RequestsPerSecond: 0,
			MaxContextTokens:  8192,
			Registry: []ModelDef{
				{
					Name: "general", Provider: "cloud-chat",
					Speed: 6, Quality: 9, CostPerMillionTokens: 10,
					Specialties:   []string{"general", "smart", "explain"},
					ContextWindow: 200_000, Temperature: 0.7,
				},
				{
					Name: "coder", Provider: "cloud-chat",
					Speed: 5, Quality: 9, CostPerMillionTokens: 15,
					Specialties:   []string{"code", "coder", "build"},
					ContextWindow: 200_000, Temperature: 0.2,
				},
				{
					Name: "local-small", Provider: "local-chat",
					Speed: 9, Quality: 5, CostPerMillionTokens: 0,
					Specialties:   []string{"fast", "math", "hebrew"},
					ContextWindow: 8192, Temperature: 0.7,
				},
				{
					Name: "researcher", Provider: "citations",
					Speed: 4, Quality: 8, CostPerMillionTokens: 5,
					Specialties:   []string{"search", "research", "web"},
					ContextWindow: 127_000, Temperature: 0.3,
				},
			},
			Routing: RoutingConfig{
				TaskTypes: map[string][]string{
					"code":     {"coder", "general"},
					"coder":    {"coder", "general"},
					"research": {"researcher", "general"},
					"smart":    {"general", "coder"},
					"fast":     {"local-small", "general"},
				},
				DefaultModels: []string{"general", "local-small"},
			},
			Backends: BackendsConfig{
				OpenAI: CloudBackendConfig{
					BaseURL: "https://api.openai.com/v1",
					Timeout: 120 * time.Second,
				},
				Anthropic: CloudBackendConfig{
					BaseURL: "https://api.anthropic.com/v1",
					Timeout: 120 * time.Second,
				},
				Perplexity: CloudBackendConfig{
					BaseURL: "https://api.perplexity.ai",
					Timeout: 120 * time.Second,
				},
				Ollama: LocalBackendConfig{
					Host:    "http://localhost:11434",
					Timeout: 300 * time.Second,
				},
			},
		},
		Tools: ToolsConfig{
			EnableBrowser:   false,
			EnableGit:       true,
			BrowserHeadless: true,
			Media: MediaConfig{
				ImageURL: "http://localhost:8188",
				VideoURL: "http://localhost:8189",
				TTSURL:   "http://localhost:8190",
			},
		},
		Safety: SafetyConfig{
			RequireConfirmation: true,
			MaxFileSize:         100 << 20, // 100 MiB
			MaxToolTimeout:      300 * time.Second,
		},
		Memory: MemoryConfig{
			Path:               "memory",
			VectorDimension:    768,
			EmbeddingURL:       "http://localhost:11434/api/embeddings",
			EmbeddingModel:     "nomic-embed-text",
			EmbeddingCacheSize: 1024,
			RecallWindow:       24 * time.Hour,
			RecallTopK:         3,
		},
		Limits: LimitsConfig{
			RequestBudget: 300 * time.Second,
			MaxPlanSteps:  10,
			MaxStepErrors: 3,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp",
			Endpoint:    "localhost:4317",
			Timeout:     10 * time.Second,
			SampleRatio: 1.0,
		},
	}
}
