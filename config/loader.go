package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for namespaced environment variables.
	EnvPrefix = "ATTACHE_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
)

// envAliases maps the bare, historically recognized environment keys onto
// config paths. Keys not in this table and not ATTACHE_-prefixed are ignored.
var envAliases = map[string]string{
	"ANTHROPIC_API_KEY":                    "models.backends.anthropic.api_key",
	"OPENAI_API_KEY":                       "models.backends.openai.api_key",
	"PERPLEXITY_API_KEY":                   "models.backends.perplexity.api_key",
	"OLLAMA_HOST":                          "models.backends.ollama.host",
	"OLLAMA_TIMEOUT":                       "models.backends.ollama.timeout",
	"DEFAULT_MODEL":                        "models.default",
	"FALLBACK_MODEL":                       "models.fallback",
	"CHROMA_DB_PATH":                       "memory.path",
	"LOG_LEVEL":                            "log.level",
	"ENABLE_BROWSER":                       "tools.enable_browser",
	"ENABLE_GIT":                           "tools.enable_git",
	"BROWSER_HEADLESS":                     "tools.browser_headless",
	"REQUIRE_CONFIRMATION_FOR_DESTRUCTIVE": "safety.require_confirmation",
	"MAX_CONCURRENT_LLM":                   "models.max_concurrent",
	"MAX_CONTEXT_TOKENS":                   "models.max_context_tokens",
}

// Loader handles configuration loading from various sources.
type Loader struct {
	k *koanf.Koanf
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{k: koanf.New(Delimiter)}
}

// Load loads configuration with the following priority (low to high):
// defaults, configuration file, environment variables, CLI overrides.
func Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}

// Load loads and validates the configuration.
func (l *Loader) Load(configPath string, overrides map[string]interface{}) (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := l.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		l.loadDefaultFiles()
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.k.Load(confmap.Provider(overrides, Delimiter), nil); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "mapstructure",
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults loads the default configuration tree.
func (l *Loader) loadDefaults() error {
	defaults := DefaultConfig()
	return l.k.Load(confmap.Provider(map[string]interface{}{
		"app":       defaults.App,
		"server":    defaults.Server,
		"log":       defaults.Log,
		"workspace": defaults.Workspace,
		"models":    defaults.Models,
		"tools":     defaults.Tools,
		"safety":    defaults.Safety,
		"memory":    defaults.Memory,
		"limits":    defaults.Limits,
		"metrics":   defaults.Metrics,
		"tracing":   defaults.Tracing,
	}, Delimiter), nil)
}

// loadFile loads configuration from a yaml or json file.
func (l *Loader) loadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return l.k.Load(file.Provider(path), parser)
}

// loadDefaultFiles probes standard config locations and loads the first hit.
func (l *Loader) loadDefaultFiles() {
	candidates := []string{
		"attache.yaml",
		"attache.yml",
		"attache.json",
		filepath.Join("config", "attache.yaml"),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".attache", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = l.loadFile(path)
			return
		}
	}
}

// loadEnv loads ATTACHE_-prefixed variables plus the bare alias keys.
func (l *Loader) loadEnv() error {
	// Bare aliases first so namespaced variables win on conflict.
	aliasValues := map[string]interface{}{}
	for key, path := range envAliases {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			aliasValues[path] = normalizeEnvValue(path, value)
		}
	}
	if len(aliasValues) > 0 {
		if err := l.k.Load(confmap.Provider(aliasValues, Delimiter), nil); err != nil {
			return err
		}
	}

	return l.k.Load(env.Provider(EnvPrefix, Delimiter, func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", Delimiter)
	}), nil)
}

// normalizeEnvValue coerces bare env strings into the field's expected type.
func normalizeEnvValue(path, value string) interface{} {
	switch path {
	case "models.backends.ollama.timeout":
		// Accept both Go durations ("120s") and bare seconds ("120").
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		var secs int
		if _, err := fmt.Sscanf(value, "%d", &secs); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return value
}
