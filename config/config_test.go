package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.NotEqual(t, cfg.Models.Default, cfg.Models.Fallback,
		"fallback must differ from default")
}

func TestValidateRejectsDuplicateModelNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Registry = append(cfg.Models.Registry, cfg.Models.Registry[0])
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
}

func TestValidateRejectsSameFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Fallback = cfg.Models.Default
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsUnknownRoutingTarget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.Routing.TaskTypes["code"] = []string{"no-such-model"}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "attache.yaml")
	content := []byte("server:\n  port: 9191\nlog:\n  level: warn\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("DEFAULT_MODEL", "coder")
	t.Setenv("FALLBACK_MODEL", "local-small")
	t.Setenv("MAX_CONCURRENT_LLM", "2")
	t.Setenv("OLLAMA_TIMEOUT", "45")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "coder", cfg.Models.Default)
	assert.Equal(t, 2, cfg.Models.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.Models.Backends.Ollama.Timeout)
}

func TestLoadOverridesBeatEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load("", map[string]interface{}{"log.level": "error"})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestModelLookup(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg.Models.Model("coder"))
	assert.Nil(t, cfg.Models.Model("missing"))
}
