package tools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/logger"
)

func TestNewStackRegistersFamiliesByConfig(t *testing.T) {
	ws := newTestWorkspace(t)

	stack, err := NewStack(
		config.ToolsConfig{EnableGit: true, EnableBrowser: false},
		config.SafetyConfig{RequireConfirmation: true, MaxFileSize: 100 << 20, MaxToolTimeout: 300 * time.Second},
		ws, logger.Nop(), nil)
	require.NoError(t, err)
	defer stack.Close()

	for _, name := range []string{
		"create_folder", "create_file", "read_file",
		"cpu_usage", "memory_usage", "disk_usage", "process_list", "system_info",
		"screenshot", "capture_region", "bash", "database_query",
		"generate_image", "generate_video", "speak",
		"git_init", "git_clone", "git_add_files", "git_commit", "git_push", "git_status",
	} {
		assert.True(t, stack.Executor.Has(name), "expected tool %q", name)
	}

	// Browser family gated off.
	assert.False(t, stack.Executor.Has("web_search"))
	assert.False(t, stack.Executor.Has("navigate_url"))
	assert.Nil(t, stack.Browser)

	// Classification: reads are safe, writes are dangerous.
	assert.False(t, stack.Executor.IsDangerous("read_file"))
	assert.False(t, stack.Executor.IsDangerous("system_info"))
	assert.True(t, stack.Executor.IsDangerous("create_file"))
	assert.True(t, stack.Executor.IsDangerous("bash"))
}
