package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/tools/safety"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestWorkspaceResolve(t *testing.T) {
	ws := newTestWorkspace(t)

	abs, err := ws.Resolve("projects/demo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root(), "projects", "demo"), abs)

	_, err = ws.Resolve("/etc/passwd")
	assert.Equal(t, fault.KindSafetyRejected, fault.KindOf(err))

	_, err = ws.Resolve("../outside")
	assert.Equal(t, fault.KindSafetyRejected, fault.KindOf(err))

	_, err = ws.Resolve("")
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))
}

func TestFilesystemRoundTrip(t *testing.T) {
	ws := newTestWorkspace(t)
	executor := newTestExecutor(t, false,
		NewCreateFolderTool(ws), NewCreateFileTool(ws), NewReadFileTool(ws))

	result := executor.Execute(context.Background(), safety.Action{
		Type: "create_folder", Parameters: map[string]any{"path": "notes"},
	})
	require.True(t, result.Success, result.Error)

	// Content exercises multi-byte and astral-plane characters.
	content := "שלום עולם 👩‍🚀 é́"
	result = executor.Execute(context.Background(), safety.Action{
		Type: "create_file", Parameters: map[string]any{"path": "notes/hello.txt", "content": content},
	})
	require.True(t, result.Success, result.Error)

	result = executor.Execute(context.Background(), safety.Action{
		Type: "read_file", Parameters: map[string]any{"path": "notes/hello.txt"},
	})
	require.True(t, result.Success, result.Error)
	output, ok := result.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, content, output["content"])
}

func TestCreateFileMakesParents(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewCreateFileTool(ws)

	_, err := tool.Execute(context.Background(), map[string]any{
		"path": "deep/nested/dir/file.txt", "content": "x",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(ws.Root(), "deep", "nested", "dir", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestReadFileMissing(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := NewReadFileTool(ws)

	_, err := tool.Execute(context.Background(), map[string]any{"path": "nope.txt"})
	assert.Equal(t, fault.KindToolFailed, fault.KindOf(err))
}

func TestGateStopsTraversalThroughExecutor(t *testing.T) {
	ws := newTestWorkspace(t)
	executor := newTestExecutor(t, false, NewReadFileTool(ws))

	result := executor.Execute(context.Background(), safety.Action{
		Type: "read_file", Parameters: map[string]any{"path": "../../etc/passwd"},
	})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindSafetyRejected, result.Kind)
}
