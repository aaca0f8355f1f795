package assistant

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/tools"
)

func TestDirectCreatesProject(t *testing.T) {
	ws, err := tools.NewWorkspace(t.TempDir())
	require.NoError(t, err)

	router, adapter := newScriptRouter(t, planReply("chat", "NONE"))
	executor := newTestExecutor(t, tools.NewCreateFolderTool(ws), tools.NewCreateFileTool(ws))
	o := newTestOrchestrator(t, router, executor, nil)

	result, err := o.Direct(context.Background(), Request{
		Message:   "please create a project named notes-app",
		Confirmed: true,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Response, "notes-app")
	assert.Zero(t, adapter.callCount(), "direct path needs no model calls")

	readme, err := os.ReadFile(filepath.Join(ws.Root(), "notes-app", "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(readme), "# notes-app")

	entry, err := os.ReadFile(filepath.Join(ws.Root(), "notes-app", "main.py"))
	require.NoError(t, err)
	assert.Contains(t, string(entry), "def main():")
}

func TestDirectFallsBackToRun(t *testing.T) {
	router, adapter := newScriptRouter(t, planReply("Just chatting.", "NONE"))
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	result, err := o.Direct(context.Background(), Request{Message: "tell me a joke"})
	require.NoError(t, err)
	assert.Equal(t, "Just chatting.", result.Response)
	assert.Equal(t, 2, adapter.callCount())
}

func TestProjectName(t *testing.T) {
	assert.Equal(t, "demo", projectName("create a project named demo"))
	assert.Equal(t, "my-app", projectName("Create project called my-app please"))
	assert.Empty(t, projectName("create a file named demo"))
	assert.Empty(t, projectName("what is a project?"))
}
