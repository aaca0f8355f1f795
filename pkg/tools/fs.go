package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/attache/attache/pkg/fault"
)

// Workspace jails filesystem tools under a single root directory. Every
// tool path is resolved relative to the root; absolute paths and paths
// escaping the root are rejected before any syscall.
type Workspace struct {
	root string
}

// NewWorkspace creates the root directory if needed.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fault.Fatal("resolve workspace root: %v", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fault.Fatal("create workspace root: %v", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// Resolve maps a workspace-relative path to an absolute one, rejecting
// absolute inputs and any traversal outside the root.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" {
		return "", fault.BadInput("path must not be empty")
	}
	if filepath.IsAbs(rel) {
		return "", fault.SafetyRejected("absolute path %q not allowed; paths are workspace-relative", rel)
	}
	abs := filepath.Join(w.root, rel)
	if abs != w.root && !strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		return "", fault.SafetyRejected("path %q escapes the workspace", rel)
	}
	return abs, nil
}

// CreateFolderTool creates a directory tree under the workspace.
type CreateFolderTool struct {
	ws *Workspace
}

func NewCreateFolderTool(ws *Workspace) *CreateFolderTool { return &CreateFolderTool{ws: ws} }

func (t *CreateFolderTool) Name() string    { return "create_folder" }
func (t *CreateFolderTool) Dangerous() bool { return true }

func (t *CreateFolderTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "path")
	return err
}

func (t *CreateFolderTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	rel, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	abs, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fault.ToolFailed("create folder %s: %v", rel, err)
	}
	return map[string]any{"path": rel, "created": true}, nil
}

// CreateFileTool writes a file under the workspace, creating parent
// directories as needed.
type CreateFileTool struct {
	ws *Workspace
}

func NewCreateFileTool(ws *Workspace) *CreateFileTool { return &CreateFileTool{ws: ws} }

func (t *CreateFileTool) Name() string    { return "create_file" }
func (t *CreateFileTool) Dangerous() bool { return true }

func (t *CreateFileTool) Validate(params map[string]any) error {
	if _, err := stringParam(params, "path"); err != nil {
		return err
	}
	if _, ok := params["content"].(string); !ok {
		return fault.BadInput("parameter %q must be a string", "content")
	}
	return nil
}

func (t *CreateFileTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	rel, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	content, _ := params["content"].(string)

	abs, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fault.ToolFailed("create parent of %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fault.ToolFailed("write file %s: %v", rel, err)
	}
	return map[string]any{"path": rel, "bytes": len(content)}, nil
}

// ReadFileTool returns a workspace file's content. Read-only.
type ReadFileTool struct {
	ws *Workspace
}

func NewReadFileTool(ws *Workspace) *ReadFileTool { return &ReadFileTool{ws: ws} }

func (t *ReadFileTool) Name() string    { return "read_file" }
func (t *ReadFileTool) Dangerous() bool { return false }

func (t *ReadFileTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "path")
	return err
}

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	rel, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	abs, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fault.ToolFailed("read file %s: %v", rel, err)
	}
	return map[string]any{"path": rel, "content": string(data)}, nil
}
