package tools

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/attache/attache/pkg/fault"
)

// RepoHandle is the single mutable "current repository" all git tools
// operate on. Git tool calls serialize on its mutex.
type RepoHandle struct {
	mu  sync.Mutex
	ws  *Workspace
	dir string
}

// NewRepoHandle creates a handle with no current repository.
func NewRepoHandle(ws *Workspace) *RepoHandle {
	return &RepoHandle{ws: ws}
}

// run executes git with the handle locked, in dir when non-empty.
func (h *RepoHandle) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fault.ToolFailed("git %s: %v: %s",
			args[0], err, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// current returns the current repo directory or a bad_input fault.
func (h *RepoHandle) current() (string, error) {
	if h.dir == "" {
		return "", fault.BadInput("no current repository; run git_init or git_clone first")
	}
	return h.dir, nil
}

// GitInitTool creates a new repository under the workspace and makes it
// current.
type GitInitTool struct{ h *RepoHandle }

func NewGitInitTool(h *RepoHandle) *GitInitTool { return &GitInitTool{h: h} }

func (t *GitInitTool) Name() string    { return "git_init" }
func (t *GitInitTool) Dangerous() bool { return true }

func (t *GitInitTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "name")
	return err
}

func (t *GitInitTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	name, err := stringParam(params, "name")
	if err != nil {
		return nil, err
	}
	abs, err := t.h.ws.Resolve(name)
	if err != nil {
		return nil, err
	}

	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fault.ToolFailed("create repo directory %s: %v", name, err)
	}
	out, err := t.h.run(ctx, abs, "init")
	if err != nil {
		return nil, err
	}
	t.h.dir = abs
	return map[string]any{"repo": name, "output": out}, nil
}

// GitCloneTool clones a URL under the workspace and makes the clone current.
type GitCloneTool struct{ h *RepoHandle }

func NewGitCloneTool(h *RepoHandle) *GitCloneTool { return &GitCloneTool{h: h} }

func (t *GitCloneTool) Name() string    { return "git_clone" }
func (t *GitCloneTool) Dangerous() bool { return true }

func (t *GitCloneTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "url")
	return err
}

func (t *GitCloneTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	url, err := stringParam(params, "url")
	if err != nil {
		return nil, err
	}
	name := optionalStringParam(params, "name", strings.TrimSuffix(lastPathSegment(url), ".git"))
	abs, err := t.h.ws.Resolve(name)
	if err != nil {
		return nil, err
	}

	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	out, err := t.h.run(ctx, t.h.ws.Root(), "clone", url, abs)
	if err != nil {
		return nil, err
	}
	t.h.dir = abs
	return map[string]any{"repo": name, "output": out}, nil
}

// GitAddTool stages files in the current repository.
type GitAddTool struct{ h *RepoHandle }

func NewGitAddTool(h *RepoHandle) *GitAddTool { return &GitAddTool{h: h} }

func (t *GitAddTool) Name() string                         { return "git_add_files" }
func (t *GitAddTool) Dangerous() bool                      { return true }
func (t *GitAddTool) Validate(params map[string]any) error { return nil }

func (t *GitAddTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	dir, err := t.h.current()
	if err != nil {
		return nil, err
	}

	args := []string{"add"}
	if patterns, ok := params["patterns"].([]any); ok && len(patterns) > 0 {
		for _, p := range patterns {
			if s, ok := p.(string); ok {
				args = append(args, s)
			}
		}
	} else {
		args = append(args, "-A")
	}

	out, err := t.h.run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

// GitCommitTool commits staged changes in the current repository.
type GitCommitTool struct{ h *RepoHandle }

func NewGitCommitTool(h *RepoHandle) *GitCommitTool { return &GitCommitTool{h: h} }

func (t *GitCommitTool) Name() string    { return "git_commit" }
func (t *GitCommitTool) Dangerous() bool { return true }

func (t *GitCommitTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "message")
	return err
}

func (t *GitCommitTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	message, err := stringParam(params, "message")
	if err != nil {
		return nil, err
	}

	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	dir, err := t.h.current()
	if err != nil {
		return nil, err
	}

	args := []string{"commit", "-m", message}
	if author := optionalStringParam(params, "author", ""); author != "" {
		args = append(args, "--author", author)
	}

	out, err := t.h.run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

// GitPushTool pushes the current repository to a remote.
type GitPushTool struct{ h *RepoHandle }

func NewGitPushTool(h *RepoHandle) *GitPushTool { return &GitPushTool{h: h} }

func (t *GitPushTool) Name() string                         { return "git_push" }
func (t *GitPushTool) Dangerous() bool                      { return true }
func (t *GitPushTool) Validate(params map[string]any) error { return nil }

func (t *GitPushTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	dir, err := t.h.current()
	if err != nil {
		return nil, err
	}

	args := []string{"push", optionalStringParam(params, "remote", "origin")}
	if branch := optionalStringParam(params, "branch", ""); branch != "" {
		args = append(args, branch)
	}

	out, err := t.h.run(ctx, dir, args...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"output": out}, nil
}

// GitStatusTool reports the current repository status. Read-only.
type GitStatusTool struct{ h *RepoHandle }

func NewGitStatusTool(h *RepoHandle) *GitStatusTool { return &GitStatusTool{h: h} }

func (t *GitStatusTool) Name() string                         { return "git_status" }
func (t *GitStatusTool) Dangerous() bool                      { return false }
func (t *GitStatusTool) Validate(params map[string]any) error { return nil }

func (t *GitStatusTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()

	dir, err := t.h.current()
	if err != nil {
		return nil, err
	}
	out, err := t.h.run(ctx, dir, "status", "--short", "--branch")
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": out}, nil
}

func lastPathSegment(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
