package tools

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/attache/attache/pkg/fault"
)

// BashTool runs a shell command in the workspace. The safety gate screens the
// command parameter before this handler ever sees it; the tool itself is
// always classified dangerous.
type BashTool struct {
	ws *Workspace
}

func NewBashTool(ws *Workspace) *BashTool { return &BashTool{ws: ws} }

func (t *BashTool) Name() string    { return "bash" }
func (t *BashTool) Dangerous() bool { return true }

func (t *BashTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "command")
	return err
}

func (t *BashTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	command, err := stringParam(params, "command")
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = t.ws.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := map[string]any{
		"stdout":    strings.TrimRight(stdout.String(), "\n"),
		"stderr":    strings.TrimRight(stderr.String(), "\n"),
		"exit_code": cmd.ProcessState.ExitCode(),
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return nil, fault.ToolFailed("run command: %v", runErr)
		}
		return out, fault.ToolFailed("command exited %d: %s",
			cmd.ProcessState.ExitCode(), firstLine(stderr.String()))
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
