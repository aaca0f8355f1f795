// Package safety implements the pre-dispatch gate that validates tool
// actions before any handler runs. Rejections are final: a safety_rejected
// fault is never retried.
package safety

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/attache/attache/pkg/fault"
)

// Source identifies who proposed an action.
type Source string

const (
	SourceUser   Source = "user"
	SourceAgent  Source = "agent"
	SourceSystem Source = "system"
)

// Action is the gate's input: a proposed tool invocation.
type Action struct {
	// Type is the tool name.
	Type string

	// Parameters is the raw parameter bag.
	Parameters map[string]any

	// Source is who proposed the action.
	Source Source

	// Confirmed is the caller's explicit confirmation for dangerous actions.
	Confirmed bool
}

// Limits is the resource envelope enforced by the gate.
type Limits struct {
	// MaxFileSize is the largest permitted file payload in bytes.
	MaxFileSize int64

	// MaxTimeout caps any per-operation timeout parameter.
	MaxTimeout time.Duration
}

// pathParams are the parameter names treated as filesystem paths.
var pathParams = map[string]struct{}{
	"path": {}, "directory": {}, "file": {}, "source": {}, "target": {},
	"db_path": {},
}

// restrictedRoots are directory prefixes no tool may touch.
var restrictedRoots = []string{
	"/etc", "/usr", "/bin", "/sbin", "/boot", "/sys", "/proc", "/dev",
	"/var", "/lib", "/root",
	`c:\windows`, `c:\program files`, `c:\program files (x86)`,
}

// blockedPathFragments reject a path outright when present anywhere in it.
var blockedPathFragments = []string{
	"..", "~/.ssh", ".ssh/id_", "/etc/passwd", "/etc/shadow",
}

// dangerousCommands are substrings that reject any command parameter.
var dangerousCommands = []string{
	"rm -rf", "rm -fr", "del /f", "format", "fdisk", "mkfs",
	"dd if=", ":(){", "shutdown", "reboot", "> /dev/", "chmod -r 777",
}

// Gate validates proposed actions against the deny rules.
type Gate struct {
	requireConfirmation bool
	limits              Limits
	knownTool           func(name string) bool
	dangerousTool       func(name string) bool
	observer            RejectionObserver
}

// RejectionObserver is notified of every rejection, keyed by rule name.
// Implemented by the metrics manager; nil is allowed.
type RejectionObserver interface {
	RecordSafetyRejection(rule string)
}

// Config holds gate construction parameters.
type Config struct {
	// RequireConfirmation requires Action.Confirmed for dangerous tools.
	RequireConfirmation bool

	// Limits is the resource envelope. Zero values fall back to
	// 100 MiB / 300 s.
	Limits Limits

	// KnownTool reports whether a tool name exists in the registry.
	KnownTool func(name string) bool

	// DangerousTool reports whether the named tool has side effects.
	DangerousTool func(name string) bool

	// Observer receives rejection telemetry. Optional.
	Observer RejectionObserver
}

// NewGate builds a Gate.
func NewGate(cfg Config) *Gate {
	limits := cfg.Limits
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = 100 << 20
	}
	if limits.MaxTimeout <= 0 {
		limits.MaxTimeout = 300 * time.Second
	}
	g := &Gate{
		requireConfirmation: cfg.RequireConfirmation,
		limits:              limits,
		knownTool:           cfg.KnownTool,
		dangerousTool:       cfg.DangerousTool,
		observer:            cfg.Observer,
	}
	if g.knownTool == nil {
		g.knownTool = func(string) bool { return true }
	}
	if g.dangerousTool == nil {
		g.dangerousTool = func(string) bool { return true }
	}
	return g
}

// Check validates an action. A nil return means the action may be handed to
// its handler; any error wraps fault.ErrSafetyRejected.
func (g *Gate) Check(action Action) error {
	if !g.knownTool(action.Type) {
		return g.reject("unknown_type", "unknown action type %q", action.Type)
	}

	for name, value := range action.Parameters {
		str, ok := value.(string)
		if !ok {
			continue
		}
		if _, isPath := pathParams[name]; isPath {
			if err := g.checkPath(name, str); err != nil {
				return err
			}
		}
		if name == "command" {
			if err := g.checkCommand(str); err != nil {
				return err
			}
		}
	}

	if err := g.checkLimits(action.Parameters); err != nil {
		return err
	}

	if g.requireConfirmation && g.dangerousTool(action.Type) && !action.Confirmed {
		return g.reject("confirmation_required",
			"action %q has side effects and requires explicit confirmation", action.Type)
	}

	return nil
}

// CheckQuery validates a SQL query for the database tool. Destructive
// statements must be scoped and unbounded scans must be limited.
func (g *Gate) CheckQuery(query string) error {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return g.reject("empty_query", "query must not be empty")
	}
	if strings.HasPrefix(normalized, "delete") && !strings.Contains(normalized, "where") {
		return g.reject("delete_without_where", "DELETE without WHERE is not allowed")
	}
	if strings.HasPrefix(normalized, "select *") && !strings.Contains(normalized, "limit") {
		return g.reject("select_star_without_limit", "SELECT * without LIMIT is not allowed")
	}
	for _, bad := range []string{"drop table", "drop database", "truncate"} {
		if strings.Contains(normalized, bad) {
			return g.reject("destructive_statement", "statement contains %q", bad)
		}
	}
	return nil
}

// checkPath rejects absolute paths, paths under restricted roots, and paths
// containing blocked fragments. Tool paths are always workspace-relative.
func (g *Gate) checkPath(param, raw string) error {
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) ||
		(len(raw) > 1 && raw[1] == ':') {
		return g.reject("absolute_path", "parameter %q must be workspace-relative, got %q", param, raw)
	}

	lower := strings.ToLower(filepath.ToSlash(raw))
	for _, fragment := range blockedPathFragments {
		if strings.Contains(lower, fragment) {
			return g.reject("blocked_path", "parameter %q contains blocked fragment %q", param, fragment)
		}
	}

	normalized := strings.ToLower(filepath.ToSlash(filepath.Clean(raw)))
	for _, root := range restrictedRoots {
		root = strings.ToLower(filepath.ToSlash(root))
		if normalized == root || strings.HasPrefix(normalized, root+"/") {
			return g.reject("restricted_root", "parameter %q resolves under restricted root %q", param, root)
		}
	}
	return nil
}

// checkCommand rejects commands containing a dangerous substring.
func (g *Gate) checkCommand(command string) error {
	lower := strings.ToLower(command)
	for _, bad := range dangerousCommands {
		if strings.Contains(lower, bad) {
			return g.reject("dangerous_command", "command contains %q", bad)
		}
	}
	return nil
}

// checkLimits enforces the resource envelope on well-known parameters.
func (g *Gate) checkLimits(params map[string]any) error {
	if content, ok := params["content"].(string); ok {
		if int64(len(content)) > g.limits.MaxFileSize {
			return g.reject("file_too_large", "content exceeds %d bytes", g.limits.MaxFileSize)
		}
	}
	if raw, ok := params["timeout"]; ok {
		if seconds, ok := toFloat(raw); ok {
			if time.Duration(seconds*float64(time.Second)) > g.limits.MaxTimeout {
				return g.reject("timeout_too_long", "timeout exceeds %s", g.limits.MaxTimeout)
			}
		}
	}
	return nil
}

func (g *Gate) reject(rule, format string, args ...any) error {
	if g.observer != nil {
		g.observer.RecordSafetyRejection(rule)
	}
	return fault.SafetyRejected(format, args...)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
