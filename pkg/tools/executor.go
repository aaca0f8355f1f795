// Package tools implements the side-effect layer: a typed registry of named
// handlers dispatched through a single Executor, each guarded by the safety
// gate and reporting through a uniform result envelope.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/tools/safety"
)

// Result is the envelope every tool invocation produces. Exactly one of
// Output (on success) and Error (on failure) is meaningful.
type Result struct {
	Success  bool       `json:"success"`
	Output   any        `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
	Kind     fault.Kind `json:"kind,omitempty"`
	Duration float64    `json:"duration"`
}

// Tool is one named handler with a fixed parameter shape.
type Tool interface {
	// Name is the registry key.
	Name() string

	// Dangerous reports whether the tool writes, executes, sends, or
	// installs. Dangerous tools are subject to the confirmation rule.
	Dangerous() bool

	// Validate checks the parameter bag before execution. Failures are
	// bad_input faults.
	Validate(params map[string]any) error

	// Execute runs the tool. The returned value becomes Result.Output.
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ExecutionObserver receives per-invocation telemetry. Implemented by the
// metrics manager; nil is allowed.
type ExecutionObserver interface {
	RecordToolExecution(tool, outcome string, duration time.Duration)
}

// Executor dispatches named actions to registered tools.
type Executor struct {
	mu       sync.RWMutex
	registry map[string]Tool

	gate     *safety.Gate
	log      logger.Logger
	observer ExecutionObserver
	timeout  time.Duration
}

// ExecutorConfig holds Executor construction parameters.
type ExecutorConfig struct {
	// Gate is consulted before every dispatch. Required.
	Gate *safety.Gate

	// Logger defaults to the global logger.
	Logger logger.Logger

	// Observer receives execution telemetry. Optional.
	Observer ExecutionObserver

	// Timeout bounds a single tool execution. Defaults to 300 s.
	Timeout time.Duration
}

// NewExecutor builds an empty Executor. Tools are added with Register.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Gate == nil {
		return nil, fmt.Errorf("executor requires a safety gate")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Global()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Executor{
		registry: make(map[string]Tool),
		gate:     cfg.Gate,
		log:      log,
		observer: cfg.Observer,
		timeout:  timeout,
	}, nil
}

// Register adds tools to the registry. Re-registering a name replaces the
// previous handler.
func (e *Executor) Register(tools ...Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range tools {
		e.registry[t.Name()] = t
	}
}

// Has reports whether a tool name is registered.
func (e *Executor) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.registry[name]
	return ok
}

// IsDangerous reports whether the named tool has side effects. Unknown names
// are treated as dangerous.
func (e *Executor) IsDangerous(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.registry[name]
	if !ok {
		return true
	}
	return t.Dangerous()
}

// Names returns all registered tool names, sorted.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.registry))
	for name := range e.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one action through the gate and its handler, converting every
// failure mode into the envelope. It never returns an error to the caller.
func (e *Executor) Execute(ctx context.Context, action safety.Action) Result {
	start := time.Now()

	e.mu.RLock()
	tool, ok := e.registry[action.Type]
	e.mu.RUnlock()

	if !ok {
		err := fault.UnknownTool("no tool named %q; available: %s",
			action.Type, strings.Join(e.Names(), ", "))
		return e.finish(action.Type, start, nil, err)
	}

	if err := e.gate.Check(action); err != nil {
		return e.finish(action.Type, start, nil, err)
	}

	if err := tool.Validate(action.Parameters); err != nil {
		if fault.KindOf(err) == fault.KindUnknown {
			err = fault.BadInput("%s: %v", action.Type, err)
		}
		return e.finish(action.Type, start, nil, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	output, err := e.run(ctx, tool, action.Parameters)
	return e.finish(action.Type, start, output, err)
}

// run invokes the handler and converts panics into tool_failed errors, so a
// misbehaving handler can never take the process down.
func (e *Executor) run(ctx context.Context, tool Tool, params map[string]any) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.ErrorContext(ctx, "tool handler panicked",
				"tool", tool.Name(), "panic", fmt.Sprint(r))
			output = nil
			err = fault.ToolFailed("%s panicked: %v", tool.Name(), r)
		}
	}()
	output, err = tool.Execute(ctx, params)
	if err != nil && fault.KindOf(err) == fault.KindUnknown {
		err = fault.ToolFailed("%s: %v", tool.Name(), err)
	}
	return output, err
}

// finish builds the envelope and emits telemetry.
func (e *Executor) finish(name string, start time.Time, output any, err error) Result {
	elapsed := time.Since(start)
	result := Result{
		Success:  err == nil,
		Output:   output,
		Duration: elapsed.Seconds(),
	}

	outcome := "success"
	if err != nil {
		result.Error = err.Error()
		result.Kind = fault.KindOf(err)
		outcome = string(result.Kind)
		e.log.Warn("tool execution failed",
			"tool", name, "kind", result.Kind, "error", err.Error(), "duration", elapsed.String())
	} else {
		e.log.Debug("tool executed",
			"tool", name, "duration", elapsed.String())
	}

	if e.observer != nil {
		e.observer.RecordToolExecution(name, outcome, elapsed)
	}
	return result
}
