package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/tools/safety"
)

// fakeTool is a scriptable handler for executor tests.
type fakeTool struct {
	name      string
	dangerous bool
	validate  func(map[string]any) error
	execute   func(context.Context, map[string]any) (any, error)
	calls     int
}

func (f *fakeTool) Name() string    { return f.name }
func (f *fakeTool) Dangerous() bool { return f.dangerous }

func (f *fakeTool) Validate(params map[string]any) error {
	if f.validate != nil {
		return f.validate(params)
	}
	return nil
}

func (f *fakeTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	f.calls++
	return f.execute(ctx, params)
}

func newTestExecutor(t *testing.T, requireConfirmation bool, tools ...Tool) *Executor {
	t.Helper()
	var executor *Executor
	gate := safety.NewGate(safety.Config{
		RequireConfirmation: requireConfirmation,
		KnownTool:           func(name string) bool { return executor.Has(name) },
		DangerousTool:       func(name string) bool { return executor.IsDangerous(name) },
	})
	executor, err := NewExecutor(ExecutorConfig{Gate: gate, Logger: logger.Nop()})
	require.NoError(t, err)
	executor.Register(tools...)
	return executor
}

func TestExecuteSuccessEnvelope(t *testing.T) {
	tool := &fakeTool{name: "echo", execute: func(_ context.Context, p map[string]any) (any, error) {
		return p["value"], nil
	}}
	executor := newTestExecutor(t, false, tool)

	result := executor.Execute(context.Background(), safety.Action{
		Type: "echo", Parameters: map[string]any{"value": "hi"},
	})
	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Output)
	assert.Empty(t, result.Error)
	assert.GreaterOrEqual(t, result.Duration, 0.0)
}

func TestExecuteUnknownToolListsAvailable(t *testing.T) {
	executor := newTestExecutor(t, false,
		&fakeTool{name: "alpha", execute: func(context.Context, map[string]any) (any, error) { return nil, nil }},
		&fakeTool{name: "beta", execute: func(context.Context, map[string]any) (any, error) { return nil, nil }},
	)

	result := executor.Execute(context.Background(), safety.Action{Type: "gamma"})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindUnknownTool, result.Kind)
	assert.Contains(t, result.Error, "alpha")
	assert.Contains(t, result.Error, "beta")
}

func TestExecutePanicBecomesEnvelope(t *testing.T) {
	tool := &fakeTool{name: "boom", execute: func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	}}
	executor := newTestExecutor(t, false, tool)

	result := executor.Execute(context.Background(), safety.Action{Type: "boom"})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindToolFailed, result.Kind)
	assert.Contains(t, result.Error, "kaboom")
}

func TestExecuteValidationFailure(t *testing.T) {
	tool := &fakeTool{
		name:     "strict",
		validate: func(p map[string]any) error { return fault.BadInput("missing thing") },
		execute:  func(context.Context, map[string]any) (any, error) { return "never", nil },
	}
	executor := newTestExecutor(t, false, tool)

	result := executor.Execute(context.Background(), safety.Action{Type: "strict"})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindBadInput, result.Kind)
	assert.Zero(t, tool.calls, "handler must not run after validation failure")
}

func TestExecuteGateBlocksBeforeHandler(t *testing.T) {
	tool := &fakeTool{name: "write", dangerous: true,
		execute: func(context.Context, map[string]any) (any, error) { return "wrote", nil }}
	executor := newTestExecutor(t, true, tool)

	result := executor.Execute(context.Background(), safety.Action{Type: "write"})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindSafetyRejected, result.Kind)
	assert.Zero(t, tool.calls, "handler must not run after gate rejection")

	confirmed := executor.Execute(context.Background(), safety.Action{Type: "write", Confirmed: true})
	assert.True(t, confirmed.Success)
	assert.Equal(t, 1, tool.calls)
}

func TestExecuteToolErrorsKeepKind(t *testing.T) {
	tool := &fakeTool{name: "flaky", execute: func(context.Context, map[string]any) (any, error) {
		return nil, fault.ToolFailed("downstream said no")
	}}
	executor := newTestExecutor(t, false, tool)

	result := executor.Execute(context.Background(), safety.Action{Type: "flaky"})
	assert.False(t, result.Success)
	assert.Equal(t, fault.KindToolFailed, result.Kind)
	assert.Contains(t, result.Error, "downstream said no")
}

func TestEnvelopeInvariant(t *testing.T) {
	// Every result satisfies (success ∧ output path) ∨ (failure ∧ error).
	tools := []Tool{
		&fakeTool{name: "ok", execute: func(context.Context, map[string]any) (any, error) { return 1, nil }},
		&fakeTool{name: "bad", execute: func(context.Context, map[string]any) (any, error) {
			return nil, fault.ToolFailed("nope")
		}},
	}
	executor := newTestExecutor(t, false, tools...)

	for _, name := range []string{"ok", "bad", "missing"} {
		result := executor.Execute(context.Background(), safety.Action{Type: name})
		if result.Success {
			assert.NotNil(t, result.Output)
			assert.Empty(t, result.Error)
		} else {
			assert.NotEmpty(t, result.Error)
		}
	}
}
