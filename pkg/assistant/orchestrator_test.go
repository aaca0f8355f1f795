package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/memory"
)

func TestRunPlainChat(t *testing.T) {
	router, adapter := newScriptRouter(t, planReply("The answer is 42.", "NONE"))
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	result, err := o.Run(context.Background(), Request{Message: "what is six times seven?"})
	require.NoError(t, err)

	assert.Equal(t, "The answer is 42.", result.Response)
	assert.NotEmpty(t, result.Model)
	assert.Empty(t, result.Plan)
	assert.False(t, result.NeedsClarification)
	// Understand plus plan, nothing more.
	assert.Equal(t, 2, adapter.callCount())
}

func TestRunEmptyMessage(t *testing.T) {
	router, _ := newScriptRouter(t, planReply("x", "NONE"))
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	_, err := o.Run(context.Background(), Request{Message: "   "})
	assert.Equal(t, fault.KindBadInput, fault.KindOf(err))
}

func TestRunClarificationMarker(t *testing.T) {
	router, adapter := newScriptRouter(t, func(_, _ string) (string, error) {
		return "Which folder do you mean? " + ClarificationMarker, nil
	})
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	result, err := o.Run(context.Background(), Request{Message: "clean it up"})
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Contains(t, result.Response, "Which folder do you mean?")
	assert.NotContains(t, result.Response, ClarificationMarker)
	// No plan call after a clarification request.
	assert.Equal(t, 1, adapter.callCount())
}

func TestRunExecutesToolSteps(t *testing.T) {
	router, _ := newScriptRouter(t, planReply(
		"I will check the machine.",
		"1. check cpu usage\n2. check disk space"))
	cpu := &cannedTool{name: "cpu_usage", output: map[string]any{"percent": 12.5}}
	disk := &cannedTool{name: "disk_usage", output: map[string]any{"percent": 40.0}}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu, disk), nil)

	result, err := o.Run(context.Background(), Request{Message: "how is my machine doing?"})
	require.NoError(t, err)

	require.Len(t, result.Plan, 2)
	assert.Equal(t, 1, cpu.calls)
	assert.Equal(t, 1, disk.calls)

	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Success)
	assert.Equal(t, "cpu_usage", result.Steps[0].Tool)
	assert.True(t, result.Steps[1].Success)
	assert.Equal(t, "disk_usage", result.Steps[1].Tool)
	assert.Contains(t, result.Response, "done")
}

func TestRunLLMStep(t *testing.T) {
	router, _ := newScriptRouter(t, func(_, lastPrompt string) (string, error) {
		switch {
		case strings.Contains(lastPrompt, "numbered plan"):
			return "1. summarize the findings", nil
		case strings.Contains(lastPrompt, "perform this step"):
			return "summary: all good", nil
		default:
			return "Understood.", nil
		}
	})
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	result, err := o.Run(context.Background(), Request{Message: "wrap up the report"})
	require.NoError(t, err)

	require.Len(t, result.Steps, 1)
	assert.Empty(t, result.Steps[0].Tool, "unmapped steps are model steps")
	assert.True(t, result.Steps[0].Success)
	assert.Equal(t, "summary: all good", result.Steps[0].Text)
}

func TestRunErrorBudgetAbortsToClarification(t *testing.T) {
	router, _ := newScriptRouter(t, planReply(
		"Checking.",
		"1. check cpu usage\n2. check cpu usage\n3. check cpu usage\n4. check cpu usage"))
	cpu := &cannedTool{name: "cpu_usage", err: fault.ToolFailed("sensor offline")}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu), nil)

	result, err := o.Run(context.Background(), Request{Message: "check the cpu"})
	require.NoError(t, err)

	assert.True(t, result.NeedsClarification)
	assert.Contains(t, result.Response, "sensor offline")
	// The run stops at the third consecutive failure.
	assert.Equal(t, 3, cpu.calls)
	assert.Len(t, result.Steps, 3)
}

func TestRunTasksCarryActionAndResult(t *testing.T) {
	router, _ := newScriptRouter(t, planReply(
		"Checking.",
		"1. check cpu usage\n2. summarize the findings"))
	cpu := &cannedTool{name: "cpu_usage", output: map[string]any{"percent": 12.5}}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu), nil)

	result, err := o.Run(context.Background(), Request{Message: "how busy is the cpu?"})
	require.NoError(t, err)

	require.Len(t, result.Tasks, 2)
	first, second := result.Tasks[0], result.Tasks[1]

	assert.Equal(t, TaskCompleted, first.Status)
	assert.Equal(t, "cpu_usage", first.ActionType)
	assert.Equal(t, map[string]any{"percent": 12.5}, first.Result)
	assert.Empty(t, first.Dependencies)

	assert.Equal(t, TaskCompleted, second.Status)
	assert.Empty(t, second.ActionType, "unmapped steps stay model steps")
	assert.Equal(t, []string{first.ID}, second.Dependencies)
}

func TestRunTaskFailureMarksTaskFailed(t *testing.T) {
	router, _ := newScriptRouter(t, planReply("Checking.", "1. check cpu usage"))
	cpu := &cannedTool{name: "cpu_usage", err: fault.ToolFailed("sensor offline")}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu), nil)

	result, err := o.Run(context.Background(), Request{Message: "check the cpu"})
	require.NoError(t, err)

	require.Len(t, result.Tasks, 1)
	task := result.Tasks[0]
	assert.Equal(t, TaskFailed, task.Status)
	assert.Contains(t, task.Error, "sensor offline")
	assert.True(t, task.Terminal())
}

func TestRunBackendFailureIsCaptured(t *testing.T) {
	router, _ := newScriptRouter(t, func(modelName, _ string) (string, error) {
		return "", fault.BackendUnavailable("model %s down", modelName)
	})
	o := newTestOrchestrator(t, router, newTestExecutor(t), nil)

	result, err := o.Run(context.Background(), Request{Message: "hello"})
	require.NoError(t, err, "backend failures are captured, not raised")
	assert.Contains(t, result.Response, "could not reach a model backend")
}

func TestRunReflectWritesMemory(t *testing.T) {
	store := newTestMemory(t)
	router, _ := newScriptRouter(t, planReply("On it.", "1. check cpu usage"))
	cpu := &cannedTool{name: "cpu_usage", output: "ok"}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu), store)

	_, err := o.Run(context.Background(), Request{Message: "check cpu", UseMemory: true})
	require.NoError(t, err)

	successes, err := store.Collection(memory.CollectionSuccesses)
	require.NoError(t, err)
	assert.Equal(t, 1, successes.Count())

	n, err := store.ShortTerm().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "every turn lands in the short-term log")
}

func TestRunFailureWritesFailurePattern(t *testing.T) {
	store := newTestMemory(t)
	router, _ := newScriptRouter(t, planReply("On it.",
		"1. check cpu usage\n2. check cpu usage\n3. check cpu usage"))
	cpu := &cannedTool{name: "cpu_usage", err: fault.ToolFailed("sensor offline")}
	o := newTestOrchestrator(t, router, newTestExecutor(t, cpu), store)

	_, err := o.Run(context.Background(), Request{Message: "check cpu", UseMemory: true})
	require.NoError(t, err)

	failures, err := store.Collection(memory.CollectionFailures)
	require.NoError(t, err)
	assert.Equal(t, 1, failures.Count())

	successes, err := store.Collection(memory.CollectionSuccesses)
	require.NoError(t, err)
	assert.Zero(t, successes.Count())
}

func TestPhaseTransitions(t *testing.T) {
	assert.NoError(t, ValidateTransition(PhaseUnderstand, PhasePlan))
	assert.NoError(t, ValidateTransition(PhaseUnderstand, PhaseReflect))
	assert.NoError(t, ValidateTransition(PhaseVerify, PhaseUnderstand))
	assert.NoError(t, ValidateTransition(PhaseReflect, PhaseDone))

	assert.Error(t, ValidateTransition(PhaseUnderstand, PhaseVerify))
	assert.Error(t, ValidateTransition(PhaseDone, PhaseUnderstand))
	assert.Error(t, ValidateTransition(PhaseExecute, PhaseReflect))

	assert.True(t, PhaseDone.IsTerminal())
	assert.False(t, PhaseReflect.IsTerminal())
}

func TestTaskStatusMonotone(t *testing.T) {
	task := NewTask("do the thing")
	assert.Equal(t, TaskPending, task.Status)

	require.NoError(t, task.SetStatus(TaskInProgress))
	require.NoError(t, task.Complete("done"))
	assert.True(t, task.Terminal())

	assert.Error(t, task.SetStatus(TaskInProgress), "status never moves backwards")
	assert.Error(t, task.Fail("late"), "terminal status never changes")
}

func TestParsePlan(t *testing.T) {
	text := "Here is the plan:\n1. first step\n2) second step\n3 - third step\nnot a step\n4. fourth step"
	assert.Equal(t,
		[]string{"first step", "second step", "third step", "fourth step"},
		parsePlan(text, 10))

	assert.Equal(t, []string{"first step", "second step"}, parsePlan(text, 2))
	assert.Empty(t, parsePlan("NONE", 10))
	assert.Empty(t, parsePlan("no numbered content at all", 10))
}

func TestMapStepToAction(t *testing.T) {
	tests := []struct {
		step string
		tool string
	}{
		{"take a screenshot of the desktop", "screenshot"},
		{"search the web for golang generics", "web_search"},
		{"check cpu usage", "cpu_usage"},
		{"check memory usage", "memory_usage"},
		{"look at disk space", "disk_usage"},
		{"gather system info", "system_info"},
		{"git init my-repo", "git_init"},
		{"run git status", "git_status"},
	}
	for _, tt := range tests {
		action, ok := mapStepToAction(tt.step)
		require.True(t, ok, "step %q must map to a tool", tt.step)
		assert.Equal(t, tt.tool, action.Type, "step %q", tt.step)
	}

	_, ok := mapStepToAction("write a poem about autumn")
	assert.False(t, ok)

	action, ok := mapStepToAction("search the web for weather in haifa")
	require.True(t, ok)
	assert.Equal(t, "weather in haifa", action.Parameters["query"])

	action, ok = mapStepToAction("git init demo-repo")
	require.True(t, ok)
	assert.Equal(t, "demo-repo", action.Parameters["name"])
}
