package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/assistant"
	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/model"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/tools/safety"
)

var errFailedSensor = fault.ToolFailed("sensor offline")

// scriptAdapter answers every provider with a reply function keyed on the
// final prompt message.
type scriptAdapter struct {
	reply func(modelName, lastPrompt string) (string, error)

	mu    sync.Mutex
	calls int
}

func (s *scriptAdapter) Provider() string { return model.ProviderCloudChat }

func (s *scriptAdapter) Invoke(_ context.Context, modelName string, messages []model.Message, _ model.Options) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.reply(modelName, messages[len(messages)-1].Content)
}

// chatReply answers the plan prompt with NONE and everything else with text.
func chatReply(text string) func(string, string) (string, error) {
	return func(_, lastPrompt string) (string, error) {
		if strings.Contains(lastPrompt, "numbered plan") {
			return "NONE", nil
		}
		return text, nil
	}
}

type cannedTool struct {
	name      string
	dangerous bool
	output    any
	err       error
	calls     int
}

func (c *cannedTool) Name() string                  { return c.name }
func (c *cannedTool) Dangerous() bool               { return c.dangerous }
func (c *cannedTool) Validate(map[string]any) error { return nil }

func (c *cannedTool) Execute(context.Context, map[string]any) (any, error) {
	c.calls++
	return c.output, c.err
}

func newTestExecutor(t *testing.T, registered ...tools.Tool) *tools.Executor {
	t.Helper()
	gate := safety.NewGate(safety.Config{})
	executor, err := tools.NewExecutor(tools.ExecutorConfig{Gate: gate, Logger: logger.Nop()})
	require.NoError(t, err)
	executor.Register(registered...)
	return executor
}

func newTestRouter(t *testing.T, reply func(string, string) (string, error)) *model.Router {
	t.Helper()
	cfg := config.DefaultConfig().Models
	registry, err := model.NewRegistry(cfg.Registry)
	require.NoError(t, err)

	adapter := &scriptAdapter{reply: reply}
	router, err := model.NewRouter(registry, map[string]model.Adapter{
		model.ProviderCloudChat: adapter,
		model.ProviderLocalChat: adapter,
		model.ProviderCitations: adapter,
	}, &cfg)
	require.NoError(t, err)
	return router
}

func newTestOrchestrator(t *testing.T, router *model.Router, executor *tools.Executor) *assistant.Orchestrator {
	t.Helper()
	o, err := assistant.New(assistant.Options{
		Router: router,
		Tools:  executor,
		Limits: config.LimitsConfig{RequestBudget: 30 * time.Second, MaxPlanSteps: 10, MaxStepErrors: 3},
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return o
}

func newChatHandler(t *testing.T, reply func(string, string) (string, error), registered ...tools.Tool) *ChatHandler {
	t.Helper()
	router := newTestRouter(t, reply)
	executor := newTestExecutor(t, registered...)
	return NewChatHandler(newTestOrchestrator(t, router, executor), logger.Nop())
}
