package assistant

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/memory"
	"github.com/attache/attache/pkg/model"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/tools/safety"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// badger keeps background goroutines between open and close.
		goleak.IgnoreTopFunction("github.com/dgraph-io/badger/v4.(*DB).monitorCompression"),
	)
}

// scriptAdapter answers every provider with a reply function keyed on the
// final prompt message.
type scriptAdapter struct {
	provider string
	reply    func(modelName, lastPrompt string) (string, error)

	mu    sync.Mutex
	calls []string
}

func (s *scriptAdapter) Provider() string { return s.provider }

func (s *scriptAdapter) Invoke(_ context.Context, modelName string, messages []model.Message, _ model.Options) (string, error) {
	last := messages[len(messages)-1].Content
	s.mu.Lock()
	s.calls = append(s.calls, last)
	s.mu.Unlock()
	return s.reply(modelName, last)
}

func (s *scriptAdapter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// newScriptRouter wires the default registry to one scripted adapter for
// every provider.
func newScriptRouter(t *testing.T, reply func(modelName, lastPrompt string) (string, error)) (*model.Router, *scriptAdapter) {
	t.Helper()
	cfg := config.DefaultConfig().Models
	registry, err := model.NewRegistry(cfg.Registry)
	require.NoError(t, err)

	adapter := &scriptAdapter{provider: model.ProviderCloudChat, reply: reply}
	router, err := model.NewRouter(registry, map[string]model.Adapter{
		model.ProviderCloudChat: adapter,
		model.ProviderLocalChat: adapter,
		model.ProviderCitations: adapter,
	}, &cfg)
	require.NoError(t, err)
	return router, adapter
}

// cannedTool is a minimal handler for orchestration tests.
type cannedTool struct {
	name   string
	output any
	err    error
	mu     sync.Mutex
	calls  int
}

func (c *cannedTool) Name() string                         { return c.name }
func (c *cannedTool) Dangerous() bool                      { return false }
func (c *cannedTool) Validate(params map[string]any) error { return nil }

func (c *cannedTool) Execute(context.Context, map[string]any) (any, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
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

// stubEmbedder avoids an embedding service in memory-backed tests.
type stubEmbedder struct{ dim int }

func (e stubEmbedder) Dimension() int { return e.dim }

func (e stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	h := fnv.New64a()
	for i := range vec {
		h.Write([]byte(text))
		vec[i] = float32(h.Sum64()%100) / 100
	}
	return vec, nil
}

func newTestMemory(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.Open(config.MemoryConfig{
		Path:            t.TempDir(),
		VectorDimension: 8,
		RecallWindow:    time.Hour,
		RecallTopK:      2,
	}, stubEmbedder{dim: 8}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestOrchestrator(t *testing.T, router *model.Router, executor *tools.Executor, store *memory.Store) *Orchestrator {
	t.Helper()
	o, err := New(Options{
		Router: router,
		Tools:  executor,
		Memory: store,
		Limits: config.LimitsConfig{RequestBudget: 30 * time.Second, MaxPlanSteps: 10, MaxStepErrors: 3},
		Logger: logger.Nop(),
	})
	require.NoError(t, err)
	return o
}

// planReply builds a reply function that answers the plan prompt with
// planText and everything else with chatText.
func planReply(chatText, planText string) func(string, string) (string, error) {
	return func(_, lastPrompt string) (string, error) {
		if strings.Contains(lastPrompt, "numbered plan") {
			return planText, nil
		}
		return chatText, nil
	}
}
