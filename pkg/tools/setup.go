package tools

import (
	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/tools/safety"
)

// Observer is the combined telemetry surface the tool layer reports to.
// The metrics manager satisfies it.
type Observer interface {
	ExecutionObserver
	safety.RejectionObserver
}

// Stack bundles the assembled tool layer and its closeable resources.
type Stack struct {
	Executor *Executor
	Gate     *safety.Gate
	Browser  *BrowserSession
	Repo     *RepoHandle
}

// Close releases long-lived tool resources.
func (s *Stack) Close() error {
	if s.Browser != nil {
		return s.Browser.Close()
	}
	return nil
}

// NewStack wires the full tool registry from configuration. Families gated
// off in config are simply not registered, so the executor reports them as
// unknown tools.
func NewStack(cfg config.ToolsConfig, safetyCfg config.SafetyConfig, ws *Workspace, log logger.Logger, observer Observer) (*Stack, error) {
	if log == nil {
		log = logger.Global()
	}

	// The gate closures late-bind over the executor variable; the gate is
	// never consulted before NewExecutor below assigns it.
	var executor *Executor
	gate := safety.NewGate(safety.Config{
		RequireConfirmation: safetyCfg.RequireConfirmation,
		Limits: safety.Limits{
			MaxFileSize: safetyCfg.MaxFileSize,
			MaxTimeout:  safetyCfg.MaxToolTimeout,
		},
		KnownTool:     func(name string) bool { return executor.Has(name) },
		DangerousTool: func(name string) bool { return executor.IsDangerous(name) },
		Observer:      observer,
	})

	executor, err := NewExecutor(ExecutorConfig{
		Gate:     gate,
		Logger:   log,
		Observer: observer,
		Timeout:  safetyCfg.MaxToolTimeout,
	})
	if err != nil {
		return nil, err
	}

	executor.Register(
		NewCreateFolderTool(ws),
		NewCreateFileTool(ws),
		NewReadFileTool(ws),
		CPUUsageTool{},
		MemoryUsageTool{},
		DiskUsageTool{},
		ProcessListTool{},
		SystemInfoTool{},
		NewScreenshotTool(ws),
		NewCaptureRegionTool(ws),
		NewBashTool(ws),
		NewDatabaseQueryTool(ws, gate),
	)

	media := NewMediaClient(cfg.Media.ImageURL, cfg.Media.VideoURL, cfg.Media.TTSURL, ws)
	executor.Register(
		NewGenerateImageTool(media),
		NewGenerateVideoTool(media),
		NewSpeakTool(media),
	)

	stack := &Stack{Executor: executor, Gate: gate}

	if cfg.EnableGit {
		repo := NewRepoHandle(ws)
		executor.Register(
			NewGitInitTool(repo),
			NewGitCloneTool(repo),
			NewGitAddTool(repo),
			NewGitCommitTool(repo),
			NewGitPushTool(repo),
			NewGitStatusTool(repo),
		)
		stack.Repo = repo
	}

	if cfg.EnableBrowser {
		session := NewBrowserSession(cfg.BrowserHeadless, log)
		executor.Register(
			NewWebSearchTool(session),
			NewNavigateURLTool(session),
			NewExtractWebpageTool(session),
		)
		stack.Browser = session
	}

	log.Info("tool registry assembled",
		"tools", len(executor.Names()),
		"git", cfg.EnableGit,
		"browser", cfg.EnableBrowser)
	return stack, nil
}
