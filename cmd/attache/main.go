package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/attache/attache/config"
	"github.com/attache/attache/pkg/api"
	"github.com/attache/attache/pkg/api/handlers"
	"github.com/attache/attache/pkg/assistant"
	"github.com/attache/attache/pkg/logger"
	"github.com/attache/attache/pkg/memory"
	"github.com/attache/attache/pkg/metrics"
	"github.com/attache/attache/pkg/model"
	"github.com/attache/attache/pkg/telemetry/tracing"
	"github.com/attache/attache/pkg/tools"
	"github.com/attache/attache/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	serverPort = flag.Int("port", 0, "Override server port")
	workspace  = flag.String("workspace", "", "Override workspace root")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	if *helpFlag {
		printHelp()
		os.Exit(0)
	}
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(*configPath, buildOverrides())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		return 1
	}

	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)
	defer log.Close()

	log.Info("Starting Attaché",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)
	log.Debug("Configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		return 1
	}

	// Metrics
	metricsCfg := metrics.DefaultConfig()
	metricsCfg.Enabled = cfg.Metrics.Enabled
	if cfg.Metrics.Path != "" {
		metricsCfg.Path = cfg.Metrics.Path
	}
	metricsManager := metrics.NewManager(metricsCfg)

	// Workspace and tool stack
	ws, err := tools.NewWorkspace(cfg.Workspace.Root)
	if err != nil {
		log.Error("Failed to create workspace", "error", err, "root", cfg.Workspace.Root)
		return 1
	}
	stack, err := tools.NewStack(cfg.Tools, cfg.Safety, ws, log, metricsManager)
	if err != nil {
		log.Error("Failed to assemble tool stack", "error", err)
		return 1
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Error("Error closing tool stack", "error", err)
		}
	}()

	// Memory layer
	memCfg := cfg.Memory
	if memCfg.Path != "" && !filepath.IsAbs(memCfg.Path) {
		memCfg.Path = filepath.Join(ws.Root(), memCfg.Path)
	}
	embedder, err := memory.NewHTTPEmbedder(
		memCfg.EmbeddingURL, memCfg.EmbeddingModel,
		memCfg.VectorDimension, memCfg.EmbeddingCacheSize)
	if err != nil {
		log.Error("Failed to create embedder", "error", err)
		return 1
	}
	store, err := memory.Open(memCfg, embedder, log)
	if err != nil {
		log.Error("Failed to open memory store", "error", err, "path", memCfg.Path)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing memory store", "error", err)
		}
	}()
	log.Info("Memory store opened", "path", memCfg.Path, "dimension", memCfg.VectorDimension)

	// Model registry, adapters, and router
	registry, err := model.NewRegistry(cfg.Models.Registry)
	if err != nil {
		log.Error("Invalid model registry", "error", err)
		return 1
	}
	router, err := model.NewRouter(registry, buildAdapters(cfg), &cfg.Models,
		model.WithObserver(metricsManager), model.WithLogger(log))
	if err != nil {
		log.Error("Failed to create model router", "error", err)
		return 1
	}

	// Orchestrator
	orchestrator, err := assistant.New(assistant.Options{
		Router:   router,
		Tools:    stack.Executor,
		Memory:   store,
		Limits:   cfg.Limits,
		Logger:   log,
		Observer: metricsManager,
	})
	if err != nil {
		log.Error("Failed to create orchestrator", "error", err)
		return 1
	}

	// HTTP API
	chatSocket := handlers.NewChatSocketHandler(orchestrator, log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxConnections: cfg.Server.WSMaxConnections,
	})
	defer chatSocket.Close()

	apiHandlers := &api.Handlers{
		Chat:           handlers.NewChatHandler(orchestrator, log),
		Tools:          handlers.NewToolsHandler(stack.Executor, log),
		ChatSocket:     chatSocket,
		Health:         handlers.NewHealthHandler(router, stack.Executor, store, chatSocket.Count),
		Metrics:        metricsManager,
		TracingEnabled: cfg.Tracing.Enabled,
	}
	if cfg.Metrics.Enabled {
		apiHandlers.MetricsEndpoint = metricsManager.Handler()
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Hot-reload of the log level when a config file is in use.
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath)
		if err != nil {
			log.Warn("Config watcher disabled", "error", err)
		} else {
			watcher.OnChange(func(next *config.Config) {
				level := logger.ParseLevel(next.Log.Level)
				log.SetLevel(level)
				log.Info("Log level reloaded", "level", level.String())
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil && ctx.Err() == nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
			defer watcher.Close()
		}
	}

	log.Info("Attaché is running",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"tools", len(stack.Executor.Names()),
		"models", registry.Len(),
	)

	code := 0
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
		if sig == syscall.SIGINT {
			code = 130
		}
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
		code = 1
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Attaché stopped gracefully")
	return code
}

// buildAdapters wires one adapter per provider tag, each behind a circuit
// breaker so a dead backend trips fast and feeds the router's fallback.
func buildAdapters(cfg *config.Config) map[string]model.Adapter {
	backends := cfg.Models.Backends

	cloud := backends.OpenAI
	if cloud.APIKey == "" && backends.Anthropic.APIKey != "" {
		cloud = backends.Anthropic
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}
	}

	return map[string]model.Adapter{
		model.ProviderCloudChat: model.WithBreaker(
			model.NewCloudChatAdapter(cloud.BaseURL, cloud.APIKey, cloud.Timeout),
			settings("cloud-chat")),
		model.ProviderLocalChat: model.WithBreaker(
			model.NewLocalChatAdapter(backends.Ollama.Host, backends.Ollama.Timeout),
			settings("local-chat")),
		model.ProviderCitations: model.WithBreaker(
			model.NewCitationsAdapter(backends.Perplexity.BaseURL, backends.Perplexity.APIKey, backends.Perplexity.Timeout),
			settings("citations")),
	}
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *workspace != "" {
		overrides["workspace.root"] = *workspace
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Attaché - Personal Assistant Gateway\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", runtime.Version())
}

func printHelp() {
	fmt.Printf("Attaché - Personal assistant gateway over local and cloud models\n\n")
	fmt.Printf("Usage: attache [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  attache                                   # Run with default config\n")
	fmt.Printf("  attache -config config.yaml               # Use specific config file\n")
	fmt.Printf("  attache -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  attache -version                          # Print version info\n")
}
