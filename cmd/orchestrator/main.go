package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	temporalclient "go.temporal.io/sdk/client"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"github.com/agentcore-dev/agentcore/go/internal/action"
	"github.com/agentcore-dev/agentcore/go/internal/capability"
	"github.com/agentcore-dev/agentcore/go/internal/config"
	"github.com/agentcore-dev/agentcore/go/internal/dispatch"
	"github.com/agentcore-dev/agentcore/go/internal/history"
	"github.com/agentcore-dev/agentcore/go/internal/httpapi"
	"github.com/agentcore-dev/agentcore/go/internal/llm"
	"github.com/agentcore-dev/agentcore/go/internal/notify"
	"github.com/agentcore-dev/agentcore/go/internal/orchestrator"
	"github.com/agentcore-dev/agentcore/go/internal/store"
	"github.com/agentcore-dev/agentcore/go/internal/turn"
)

const defaultConfigPath = "config/orchestrator.yaml"

func main() {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()
	log := zapr.NewLogger(zapLog)

	if err := run(configPath, log); err != nil {
		log.Error(err, "orchestrator exited")
		os.Exit(1)
	}
}

func run(configPath string, log logr.Logger) error {
	cfg, err := loadConfiguration(configPath, log)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("starting turn orchestrator",
		"temporal", cfg.Temporal.HostPort,
		"taskQueue", cfg.Temporal.TaskQueue,
		"httpAddr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"agents", len(cfg.Agents))

	st, err := store.NewGormStore(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}

	temporalClient, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to temporal: %w", err)
	}
	defer temporalClient.Close()

	registry := capability.NewRegistry()
	if err := action.RegisterMCP(registry); err != nil {
		return fmt.Errorf("failed to register mcp executor: %w", err)
	}
	if err := action.RegisterStatic(registry); err != nil {
		return fmt.Errorf("failed to register static executor: %w", err)
	}

	resolver := capability.NewStaticResolver(cfg.AgentDefinitions())
	notifier := notify.NewChannelNotifier(log)
	lifecycle := turn.NewLifecycle(st, notifier, log)
	metrics := orchestrator.NewMetrics(prometheus.DefaultRegisterer)
	runner := action.NewRunner(registry, cfg.Orchestrator.ActionTimeout, log)
	dispatcher := dispatch.NewTemporalDispatcher(temporalClient, cfg.Temporal.TaskQueue, log)

	core := orchestrator.NewCore(st, lifecycle, resolver, runner, dispatcher,
		cfg.Orchestrator.MaxCycles, metrics, log)
	assembler := history.NewAssembler(st, cfg.Orchestrator.HistoryWindow, log)

	llmClient, err := buildLLMClient(cfg, log)
	if err != nil {
		return err
	}

	loop := orchestrator.NewLoop(core, assembler, llmClient, resolver, lifecycle, st,
		orchestrator.LoopOptions{
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temp,
		}, log)

	activities := dispatch.NewActivities(loop, core, log)
	worker := dispatch.NewWorker(temporalClient, activities, dispatch.WorkerOptions{
		TaskQueue: cfg.Temporal.TaskQueue,
	}, log)
	if err := worker.Start(); err != nil {
		return fmt.Errorf("failed to start continuation worker: %w", err)
	}
	defer worker.Stop()

	defaultAgent := cfg.Agents[0].Name
	server := httpapi.NewServer(st, loop, core, lifecycle, resolver, defaultAgent, log)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Orchestrator.DefaultTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

func loadConfiguration(configPath string, log logr.Logger) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info("config file not found, using defaults", "path", configPath)
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg, configPath); err != nil {
			log.Info("could not write default config", "path", configPath, "error", err.Error())
		}
		return cfg, nil
	}
	return config.LoadConfig(configPath)
}

func buildLLMClient(cfg *config.Config, log logr.Logger) (llm.Client, error) {
	providers := llm.NewRegistry()
	openAI := llm.NewOpenAICompatibleClient(cfg.LLM.Endpoint, cfg.LLM.APIKey, cfg.LLM.Model, log)
	_ = providers.Register("openai", openAI)
	_ = providers.Register("openai-compatible", openAI)
	_ = providers.Register("mock", llm.NewMockClient())

	client, err := providers.Get(cfg.LLM.Provider)
	if err != nil {
		return nil, fmt.Errorf("unsupported llm provider %q (available: %v)", cfg.LLM.Provider, providers.List())
	}
	return client, nil
}
