package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-ai/reactor/internal/config"
	"github.com/kestrel-ai/reactor/internal/credentials"
	"github.com/kestrel-ai/reactor/internal/llm"
	"github.com/kestrel-ai/reactor/internal/memory"
	"github.com/kestrel-ai/reactor/internal/policy"
	"github.com/kestrel-ai/reactor/internal/poolstore"
	"github.com/kestrel-ai/reactor/internal/reactor"
	httptransport "github.com/kestrel-ai/reactor/internal/transport/http"
	"github.com/kestrel-ai/reactor/internal/tools"
	"github.com/kestrel-ai/reactor/internal/triggers"
)

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reactor HTTP server",
		Long: `Start the reactor HTTP server.

The server will:
1. Load configuration from the specified file (or reactor.yaml)
2. Initialize the configured LLM provider and storage backends
3. Register the reference Agent-Tools and start the trigger engine
4. Serve POST /chat, POST /stream, GET /health and GET /metrics

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  reactor serve
  reactor serve --config /etc/reactor/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "reactor.yaml", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadServeConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	tracer, shutdownTracer, err := reactor.NewTracer(reactor.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.EnableInsecure,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	provider, err := buildLLMProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}

	memStore, err := buildMemoryStore(cfg.Memory)
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}

	// The credential store is opened only to validate its configuration;
	// none of the reference tools in internal/tools use per-tenant credentials.
	if _, err := credentials.NewStore(cfg.Credential.DSN); err != nil {
		return fmt.Errorf("credential store: %w", err)
	}

	poolPersistence, err := buildPoolPersistence(cfg.Pool.Backend)
	if err != nil {
		return fmt.Errorf("pool persistence: %w", err)
	}

	registry := reactor.NewAgentRegistry()
	registry.Register(tools.SendEmailSpec(), tools.NewSendEmailFactory(nil))
	registry.Register(tools.TransferFundsSpec(), tools.NewTransferFundsFactory(nil))

	pool := reactor.NewAgentPool(registry, poolPersistence, cfg.Loop.MaxAgentsPerTenant, logger)
	if err := pool.Restore(ctx); err != nil {
		return fmt.Errorf("restore pool: %w", err)
	}
	pool.StartSweeper(cfg.Loop.PoolSweepInterval)
	defer pool.Stop()

	plainTools := []reactor.Tool{tools.WeatherTool{}, tools.NewListAgentsTool(registry)}
	catalog, err := reactor.NewToolCatalog(plainTools, registry)
	if err != nil {
		return fmt.Errorf("tool catalog: %w", err)
	}

	ctxMgr := reactor.NewContextManager(cfg.Loop)
	invoker := reactor.NewToolInvoker(catalog, pool, ctxMgr, cfg.Loop).WithTracer(tracer)
	loop := reactor.NewReactLoop(provider, invoker, catalog, ctxMgr, cfg.Loop, logger).WithTracer(tracer)

	// orchestrator is assigned below; the trigger dispatcher closes over it
	// by reference since the trigger engine must exist before the
	// ApprovalCoordinator (which the orchestrator needs), and the trigger
	// engine needs a dispatcher that calls back into the orchestrator.
	var orchestrator *reactor.Orchestrator
	triggerEngine := triggers.NewEngine(func(ctx context.Context, tenantID, content string) (string, error) {
		result, err := orchestrator.HandleMessage(ctx, reactor.InboundMessage{TenantID: tenantID, Content: content})
		if err != nil {
			return "", err
		}
		if len(result.PendingApprovals) > 0 {
			return result.PendingApprovals[0].AgentID, nil
		}
		return "", nil
	}, logger)
	approval := reactor.NewApprovalCoordinator(pool, registry, triggerEngine)

	gate := policy.NewTenantGate(cfg.Approval.AllowList, cfg.Approval.DenyList)
	orchestrator = reactor.NewOrchestrator(loop, pool, approval, memStore, gate, nil, logger)

	for _, def := range cfg.Trigger.Definitions {
		if _, err := triggerEngine.Register(triggers.Definition{
			Name: def.Name, TenantID: def.TenantID, CronExpr: def.CronExpr, Content: def.Content,
		}); err != nil {
			return fmt.Errorf("register trigger %q: %w", def.Name, err)
		}
	}
	triggerEngine.Start()
	defer func() { <-triggerEngine.Stop().Done() }()

	tenantIDs := make(map[string]struct{}, len(cfg.Trigger.Definitions))
	for _, def := range cfg.Trigger.Definitions {
		tenantIDs[def.TenantID] = struct{}{}
	}
	expiryTicker := time.NewTicker(cfg.Loop.PoolSweepInterval)
	defer expiryTicker.Stop()
	go func() {
		for range expiryTicker.C {
			for tenantID := range tenantIDs {
				approval.ExpireOverdue(ctx, tenantID, triggerEngine.PendingByAgent(tenantID))
			}
		}
	}()

	server := httptransport.NewServer(orchestrator, cfg.Server.AuthSecret, logger)
	httpServer := &http.Server{Addr: cfg.Server.Addr(), Handler: server.Mux()}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reactor listening", "addr", cfg.Server.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}
	return httpServer.Shutdown(context.Background())
}

func loadServeConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return nil, err
	}
	return config.Load(path)
}

func buildLLMProvider(cfg config.LLMConfig) (reactor.LLMProvider, error) {
	providerCfg, ok := cfg.Providers[cfg.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("no provider config for %q", cfg.DefaultProvider)
	}
	switch cfg.DefaultProvider {
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey: providerCfg.APIKey, BaseURL: providerCfg.BaseURL,
			MaxRetries: providerCfg.MaxRetries, RetryDelay: providerCfg.RetryDelay,
			DefaultModel: providerCfg.DefaultModel,
		})
	default:
		return llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey: providerCfg.APIKey, BaseURL: providerCfg.BaseURL,
			MaxRetries: providerCfg.MaxRetries, RetryDelay: providerCfg.RetryDelay,
			DefaultModel: providerCfg.DefaultModel,
		})
	}
}

func buildMemoryStore(cfg config.BackendConfig) (reactor.MemoryProvider, error) {
	switch cfg.Kind {
	case "memory", "":
		return memory.NewInMemoryStore(), nil
	default:
		return memory.NewSQLiteStore(cfg.DSN)
	}
}

func buildPoolPersistence(cfg config.BackendConfig) (reactor.PoolPersistence, error) {
	switch cfg.Kind {
	case "postgres":
		return poolstore.NewPostgresStore(cfg.DSN)
	default:
		return poolstore.NewSQLiteStore(cfg.DSN)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
