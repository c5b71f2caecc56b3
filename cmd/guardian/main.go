// Package main provides the guardian binary entry point.
// Guardian is an incident response assistant for a payment processing
// network: it watches simulated infrastructure scenarios, triages error
// logs, diagnoses root causes with tool-augmented LLM reasoning, and
// produces structured incident reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paymentops/guardian/config"
	"github.com/paymentops/guardian/llm"
	"github.com/paymentops/guardian/model"
	"github.com/paymentops/guardian/scenario"
	"github.com/paymentops/guardian/server"
	"github.com/paymentops/guardian/sop"
	"github.com/paymentops/guardian/tools"
	"github.com/paymentops/guardian/tools/infra"
	"github.com/paymentops/guardian/workflow"
)

const (
	Version = "0.1.0"
	appName = "guardian"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Payment network incident response assistant",
		Long: `Guardian monitors a simulated payment processing network and runs an
automated incident response workflow when failures are injected.

It provides:
- Scenario injection endpoints for demo control (normal, single_failure, triple_failure)
- Log triage, tool-augmented diagnosis, and structured incident reporting
- SOP manual retrieval and network latency probing tools

Without a configured model endpoint every incident falls back to a
deterministic simulated transcript, so the demo works fully offline.`,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(serveCmd(&logLevel))
	cmd.AddCommand(scenarioCmd(&logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func serveCmd(logLevel *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the incident response service",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)

			cfg, err := config.NewLoader(logger).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := buildService(ctx, cfg, logger, scenario.DefaultSimulatorPace)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	deps.handler.RegisterHTTPHandlers(mux)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.RequestLogging(logger, mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Guardian listening",
			"version", Version,
			"addr", cfg.Server.Addr,
			"live_endpoints", deps.registryLive())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	logger.Info("Guardian shutdown complete")
	return nil
}

// service bundles the wired components so serve and the one-shot
// scenario command share the same construction path.
type service struct {
	registry *scenario.Registry
	runner   *scenario.Runner
	handler  *server.Handler

	registryLive func() bool
}

func buildService(ctx context.Context, cfg *config.Config, logger *slog.Logger, pace time.Duration) (*service, error) {
	modelRegistry := cfg.Registry()
	model.InitGlobal(modelRegistry)

	docs := sop.BuiltinCorpus()
	if cfg.Retrieval.CorpusDir != "" {
		loaded, err := sop.LoadDir(cfg.Retrieval.CorpusDir)
		if err != nil {
			return nil, fmt.Errorf("load SOP corpus: %w", err)
		}
		docs = loaded
		logger.Info("Loaded SOP corpus", "dir", cfg.Retrieval.CorpusDir, "documents", len(docs))
	}

	var embedder sop.Embedder = &sop.HashEmbedder{}
	if cfg.Retrieval.EmbedURL != "" {
		embedder = sop.NewHTTPEmbedder(cfg.Retrieval.EmbedURL, cfg.Retrieval.EmbedModel)
		logger.Info("Using remote embeddings", "url", cfg.Retrieval.EmbedURL, "model", cfg.Retrieval.EmbedModel)
	}

	chunker, err := sop.NewChunker(sop.ChunkerConfig{
		Size:    cfg.Retrieval.ChunkSize,
		Overlap: cfg.Retrieval.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("configure chunker: %w", err)
	}

	index := sop.NewIndex(docs, embedder,
		sop.WithChunker(chunker),
		sop.WithQueryCacheTTL(cfg.Retrieval.EmbedCacheTTL),
		sop.WithIndexLogger(logger),
	)
	// Warm the index up front so the first incident does not pay the
	// embedding cost. Build failures are retried lazily on first search.
	if err := index.Build(ctx); err != nil {
		logger.Warn("Initial SOP index build failed, retrying on first search", "error", err)
	}
	if cfg.Retrieval.CorpusDir != "" {
		go func() {
			if err := index.Watch(ctx, cfg.Retrieval.CorpusDir); err != nil && ctx.Err() == nil {
				logger.Warn("SOP corpus watch stopped", "error", err)
			}
		}()
	}

	toolRegistry := tools.NewRegistry()
	if err := toolRegistry.Register(infra.NewExecutor(index, cfg.Retrieval.TopK)); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	callLog := tools.NewCallLog(tools.DefaultCallLogCapacity)
	toolExec := tools.NewRecordingExecutor(toolRegistry, callLog)

	client := llm.NewClient(modelRegistry,
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Model.Timeout}),
	)

	engine := workflow.NewEngine(client, toolExec, workflow.WithEngineLogger(logger))

	scenarioRegistry := scenario.NewRegistry()
	simulator := scenario.NewSimulator(scenarioRegistry, pace)
	runner := scenario.NewRunner(scenarioRegistry, engine, simulator,
		scenario.WithLiveCheck(modelRegistry.HasLiveEndpoints),
		scenario.WithForceSimulation(cfg.Scenario.ForceSimulation),
		scenario.WithRunnerLogger(logger),
	)

	return &service{
		registry:     scenarioRegistry,
		runner:       runner,
		handler:      server.NewHandler(scenarioRegistry, runner, logger),
		registryLive: modelRegistry.HasLiveEndpoints,
	}, nil
}

func scenarioCmd(logLevel *string) *cobra.Command {
	var pace time.Duration

	cmd := &cobra.Command{
		Use:   "scenario [normal|single_failure|triple_failure]",
		Short: "Run one scenario locally and print the agent log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(*logLevel)

			cfg, err := config.NewLoader(logger).Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runScenario(cmd.Context(), cfg, logger, args[0], pace)
		},
	}

	cmd.Flags().DurationVar(&pace, "pace", 300*time.Millisecond, "Delay between simulated transcript lines")
	return cmd
}

// runScenario triggers a single scenario against a locally wired service
// and streams the agent log to stdout until the run finishes.
func runScenario(ctx context.Context, cfg *config.Config, logger *slog.Logger, scenarioID string, pace time.Duration) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// One-shot runs want a snappier transcript than the demo UI default.
	deps, err := buildService(ctx, cfg, logger, pace)
	if err != nil {
		return err
	}

	status := deps.runner.Trigger(scenarioID)
	if status == scenario.TriggerBusy {
		return fmt.Errorf("another run is already in flight")
	}
	if status == scenario.TriggerOK {
		// Recovery scenarios apply immediately without a workflow run.
		snap := deps.registry.Snapshot()
		for _, line := range snap.AgentLogs {
			fmt.Println(line)
		}
		return nil
	}

	printed := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		snap := deps.registry.Snapshot()
		for ; printed < len(snap.AgentLogs); printed++ {
			fmt.Println(snap.AgentLogs[printed])
		}
		if !snap.Processing && printed == len(snap.AgentLogs) && printed > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
