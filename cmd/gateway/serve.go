package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/masaic-ai/open-responses-go/internal/config"
	"github.com/masaic-ai/open-responses-go/internal/files"
	"github.com/masaic-ai/open-responses-go/internal/httpapi"
	"github.com/masaic-ai/open-responses-go/internal/obslog"
	"github.com/masaic-ai/open-responses-go/internal/orchestrator"
	"github.com/masaic-ai/open-responses-go/internal/providerrouter"
	"github.com/masaic-ai/open-responses-go/internal/reconciler"
	"github.com/masaic-ai/open-responses-go/internal/store"
	"github.com/masaic-ai/open-responses-go/internal/store/redisstore"
	"github.com/masaic-ai/open-responses-go/internal/streaming"
	"github.com/masaic-ai/open-responses-go/internal/telemetry"
	"github.com/masaic-ai/open-responses-go/internal/tools"
	"github.com/masaic-ai/open-responses-go/internal/upstream"
	"github.com/masaic-ai/open-responses-go/internal/vectorsearch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println(buildInfo())
	fmt.Println()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	structured, err := obslog.NewStructuredLogger(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("opening structured log: %w", err)
	}
	defer structured.Close()

	tel, err := telemetry.New(cfg.OTLPEndpoint, "open-responses-gateway")
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	router := providerrouter.New(cfg.ModelBaseURLOverride, cfg.ProviderAPIKeys)

	registry := tools.NewRegistry()
	embeddingKey := cfg.EmbeddingAPIKey
	if embeddingKey == "" {
		embeddingKey = cfg.ProviderAPIKeys["openai"]
	}
	embedder := vectorsearch.NewOpenAIEmbedder(cfg.EmbeddingBaseURL, embeddingKey, cfg.EmbeddingModel)

	var vsPersister vectorsearch.Persister
	if cfg.VectorStoreBackend == "redis" {
		vsPersister = vectorsearch.NewRedisPersister(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.VectorIndexKey)
	} else {
		vsPersister = vectorsearch.NewDiskPersister(cfg.VectorIndexPath)
	}
	vectorStore, err := vectorsearch.New(context.Background(), embedder, vsPersister)
	if err != nil {
		return fmt.Errorf("loading vector index: %w", err)
	}

	fileStore, err := files.New(cfg.FileStorageDir)
	if err != nil {
		return fmt.Errorf("initializing file storage: %w", err)
	}

	fileSearchTool, fileSearchExecutor := tools.NewFileSearchTool("default", vectorStore)
	registry.Register(fileSearchTool, fileSearchExecutor)

	mcpTools, err := cfg.LoadMCPTools()
	if err != nil {
		return fmt.Errorf("loading MCP tool discovery document: %w", err)
	}
	mcpClient := &http.Client{Timeout: 30 * time.Second}
	for _, mcpCfg := range mcpTools {
		tool, executor := tools.NewMCPTool(mcpCfg, mcpClient)
		registry.Register(tool, executor)
	}

	var engine store.Engine
	if cfg.ResponseStoreBackend == "redis" {
		engine = redisstore.New(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		engine = store.NewMemoryEngine()
	}
	responseStore := store.New(engine)

	recon := reconciler.New(registry, cfg.MaxToolCalls)
	httpClient := &http.Client{Timeout: cfg.MaxStreamingTimeout}
	client := upstream.New(httpClient)

	nonStreaming := orchestrator.New(orchestrator.Config{
		Router: router, Client: client, Reconciler: recon, Store: responseStore,
		MaxToolCalls: cfg.MaxToolCalls, Timeout: cfg.MaxStreamingTimeout, Structured: structured,
	})
	streamingOrch := streaming.New(streaming.Config{
		Router: router, Client: client, Reconciler: recon, Store: responseStore,
		MaxToolCalls: cfg.MaxToolCalls, Timeout: cfg.MaxStreamingTimeout, Structured: structured,
	})

	handler := httpapi.NewRouter(httpapi.Config{
		Router: router, NonStreaming: nonStreaming, Streaming: streamingOrch,
		Store: responseStore, Files: fileStore, Telemetry: tel, Structured: structured,
		RequestTimeout: cfg.MaxStreamingTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.MaxStreamingTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	structured.Info(obslog.ComponentOrchestrator, obslog.CategoryRequest, "", "gateway starting", map[string]any{
		"port": cfg.Port, "max_tool_calls": cfg.MaxToolCalls, "response_store": cfg.ResponseStoreBackend,
		"vector_store": cfg.VectorStoreBackend,
	})
	color.Green("open-responses-gateway listening on :%s", cfg.Port)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-sig:
		color.Yellow("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}
