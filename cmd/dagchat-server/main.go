// Package main runs the DAG-chat HTTP/SSE server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZM-BAD/DAG-chat/internal/config"
	"github.com/ZM-BAD/DAG-chat/internal/llm"
	"github.com/ZM-BAD/DAG-chat/internal/metrics"
	"github.com/ZM-BAD/DAG-chat/internal/orchestrator"
	"github.com/ZM-BAD/DAG-chat/internal/server"
	"github.com/ZM-BAD/DAG-chat/internal/service"
	"github.com/ZM-BAD/DAG-chat/internal/store"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLog(); err != nil {
			logger.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := store.NewClient(ctx, store.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to surrealdb", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Error("failed to close surrealdb client", "error", err)
		}
	}()

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.InitSchema(initCtx); err != nil {
		initCancel()
		logger.Error("failed to init schema", "error", err)
		os.Exit(1)
	}
	initCancel()

	if *wipeDB || os.Getenv("DAGCHAT_WIPE_DB") == "true" {
		wipeCtx, wipeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := client.WipeData(wipeCtx); err != nil {
			wipeCancel()
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		wipeCancel()
	}

	messages := store.NewMessageStore(client)
	conversations := store.NewConversationStore(client)

	registry, err := llm.NewRegistry(cfg)
	if err != nil {
		logger.Error("failed to build model registry", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	orch := orchestrator.New(
		messages, conversations, registry, collector, logger,
		cfg.DefaultModel, cfg.ChatTotalTimeoutSec, cfg.ChatIdleTimeoutSec,
	)
	convService := service.NewConversationService(conversations, messages, logger)

	handlers := server.NewHandlers(orch, convService, registry, logger)
	addr := cfg.APIHost + ":" + cfg.APIPort
	srv := server.New(addr, handlers.Mux(), logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go logMetricsPeriodically(runCtx, collector, logger)

	logger.Info("starting dagchat-server", "addr", addr)
	if err := srv.Run(runCtx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

const metricsLogInterval = 5 * time.Minute

// logMetricsPeriodically logs a metrics.Snapshot on a fixed interval until
// ctx is canceled, so an operator watching the log can see request volume
// and latency trends without a separate scrape endpoint.
func logMetricsPeriodically(ctx context.Context, collector *metrics.Collector, logger *slog.Logger) {
	ticker := time.NewTicker(metricsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			snap := collector.Snapshot()
			logger.Info("metrics snapshot", "uptime_seconds", snap.UptimeSeconds, "llm_stream", snap.LLMStream, "db_query", snap.DBQuery)
		case <-ctx.Done():
			return
		}
	}
}
