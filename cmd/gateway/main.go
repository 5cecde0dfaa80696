package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/analytics"
	"github.com/luwill/Claude-Code-Model-Router/internal/config"
	"github.com/luwill/Claude-Code-Model-Router/internal/platform/logger"
	"github.com/luwill/Claude-Code-Model-Router/internal/platform/otel"
	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
	"github.com/luwill/Claude-Code-Model-Router/internal/router"
	"github.com/luwill/Claude-Code-Model-Router/internal/server"
	"github.com/luwill/Claude-Code-Model-Router/internal/store/sqlite"
	"github.com/luwill/Claude-Code-Model-Router/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to models.yaml (default: ./config/models.yaml, ./models.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.Gateway.LogLevel,
		Format:      logger.DefaultConfig().Format,
		EnableColor: logger.DefaultConfig().EnableColor,
	})
	log := logger.Get()
	defer logger.Sync()

	reg, err := registry.New(cfg, log)
	if err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Gateway.EnableTracing {
		shutdown, err := otel.InitTracer("claude-code-model-router", log, os.Stdout)
		if err != nil {
			log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			_ = shutdown(context.Background())
		}()
	}

	var ingestor analytics.Ingestor
	if dsn := cfg.Gateway.AnalyticsDSN; dsn != "" {
		repo, err := sqlite.NewRequestLogStore(dsn, log)
		if err != nil {
			log.Fatal("Failed to open request log store", zap.Error(err))
		}
		defer func() {
			_ = repo.Close()
		}()
		ingestor = analytics.NewIngestor(log, repo)
		ingestor.Start(ctx)
		defer ingestor.Stop()
	}

	rt := router.New(reg, log, ingestor)
	srv := server.New(reg, rt, log)

	log.Info("Claude Code Model Router starting",
		zap.String("version", version.AppVersion),
		zap.Int("models", len(cfg.Models)),
		zap.String("default_model", cfg.DefaultModel),
	)
	for _, info := range reg.ListModels() {
		status := "ready"
		if !info.Available {
			status = "no API key"
		}
		log.Info("Model loaded",
			zap.String("name", info.Name),
			zap.String("display_name", info.DisplayName),
			zap.String("provider", info.Provider),
			zap.String("status", status),
		)
	}
	go version.CheckForUpdates(log)

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("Gateway listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	rt.CloseIdleConnections()
}
