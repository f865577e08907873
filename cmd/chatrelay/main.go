package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lgforest/chat-relay/internal/api"
	"github.com/lgforest/chat-relay/internal/chat"
	"github.com/lgforest/chat-relay/internal/config"
	"github.com/lgforest/chat-relay/internal/provider/bedrock"
	"github.com/lgforest/chat-relay/internal/provider/deepseek"
	"github.com/lgforest/chat-relay/internal/provider/kimi"
	"github.com/lgforest/chat-relay/internal/provider/mock"
	"github.com/lgforest/chat-relay/internal/provider/openai"
	"github.com/lgforest/chat-relay/internal/registry"
	"github.com/lgforest/chat-relay/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting chat relay", "addr", cfg.Addr, "version", "1.0.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, "chat-relay", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(ctx)

	// Registration order is the default-selection priority: DeepSeek first,
	// then Kimi, Bedrock, OpenAI, with the mock assistant as last resort.
	var entries []registry.Entry

	if cfg.DeepSeekAPIKey != "" {
		entries = append(entries, registry.Entry{
			Type:    registry.TypeDeepSeek,
			Service: deepseek.New(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL),
		})
		slog.Info("registered AI service", "service", "deepseek")
	}

	if cfg.KimiAPIKey != "" {
		entries = append(entries, registry.Entry{
			Type:    registry.TypeKimi,
			Service: kimi.New(cfg.KimiAPIKey, cfg.KimiBaseURL),
		})
		slog.Info("registered AI service", "service", "kimi")
	}

	if cfg.BedrockEnabled && cfg.AWSRegion != "" {
		bedrockSvc, err := bedrock.New(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Warn("failed to initialize bedrock, skipping", "error", err)
		} else {
			entries = append(entries, registry.Entry{
				Type:    registry.TypeBedrock,
				Service: bedrockSvc,
			})
			slog.Info("registered AI service", "service", "bedrock", "region", cfg.AWSRegion)
		}
	}

	if cfg.OpenAIAPIKey != "" {
		entries = append(entries, registry.Entry{
			Type:    registry.TypeOpenAI,
			Service: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL),
		})
		slog.Info("registered AI service", "service", "openai")
	}

	if cfg.MockEnabled {
		entries = append(entries, registry.Entry{
			Type:    registry.TypeMock,
			Service: mock.New(),
		})
		slog.Info("registered AI service", "service", "mock")
	}

	if len(entries) == 0 {
		slog.Error("no AI services configured")
		os.Exit(1)
	}

	reg := registry.New(entries, registry.DefaultRules)
	chatService := chat.New(reg, cfg.ResumeProfilePath)

	handler := api.NewHandler(api.HandlerConfig{
		Chat:           chatService,
		Registry:       reg,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE responses stay open as long as upstream
		// keeps producing.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
