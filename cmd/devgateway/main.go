// Package main is the entry point for the development gateway.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/config"
	"github.com/aithena-ai/chatstream/internal/devgateway"
	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/logger"
	"github.com/aithena-ai/chatstream/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting development gateway")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatstream-devgateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	var streamer devgateway.TokenStreamer
	if cfg.OpenAIAPIKey != "" {
		log.Info("proxying generation to OpenAI-compatible upstream",
			zap.String("base_url", cfg.OpenAIBaseURL),
		)
		streamer = devgateway.NewOpenAIStreamer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	} else {
		log.Info("no upstream configured, serving canned replies")
		streamer = &devgateway.CannedStreamer{}
	}

	handler := devgateway.NewHandler(devgateway.NewStore(), streamer, devModels(cfg), log)
	router := devgateway.NewRouter(devgateway.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handler, log)

	server := &http.Server{
		Addr:         ":" + cfg.DevGatewayPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("gateway listening", zap.String("port", cfg.DevGatewayPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("gateway stopped")
}

// devModels builds the advertised model list from DEV_MODELS, falling back
// to the default model.
func devModels(cfg *config.Config) []model.ModelInfo {
	names := []string{cfg.DefaultModel}
	if cfg.DevModels != "" {
		names = strings.Split(cfg.DevModels, ",")
	}
	models := make([]model.ModelInfo, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		models = append(models, model.ModelInfo{
			ID:          name,
			DisplayName: name,
			Provider:    "openai",
		})
	}
	return models
}
