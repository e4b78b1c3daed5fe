package main

import (
	"fmt"
	"log"
	"net/http"

	"invox/internal/config"
	"invox/internal/confidence"
	"invox/internal/handler"
	"invox/internal/observability"
	"invox/internal/parser/openai"
	"invox/internal/resilience"
	"invox/internal/router"
	"invox/internal/service"
	"invox/internal/upload"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(&cfg.Log)
	metrics := observability.NewMetrics()

	// Retry executor for upstream model calls
	exec := resilience.NewExecutor(resilience.Config{
		MaxRetries:              cfg.Retry.MaxRetries,
		InitialDelay:            cfg.Retry.InitialDelay,
		Multiplier:              cfg.Retry.Multiplier,
		Jitter:                  cfg.Retry.Jitter,
		BreakerEnabled:          cfg.Retry.BreakerEnabled,
		BreakerMinRequests:      cfg.Retry.BreakerMinRequests,
		BreakerFailureRatio:     cfg.Retry.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.Retry.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: cfg.Retry.BreakerHalfOpenMaxCalls,
	}, logger, metrics)

	// Initialize the parse pipeline
	validator := upload.NewValidator(&cfg.Upload, logger)
	extractor := openai.NewClient(&cfg.OpenAI, cfg.Confidence.MaxLineItems, exec, logger)
	gate := confidence.NewGate(&cfg.Confidence, logger)
	parseSvc := service.NewParseService(validator, extractor, gate, cfg.Server.ParseTimeout, metrics, logger)

	// Initialize handlers
	parseH := handler.NewParseHandler(parseSvc, logger)
	healthH := handler.NewHealthHandler(cfg.OpenAI.APIKey != "")

	// Setup router
	r := router.Setup(cfg, parseH, healthH, metrics, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server starting", "addr", cfg.Server.Port, "environment", cfg.Server.Environment)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
