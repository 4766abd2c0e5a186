package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zennyMe17/interview-gateway/internal/api"
	"github.com/zennyMe17/interview-gateway/internal/config"
	"github.com/zennyMe17/interview-gateway/internal/observability"
	"github.com/zennyMe17/interview-gateway/internal/scoring"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("vapi_api_url", cfg.VapiAPIURL).
		Str("scoring_model", cfg.ScoringModel).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Interview Gateway Service starting")

	svc := scoring.New(cfg)

	// Create HTTP server
	mux := http.NewServeMux()

	// Scoring proxy endpoint
	mux.HandleFunc("/api/score-interview", api.ScoreInterviewHandler(svc))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint - constructing a client validates its config without
	// spending upstream API calls
	vapiCheck := func(ctx context.Context) (bool, error) {
		if cfg.VapiSecretKey == "" {
			return false, fmt.Errorf("VAPI secret key not configured")
		}
		if scoring.NewCallClient(cfg.VapiAPIURL, cfg.VapiSecretKey) == nil {
			return false, fmt.Errorf("failed to create call API client")
		}
		return true, nil
	}

	openaiCheck := func(ctx context.Context) (bool, error) {
		if cfg.OpenAIAPIKey == "" {
			return false, fmt.Errorf("OpenAI API key not configured")
		}
		if scoring.NewCompletionClient(cfg.OpenAIAPIURL, cfg.OpenAIAPIKey, cfg.ScoringModel, cfg.ScoringTemperature) == nil {
			return false, fmt.Errorf("failed to create completion client")
		}
		return true, nil
	}

	mux.HandleFunc("/ready", observability.ReadinessHandler(
		observability.Check{Name: "vapi", Fn: vapiCheck},
		observability.Check{Name: "openai", Fn: openaiCheck},
	))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/api/score-interview", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
