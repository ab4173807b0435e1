// Package main runs the admissions ETL HTTP service.
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

	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/JakeFAU/gradcafe-etl/internal/api"
	"github.com/JakeFAU/gradcafe-etl/internal/config"
	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
	"github.com/JakeFAU/gradcafe-etl/internal/logging"
	"github.com/JakeFAU/gradcafe-etl/internal/metrics"
	"github.com/JakeFAU/gradcafe-etl/internal/standardize"
	"github.com/JakeFAU/gradcafe-etl/internal/store"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, flush, err := logging.Setup(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer flush()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applicants, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer applicants.Close()
	if err := applicants.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	standardizer := buildStandardizer(cfg, logger)
	gate := gradcafe.NewRobotsGate(cfg.Crawler.RespectRobots, cfg.Crawler.UserAgent, logger.Named("robots"))
	fetcher := gradcafe.NewCollyFetcher(gradcafe.FetcherConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	orchestrator := gradcafe.NewOrchestrator(fetcher, gate, applicants, standardizer, logger.Named("crawl"))

	apiServer := api.NewServer(orchestrator, applicants, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStandardizer assembles the name standardization chain. Without an
// OpenAI key only the rule fallback runs.
func buildStandardizer(cfg config.Config, logger *zap.Logger) gradcafe.Standardizer {
	var primary standardize.Primary
	if cfg.Standardize.OpenAIKey != "" {
		model, err := openai.New(
			openai.WithToken(cfg.Standardize.OpenAIKey),
			openai.WithModel(cfg.Standardize.Model),
		)
		if err != nil {
			logger.Warn("llm init failed, using rule fallback only", zap.Error(err))
		} else {
			primary = standardize.NewLLMStandardizer(
				model,
				time.Duration(cfg.Standardize.TimeoutSeconds)*time.Second,
			)
		}
	}
	return standardize.NewChain(primary, standardize.DefaultCanonicalSet(), logger.Named("standardize"))
}
