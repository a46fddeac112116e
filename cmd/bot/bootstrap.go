package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"llm-crypto-trader/internal/eod"
	"llm-crypto-trader/internal/eod/eodobs"
	"llm-crypto-trader/internal/feed/okx"
	"llm-crypto-trader/internal/interfaces"
	"llm-crypto-trader/internal/llm/llmobs"
	"llm-crypto-trader/internal/llm/noop"
	"llm-crypto-trader/internal/llm/openai"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/metrics"
	"llm-crypto-trader/internal/pipeline"
	"llm-crypto-trader/internal/store"
	"llm-crypto-trader/internal/strategy"
	"llm-crypto-trader/internal/trace"
	"llm-crypto-trader/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes environment, logger and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	// Initialize daily summarizer with observability
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old signal log files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// startMetrics exposes the Prometheus endpoint when an address is configured
func startMetrics(ctx context.Context, cfg *store.Config) *http.Server {
	if cfg.Metrics.Addr == "" {
		return nil
	}
	logger.Info(ctx, "Metrics endpoint listening", "addr", cfg.Metrics.Addr)
	return metrics.Serve(cfg.Metrics.Addr)
}

// initializeDecider initializes and returns the decision collaborator with observability
func initializeDecider(ctx context.Context, cfg *store.Config) interfaces.Decider {
	var decider interfaces.Decider

	switch cfg.LLM.Provider {
	case "OPENAI":
		decider = openai.NewOpenAIDecider(cfg)
	default:
		decider = noop.NewNoopDecider()
		logger.Warn(ctx, "No LLM provider configured - using Noop decider (confirms strategy actions)")
	}

	// Wrap with observability middleware
	return llmobs.Wrap(decider)
}

// initializePipeline builds the strategy and wires the ingestion pipeline
func initializePipeline(cfg *store.Config, decider interfaces.Decider) (*pipeline.Pipeline, error) {
	strat, err := strategy.New(strategy.Config{
		Type:        cfg.Strategy.StrategyType,
		Params:      cfg.Strategy.Params,
		Timeframes:  pipeline.CandleTimeframes(cfg.Feed.Channels),
		HistorySize: cfg.Strategy.HistorySize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy: %w", err)
	}

	pcfg := pipeline.Config{
		Symbol:      cfg.Feed.Symbol,
		Channels:    cfg.Feed.Channels,
		HistorySize: cfg.Strategy.HistorySize,
	}
	return pipeline.New(pcfg, cfg.Indicators, strat, decider), nil
}

// initializeFeed builds the websocket client from config
func initializeFeed(cfg *store.Config) *okx.Client {
	return okx.NewClient(okx.Config{
		URL:          cfg.Feed.URL,
		PingInterval: time.Duration(cfg.Feed.PingIntervalSeconds) * time.Second,
		MaxRetries:   cfg.Feed.MaxRetries,
	})
}
