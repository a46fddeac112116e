package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"llm-crypto-trader/internal/eod"
	"llm-crypto-trader/internal/logger"
	"llm-crypto-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig(ctx)
	must(err)

	compressOldLogs(ctx)

	metricsSrv := startMetrics(ctx, cfg)

	decider := initializeDecider(ctx, cfg)
	pipe, err := initializePipeline(cfg, decider)
	must(err)

	client := initializeFeed(cfg)
	must(pipe.Run(ctx, client))

	logger.Info(ctx, "Bot started",
		"symbol", cfg.Feed.Symbol,
		"channels", cfg.Feed.Channels,
		"strategy", cfg.Strategy.StrategyType,
	)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	eodTick := time.NewTicker(60 * time.Second)
	defer eodTick.Stop()

loop:
	for {
		select {
		case <-eodTick.C:
			if ok, _ := eod.ShouldRunNow(); ok {
				yesterday := time.Now().UTC().AddDate(0, 0, -1)
				if p, err := eod.SummarizeDay(yesterday); err == nil && p != "" {
					logger.Info(ctx, "Daily summary CSV written", "path", p)
				}
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down...")
			if p, err := eod.SummarizeToday(); err == nil && p != "" {
				logger.Info(ctx, "Daily summary CSV written", "path", p)
			}
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	cancel()
	_ = client.Close()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	_ = trace.Shutdown(context.Background())
}
