package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/bootstrap"
	"github.com/kirillkom/property-search-assistant/internal/config"
	"github.com/kirillkom/property-search-assistant/internal/core/domain"
	"github.com/kirillkom/property-search-assistant/internal/observability/logging"
	"github.com/kirillkom/property-search-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("worker metrics server error: %v", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeRankingLog(ctx, func(handlerCtx context.Context, entries []domain.RankingLogEntry) error {
		for _, entry := range entries {
			if !entry.CreatedAt.IsZero() {
				workerMetrics.ObserveQueueLag("worker", time.Since(entry.CreatedAt))
				break
			}
		}

		workerMetrics.StartBatch()
		start := time.Now()

		saveCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		saveErr := app.RankLog.SaveEntries(saveCtx, entries)

		workerMetrics.FinishBatch("worker", len(entries), time.Since(start), saveErr)
		return saveErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
