package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/chatbot-rag/internal/bootstrap"
	"github.com/kirillkom/chatbot-rag/internal/config"
	"github.com/kirillkom/chatbot-rag/internal/observability/logging"
	"github.com/kirillkom/chatbot-rag/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("worker", "error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("worker", cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewPipeline("worker")

	app, err := bootstrap.New(ctx, cfg, log, m)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// The collection must exist with the right dimension before any work is
	// accepted; a missing or mismatched index is fatal, never auto-created.
	if err := app.VectorDB.Init(ctx); err != nil {
		log.Error("vector store check failed", "collection", cfg.QdrantCollection, "error", err)
		os.Exit(1)
	}

	metricsSrv := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: metricsMux(m),
	}
	go func() {
		log.Info("metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("worker subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSourceRegistered(ctx, func(handlerCtx context.Context, sourceID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, cfg.ProcessTimeout)
		defer cancel()

		m.StartIngest()
		started := time.Now()
		report, err := app.ProcessUC.Process(processCtx, sourceID)

		status := "error"
		if report != nil {
			status = string(report.Status)
		}
		m.FinishIngest(status, time.Since(started))
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker subscription failed", "error", err)
		os.Exit(1)
	}
}

func metricsMux(m *metrics.Pipeline) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
