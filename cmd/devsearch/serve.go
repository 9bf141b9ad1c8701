package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/devsearch/internal/transport/chi"
	deviceuc "github.com/kailas-cloud/devsearch/internal/usecase/device"
	healthuc "github.com/kailas-cloud/devsearch/internal/usecase/health"
	"github.com/kailas-cloud/devsearch/internal/usecase/reconcile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the index outbox worker",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	metrics.RegisterHTTPMetrics()
	metrics.RegisterDeviceMetrics()

	devices := deviceuc.New(a.records, a.index).WithMaxBatchSize(a.cfg.Ingest.MaxBatchSize)
	health := healthuc.New(a.rdb, a.index).WithTimeout(a.cfg.Health.Timeout())
	server := chiTransport.NewServer(devices, health)

	var wg sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	if a.cfg.OutboxEnabled() {
		worker := reconcile.NewWorker(a.records, a.records, a.index, reconcile.WorkerConfig{
			Interval:    a.cfg.Outbox.Interval(),
			BatchSize:   a.cfg.Outbox.BatchSize,
			MaxAttempts: a.cfg.Outbox.MaxAttempts,
		}, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(workerCtx)
		}()
	}

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           chiTransport.NewRouter(server, a.cfg.Auth.APIKeys, logger),
		ReadTimeout:       a.cfg.HTTP.ReadTimeout(),
		ReadHeaderTimeout: a.cfg.HTTP.ReadTimeout(),
		WriteTimeout:      a.cfg.HTTP.WriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			stopWorker()
			wg.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}

	// Worker stops after in-flight requests finished.
	stopWorker()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.cfg.HTTP.ShutdownTimeout()):
		logger.Warn("outbox worker did not stop in time")
	}

	logger.Info("server stopped gracefully")
	return nil
}
