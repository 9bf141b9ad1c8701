package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/usecase/reconcile"
)

var (
	reindexPageSize    int
	reindexConcurrency int
	reindexDrain       bool
	reindexRecreate    bool
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the record store",
	Long: `reindex pages through every device in the record store and upserts its
search document, then removes indexed documents that have no record.
With --drain it first drains the index outbox once. With --recreate it
drops and recreates the index definition before sweeping.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runReindex(ctx)
	},
}

func init() {
	reindexCmd.Flags().IntVar(&reindexPageSize, "page-size", 0, "records per page (default: reindex.page_size)")
	reindexCmd.Flags().IntVar(&reindexConcurrency, "concurrency", 0, "parallel index writes (default: reindex.concurrency)")
	reindexCmd.Flags().BoolVar(&reindexDrain, "drain", false, "drain the index outbox before sweeping")
	reindexCmd.Flags().BoolVar(&reindexRecreate, "recreate", false, "drop and recreate the index definition first")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if reindexRecreate {
		if err := a.index.RecreateIndex(ctx); err != nil {
			return fmt.Errorf("recreate index: %w", err)
		}
		a.logger.Info("search index recreated", zap.String("index", a.index.IndexName()))
	}

	if reindexDrain {
		worker := reconcile.NewWorker(a.records, a.records, a.index, reconcile.WorkerConfig{
			BatchSize:   a.cfg.Outbox.BatchSize,
			MaxAttempts: a.cfg.Outbox.MaxAttempts,
		}, a.logger)
		if _, err := worker.DrainOnce(ctx); err != nil {
			return fmt.Errorf("drain outbox: %w", err)
		}
	}

	cfg := reconcile.SweepConfig{PageSize: a.cfg.Reindex.PageSize, Concurrency: a.cfg.Reindex.Concurrency}
	if reindexPageSize > 0 {
		cfg.PageSize = reindexPageSize
	}
	if reindexConcurrency > 0 {
		cfg.Concurrency = reindexConcurrency
	}

	rep, err := reconcile.NewSweeper(a.records, a.index, cfg, a.logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if rep.Failed > 0 {
		return fmt.Errorf("reindex finished with %d failed documents", rep.Failed)
	}
	return nil
}
