// Package reconcile brings the search index back in line with the record
// store after partial writes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/domain"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
	"github.com/kailas-cloud/devsearch/internal/metrics"
	"github.com/kailas-cloud/devsearch/internal/resilience"
)

// WorkerConfig tunes the outbox drainer.
type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Retry       resilience.RetryConfig
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.Retry.Retryable == nil {
		c.Retry.Retryable = func(err error) bool { return errors.Is(err, domain.ErrIndexUnavailable) }
	}
	return c
}

// DrainReport summarizes one drain pass.
type DrainReport struct {
	Acked  int
	Failed int
}

// Worker drains outbox markers into the search index.
type Worker struct {
	records RecordReader
	outbox  Outbox
	index   IndexWriter
	cfg     WorkerConfig
	logger  *zap.Logger
}

// NewWorker creates an outbox worker.
func NewWorker(records RecordReader, ob Outbox, index IndexWriter, cfg WorkerConfig, logger *zap.Logger) *Worker {
	return &Worker{
		records: records,
		outbox:  ob,
		index:   index,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("outbox"),
	}
}

// Run drains the outbox every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("outbox worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Int("batch_size", w.cfg.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
			if _, err := w.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("outbox drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce processes one batch of pending markers and refreshes the backlog gauges.
func (w *Worker) DrainOnce(ctx context.Context) (DrainReport, error) {
	var rep DrainReport

	entries, err := w.outbox.Pending(ctx, w.cfg.BatchSize, w.cfg.MaxAttempts)
	if err != nil {
		return rep, fmt.Errorf("list pending: %w", err)
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if err := w.apply(ctx, e); err != nil {
			rep.Failed++
			metrics.ReconciledTotal.WithLabelValues("worker", string(e.Op), "error").Inc()
			w.logger.Warn("outbox entry failed",
				zap.Int64("device_id", e.DeviceID),
				zap.String("op", string(e.Op)),
				zap.Int("attempts", e.Attempts+1),
				zap.Error(err),
			)
			if ferr := w.outbox.Fail(ctx, e.DeviceID, err.Error()); ferr != nil {
				w.logger.Warn("outbox fail not recorded", zap.Int64("device_id", e.DeviceID), zap.Error(ferr))
			}
			continue
		}
		if err := w.outbox.Ack(ctx, e.DeviceID, e.Op); err != nil {
			rep.Failed++
			w.logger.Warn("outbox ack failed", zap.Int64("device_id", e.DeviceID), zap.Error(err))
			continue
		}
		rep.Acked++
		metrics.ReconciledTotal.WithLabelValues("worker", string(e.Op), "ok").Inc()
		w.logger.Debug("outbox entry drained",
			zap.Int64("device_id", e.DeviceID),
			zap.String("op", string(e.Op)),
		)
	}

	w.refreshGauges(ctx)
	return rep, nil
}

func (w *Worker) apply(ctx context.Context, e outbox.Entry) error {
	switch e.Op {
	case outbox.OpUpsert:
		rec, err := w.records.Get(ctx, e.DeviceID)
		if err != nil {
			if errors.Is(err, domain.ErrDeviceNotFound) {
				// Deleted since; a delete marker would have replaced this one.
				return nil
			}
			return fmt.Errorf("read record: %w", err)
		}
		doc := domdevice.DocumentFrom(rec)
		err = resilience.Retry(ctx, w.logger, "index upsert", w.cfg.Retry, func(ctx context.Context) error {
			return w.index.Upsert(ctx, doc)
		})
		if err != nil {
			return err
		}
		_, err = settle(ctx, w.records, w.index, e.DeviceID)
		return err
	case outbox.OpDelete:
		return resilience.Retry(ctx, w.logger, "index delete", w.cfg.Retry, func(ctx context.Context) error {
			return w.index.Delete(ctx, e.DeviceID)
		})
	default:
		return fmt.Errorf("unknown outbox op %q", e.Op)
	}
}

// settle removes the document just written for id when its record is gone.
// A delete that commits between the record read and the upsert clears the
// index before the upsert lands, so the upsert would otherwise revive it.
func settle(ctx context.Context, records RecordChecker, index IndexWriter, id int64) (bool, error) {
	ok, err := records.Exists(ctx, id)
	if err != nil {
		return false, fmt.Errorf("recheck record: %w", err)
	}
	if ok {
		return false, nil
	}
	if err := index.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("remove document of deleted record: %w", err)
	}
	return true, nil
}

func (w *Worker) refreshGauges(ctx context.Context) {
	stats, err := w.outbox.CountPending(ctx, w.cfg.MaxAttempts)
	if err != nil {
		w.logger.Warn("outbox stats unavailable", zap.Error(err))
		return
	}
	metrics.OutboxPending.Set(float64(stats.Pending))
	metrics.OutboxExhausted.Set(float64(stats.Exhausted))
	if stats.Exhausted > 0 {
		w.logger.Warn("outbox entries exhausted their attempts; run reindex",
			zap.Int("exhausted", stats.Exhausted),
		)
	}
}
