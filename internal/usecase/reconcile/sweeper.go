package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/metrics"
)

// SweepConfig tunes a full reindex.
type SweepConfig struct {
	PageSize    int
	Concurrency int
}

// SweepReport summarizes a full reindex.
type SweepReport struct {
	Indexed int
	// Unchanged counts documents that already matched their record.
	Unchanged int
	Removed   int
	Failed    int
}

// Sweeper rebuilds the index from the record store: every record whose
// document is missing or stale is upserted and every indexed document
// without a record is removed.
type Sweeper struct {
	records RecordPager
	index   SweepIndex
	cfg     SweepConfig
	logger  *zap.Logger
}

// NewSweeper creates a reindex sweeper.
func NewSweeper(records RecordPager, index SweepIndex, cfg SweepConfig, logger *zap.Logger) *Sweeper {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Sweeper{records: records, index: index, cfg: cfg, logger: logger.Named("sweep")}
}

// Run performs one full sweep. Single document failures are counted, not
// fatal; a store failure or a canceled ctx aborts the sweep.
//
// Indexed ids are listed before the records are paged: a document indexed
// before the sweep started always has a committed record, so one that is
// still missing a record afterwards is an orphan.
func (s *Sweeper) Run(ctx context.Context) (SweepReport, error) {
	var (
		rep     SweepReport
		tally   sweepTally
		afterID int64
	)

	before, err := s.index.IDs(ctx)
	if err != nil {
		return rep, fmt.Errorf("list indexed ids: %w", err)
	}
	known := make(map[int64]struct{})

	for {
		page, err := s.records.ListAfter(ctx, afterID, s.cfg.PageSize)
		if err != nil {
			return tally.report(), fmt.Errorf("list records after %d: %w", afterID, err)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for _, rec := range page {
			known[rec.ID()] = struct{}{}
			doc := domdevice.DocumentFrom(rec)
			g.Go(func() error {
				return s.syncDoc(gctx, doc, &tally)
			})
		}
		if err := g.Wait(); err != nil {
			return tally.report(), fmt.Errorf("reindex page after %d: %w", afterID, err)
		}

		afterID = page[len(page)-1].ID()
		s.logger.Debug("reindexed page", zap.Int64("last_id", afterID), zap.Int("size", len(page)))
	}

	rep = tally.report()

	for _, id := range before {
		if _, ok := known[id]; ok {
			continue
		}
		if err := s.index.Delete(ctx, id); err != nil {
			rep.Failed++
			metrics.ReconciledTotal.WithLabelValues("sweep", "delete", "error").Inc()
			s.logger.Warn("orphan delete failed", zap.Int64("device_id", id), zap.Error(err))
			continue
		}
		rep.Removed++
		metrics.ReconciledTotal.WithLabelValues("sweep", "delete", "ok").Inc()
	}

	s.logger.Info("reindex finished",
		zap.Int("indexed", rep.Indexed),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("removed", rep.Removed),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}

// syncDoc brings one document in line with its record. Only a canceled
// ctx is returned; document failures are tallied.
func (s *Sweeper) syncDoc(ctx context.Context, doc domdevice.Document, t *sweepTally) error {
	if cur, err := s.index.Get(ctx, doc.ID); err == nil && cur == doc {
		t.unchanged.Add(1)
		metrics.ReconciledTotal.WithLabelValues("sweep", "upsert", "unchanged").Inc()
		return nil
	}

	err := s.index.Upsert(ctx, doc)
	if err == nil {
		var removed bool
		removed, err = settle(ctx, s.records, s.index, doc.ID)
		if removed {
			t.removed.Add(1)
			metrics.ReconciledTotal.WithLabelValues("sweep", "delete", "ok").Inc()
			return nil
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.failed.Add(1)
		metrics.ReconciledTotal.WithLabelValues("sweep", "upsert", "error").Inc()
		s.logger.Warn("reindex upsert failed", zap.Int64("device_id", doc.ID), zap.Error(err))
		return nil
	}

	t.indexed.Add(1)
	metrics.ReconciledTotal.WithLabelValues("sweep", "upsert", "ok").Inc()
	return nil
}

// sweepTally collects per-document outcomes from concurrent writers.
type sweepTally struct {
	indexed   atomic.Int64
	unchanged atomic.Int64
	removed   atomic.Int64
	failed    atomic.Int64
}

func (t *sweepTally) report() SweepReport {
	return SweepReport{
		Indexed:   int(t.indexed.Load()),
		Unchanged: int(t.unchanged.Load()),
		Removed:   int(t.removed.Load()),
		Failed:    int(t.failed.Load()),
	}
}
