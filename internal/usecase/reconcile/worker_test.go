package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/domain"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
	"github.com/kailas-cloud/devsearch/internal/resilience"
)

func fastWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Interval:    10 * time.Millisecond,
		BatchSize:   10,
		MaxAttempts: 3,
		Retry:       resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestDrainOnce_UpsertAndDelete(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "Lamp", "LED"))
	records.mark(1, outbox.OpUpsert, 0)
	records.mark(2, outbox.OpDelete, 0)
	index := newMemIndex(domdevice.Document{ID: 2, Title: "gone"})

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Acked != 2 || rep.Failed != 0 {
		t.Errorf("report = %+v, want 2 acked", rep)
	}
	if index.docs[1] != (domdevice.Document{ID: 1, Title: "Lamp", Content: "LED"}) {
		t.Errorf("doc 1 = %+v", index.docs[1])
	}
	if index.has(2) {
		t.Error("doc 2 must be removed")
	}
	if len(records.markers) != 0 {
		t.Errorf("markers left: %v", records.markers)
	}
}

func TestDrainOnce_RecordGoneAcks(t *testing.T) {
	records := newMemRecords()
	records.mark(5, outbox.OpUpsert, 0)
	index := newMemIndex()

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Acked != 1 || index.upserts != 0 {
		t.Errorf("report = %+v, upserts = %d", rep, index.upserts)
	}
}

func TestDrainOnce_DeleteDuringUpsertDoesNotReviveDocument(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "Lamp", "LED"))
	records.mark(1, outbox.OpUpsert, 0)
	index := newMemIndex()
	index.beforeUpsert = func(id int64) {
		records.remove(id)
		_ = index.Delete(context.Background(), id)
	}

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.has(1) {
		t.Error("document of a deleted record must not survive the drain")
	}
	if rep.Acked != 1 || rep.Failed != 0 {
		t.Errorf("report = %+v, want 1 acked", rep)
	}
}

func TestDrainOnce_RecheckFailureRecordsAttempt(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "Lamp", ""))
	records.mark(1, outbox.OpUpsert, 0)
	records.existsErr = fmt.Errorf("exists: %w", domain.ErrStoreUnavailable)

	w := NewWorker(records, records, newMemIndex(), fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Failed != 1 || records.markers[1].Attempts != 1 {
		t.Errorf("report = %+v, marker = %+v", rep, records.markers[1])
	}
}

func TestDrainOnce_FailureRecordsAttempt(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "a", ""))
	records.mark(1, outbox.OpUpsert, 0)
	index := newMemIndex()
	index.upsertErr[1] = fmt.Errorf("hset: %w", domain.ErrIndexUnavailable)

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Failed != 1 {
		t.Errorf("report = %+v, want 1 failed", rep)
	}
	if index.upserts != 2 {
		t.Errorf("upserts = %d, want 2 (retried)", index.upserts)
	}
	e := records.markers[1]
	if e == nil || e.Attempts != 1 || e.LastError == "" {
		t.Fatalf("marker = %+v, want 1 attempt with error", e)
	}
}

func TestDrainOnce_NonRetryableNotRetried(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "a", ""))
	records.mark(1, outbox.OpUpsert, 0)
	index := newMemIndex()
	index.upsertErr[1] = errors.New("bad document")

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	if _, err := w.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if index.upserts != 1 {
		t.Errorf("upserts = %d, want 1", index.upserts)
	}
}

func TestDrainOnce_SkipsExhausted(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "a", ""))
	records.mark(1, outbox.OpUpsert, 3)
	index := newMemIndex()

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	rep, err := w.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Acked != 0 || index.upserts != 0 {
		t.Errorf("exhausted marker was processed: %+v", rep)
	}
}

func TestDrainOnce_StatsFailureIsNotFatal(t *testing.T) {
	records := newMemRecords()
	records.statsErr = errors.New("db down")

	w := NewWorker(records, records, newMemIndex(), fastWorkerConfig(), zap.NewNop())
	if _, err := w.DrainOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWorkerRun_DrainsUntilCanceled(t *testing.T) {
	records := newMemRecords(domdevice.Reconstruct(1, "a", ""))
	records.mark(1, outbox.OpUpsert, 0)
	index := newMemIndex()

	w := NewWorker(records, records, index, fastWorkerConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !index.has(1) {
		select {
		case <-deadline:
			t.Fatal("worker did not drain the marker")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
