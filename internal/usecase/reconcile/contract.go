package reconcile

import (
	"context"

	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
)

// Outbox exposes the pending index markers of the record store.
type Outbox interface {
	Pending(ctx context.Context, limit, maxAttempts int) ([]outbox.Entry, error)
	Ack(ctx context.Context, id int64, op outbox.Op) error
	Fail(ctx context.Context, id int64, reason string) error
	CountPending(ctx context.Context, maxAttempts int) (outbox.Stats, error)
}

// RecordChecker confirms a device still has a record.
type RecordChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// RecordReader reads devices from the record store.
type RecordReader interface {
	RecordChecker
	Get(ctx context.Context, id int64) (domdevice.Record, error)
}

// RecordPager pages through every device in id order.
type RecordPager interface {
	RecordChecker
	ListAfter(ctx context.Context, afterID int64, limit int) ([]domdevice.Record, error)
}

// IndexWriter writes documents to the search index.
type IndexWriter interface {
	Upsert(ctx context.Context, doc domdevice.Document) error
	Delete(ctx context.Context, id int64) error
}

// IndexReader reads the indexed document of a device.
type IndexReader interface {
	Get(ctx context.Context, id int64) (domdevice.Document, error)
}

// IndexLister enumerates indexed document ids.
type IndexLister interface {
	IDs(ctx context.Context) ([]int64, error)
}

// SweepIndex is the index surface a full reindex needs.
type SweepIndex interface {
	IndexWriter
	IndexReader
	IndexLister
}
