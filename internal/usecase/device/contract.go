package device

import (
	"context"

	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
	"github.com/kailas-cloud/devsearch/internal/domain/search/result"
)

// RecordStore is the system of record. Create and Delete leave an outbox
// marker committed together with the row.
type RecordStore interface {
	Create(ctx context.Context, in domdevice.Input) (domdevice.Record, error)
	Get(ctx context.Context, id int64) (domdevice.Record, error)
	Delete(ctx context.Context, id int64) error
	Ack(ctx context.Context, id int64, op outbox.Op) error
}

// SearchIndex is the derived full-text index.
type SearchIndex interface {
	Upsert(ctx context.Context, doc domdevice.Document) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, req query.Request) ([]result.Hit, error)
}
