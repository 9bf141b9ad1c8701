package chi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/domain"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
	"github.com/kailas-cloud/devsearch/internal/domain/search/result"
	deviceuc "github.com/kailas-cloud/devsearch/internal/usecase/device"
	healthuc "github.com/kailas-cloud/devsearch/internal/usecase/health"
)

// memRecords is an in-memory record store that assigns increasing ids.
type memRecords struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]domdevice.Record
	err     error
	pingErr error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[int64]domdevice.Record{}}
}

func (m *memRecords) Create(_ context.Context, in domdevice.Input) (domdevice.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domdevice.Record{}, m.err
	}
	m.nextID++
	rec := domdevice.Reconstruct(m.nextID, in.Title, in.Content)
	m.rows[rec.ID()] = rec
	return rec, nil
}

func (m *memRecords) Get(_ context.Context, id int64) (domdevice.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[id]
	if !ok {
		return domdevice.Record{}, domain.ErrDeviceNotFound
	}
	return rec, nil
}

func (m *memRecords) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return domain.ErrDeviceNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRecords) Ack(context.Context, int64, outbox.Op) error { return nil }

func (m *memRecords) Ping(context.Context) error { return m.pingErr }

// memIndex scores a document 3 per term found in its title and 1 per term
// found in its content, mirroring the boosted keyword template.
type memIndex struct {
	mu      sync.Mutex
	docs    map[int64]domdevice.Document
	err     error
	pingErr error
}

func newMemIndex() *memIndex {
	return &memIndex{docs: map[int64]domdevice.Document{}}
}

func (m *memIndex) Upsert(_ context.Context, doc domdevice.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memIndex) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.docs, id)
	return nil
}

func (m *memIndex) Search(_ context.Context, req query.Request) ([]result.Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	terms := req.Root().Should()[0].Terms()

	hits := []result.Hit{}
	for _, d := range m.docs {
		var score float64
		for _, t := range terms {
			if strings.Contains(strings.ToLower(d.Title), t) {
				score += 3
			}
			if strings.Contains(strings.ToLower(d.Content), t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, result.New(score, d))
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score() != hits[j].Score() {
			return hits[i].Score() > hits[j].Score()
		}
		return hits[i].ID() < hits[j].ID()
	})
	return hits, nil
}

func (m *memIndex) Ping(context.Context) error { return m.pingErr }

var errIndexDown = errors.New("connection refused")

type testEnv struct {
	records *memRecords
	index   *memIndex
	handler http.Handler
}

func newTestEnv(apiKeys ...string) *testEnv {
	records := newMemRecords()
	index := newMemIndex()
	devices := deviceuc.New(records, index).WithMaxBatchSize(5)
	health := healthuc.New(records, index)
	return &testEnv{
		records: records,
		index:   index,
		handler: NewRouter(NewServer(devices, health), apiKeys, zap.NewNop()),
	}
}
