package reconcile

import (
	"context"
	"sort"
	"sync"

	"github.com/kailas-cloud/devsearch/internal/domain"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
)

// memRecords is an in-memory record store with an outbox.
type memRecords struct {
	mu        sync.Mutex
	rows      map[int64]domdevice.Record
	markers   map[int64]*outbox.Entry
	listErr   error
	statsErr  error
	existsErr error
}

func newMemRecords(recs ...domdevice.Record) *memRecords {
	m := &memRecords{rows: map[int64]domdevice.Record{}, markers: map[int64]*outbox.Entry{}}
	for _, r := range recs {
		m.rows[r.ID()] = r
	}
	return m
}

func (m *memRecords) mark(id int64, op outbox.Op, attempts int) {
	m.markers[id] = &outbox.Entry{DeviceID: id, Op: op, Attempts: attempts}
}

// remove deletes a record the way a concurrent Delete call would: the row
// and its marker go away together.
func (m *memRecords) remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	delete(m.markers, id)
}

func (m *memRecords) Exists(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memRecords) Get(_ context.Context, id int64) (domdevice.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domdevice.Record{}, domain.ErrDeviceNotFound
	}
	return r, nil
}

func (m *memRecords) ListAfter(_ context.Context, afterID int64, limit int) ([]domdevice.Record, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domdevice.Record, len(ids))
	for i, id := range ids {
		out[i] = m.rows[id]
	}
	return out, nil
}

func (m *memRecords) Pending(_ context.Context, limit, maxAttempts int) ([]outbox.Entry, error) {
	ids := make([]int64, 0, len(m.markers))
	for id, e := range m.markers {
		if e.Attempts < maxAttempts {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]outbox.Entry, len(ids))
	for i, id := range ids {
		out[i] = *m.markers[id]
	}
	return out, nil
}

func (m *memRecords) Ack(_ context.Context, id int64, op outbox.Op) error {
	if e, ok := m.markers[id]; ok && e.Op == op {
		delete(m.markers, id)
	}
	return nil
}

func (m *memRecords) Fail(_ context.Context, id int64, reason string) error {
	if e, ok := m.markers[id]; ok {
		e.Attempts++
		e.LastError = reason
	}
	return nil
}

func (m *memRecords) CountPending(_ context.Context, maxAttempts int) (outbox.Stats, error) {
	if m.statsErr != nil {
		return outbox.Stats{}, m.statsErr
	}
	var s outbox.Stats
	for _, e := range m.markers {
		s.Pending++
		if e.Attempts >= maxAttempts {
			s.Exhausted++
		}
	}
	return s, nil
}

// memIndex is a concurrency-safe in-memory index.
type memIndex struct {
	mu        sync.Mutex
	docs      map[int64]domdevice.Document
	upsertErr map[int64]error
	deleteErr error
	upserts   int
	// beforeUpsert runs ahead of every Upsert, outside the lock.
	beforeUpsert func(id int64)
}

func newMemIndex(docs ...domdevice.Document) *memIndex {
	m := &memIndex{docs: map[int64]domdevice.Document{}, upsertErr: map[int64]error{}}
	for _, d := range docs {
		m.docs[d.ID] = d
	}
	return m
}

func (m *memIndex) Upsert(_ context.Context, doc domdevice.Document) error {
	if m.beforeUpsert != nil {
		m.beforeUpsert(doc.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if err := m.upsertErr[doc.ID]; err != nil {
		return err
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memIndex) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.docs, id)
	return nil
}

func (m *memIndex) Get(_ context.Context, id int64) (domdevice.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domdevice.Document{}, domain.ErrDeviceNotFound
	}
	return d, nil
}

func (m *memIndex) IDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memIndex) has(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[id]
	return ok
}
