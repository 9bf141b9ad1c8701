// Package device coordinates writes to the record store and the search
// index and answers keyword searches.
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/domain"
	dombatch "github.com/kailas-cloud/devsearch/internal/domain/batch"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/outbox"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
	"github.com/kailas-cloud/devsearch/internal/domain/search/result"
	"github.com/kailas-cloud/devsearch/internal/logger"
	"github.com/kailas-cloud/devsearch/internal/metrics"
)

// DefaultMaxBatchSize is the maximum number of items per batch unless configured.
const DefaultMaxBatchSize = 100

// Service writes devices to the record store first and the search index
// second, always under the id the record store assigned.
type Service struct {
	records      RecordStore
	index        SearchIndex
	maxBatchSize int
}

// New creates a device service.
func New(records RecordStore, index SearchIndex) *Service {
	return &Service{
		records:      records,
		index:        index,
		maxBatchSize: DefaultMaxBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// IngestOne persists a device and mirrors it into the search index.
//
// When the index write fails after the record committed, the returned error
// is a *domain.PartialWriteError carrying the committed id; the outbox marker
// stays behind for the reconcile worker.
func (s *Service) IngestOne(ctx context.Context, in domdevice.Input) (domdevice.Document, error) {
	if err := in.Validate(); err != nil {
		metrics.DualWritesTotal.WithLabelValues(string(outbox.OpUpsert), metrics.OutcomeRejected).Inc()
		return domdevice.Document{}, err
	}

	rec, err := s.records.Create(ctx, in)
	if err != nil {
		metrics.DualWritesTotal.WithLabelValues(string(outbox.OpUpsert), outcomeOf(err)).Inc()
		return domdevice.Document{}, fmt.Errorf("create record: %w", err)
	}

	doc := domdevice.DocumentFrom(rec)
	if err := s.index.Upsert(ctx, doc); err != nil {
		metrics.DualWritesTotal.WithLabelValues(string(outbox.OpUpsert), metrics.OutcomePartial).Inc()
		logger.FromContext(ctx).Warn("index upsert failed after record commit",
			zap.Int64("device_id", rec.ID()),
			zap.Error(err),
		)
		return doc, domain.NewPartialWrite(rec.ID(), string(outbox.OpUpsert), err)
	}

	s.ack(ctx, rec.ID(), outbox.OpUpsert)
	metrics.DualWritesTotal.WithLabelValues(string(outbox.OpUpsert), metrics.OutcomeOK).Inc()
	return doc, nil
}

// IngestMany ingests every item independently and reports one result per
// item in input order. A failed item never stops or undoes the others.
func (s *Service) IngestMany(ctx context.Context, inputs []domdevice.Input) []dombatch.Result {
	results := make([]dombatch.Result, len(inputs))

	if len(inputs) > s.maxBatchSize {
		for i, in := range inputs {
			results[i] = dombatch.NewError(
				domdevice.Document{Title: in.Title, Content: in.Content},
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrConstraintViolation),
			)
		}
		return results
	}

	for i, in := range inputs {
		doc, err := s.IngestOne(ctx, in)
		if err != nil {
			if doc.ID == 0 {
				doc = domdevice.Document{Title: in.Title, Content: in.Content}
			}
			results[i] = dombatch.NewError(doc, err)
			continue
		}
		results[i] = dombatch.NewOK(doc)
	}

	return results
}

// SearchAll returns every document matching keyword, most relevant first.
// A blank keyword matches nothing and does not reach the index.
func (s *Service) SearchAll(ctx context.Context, keyword string) ([]domdevice.Document, error) {
	if strings.TrimSpace(keyword) == "" {
		metrics.SearchRequestsTotal.WithLabelValues("empty").Inc()
		return []domdevice.Document{}, nil
	}

	req, err := query.KeywordRequest(keyword)
	if err != nil {
		if len(query.Terms(keyword)) == 0 && len(keyword) <= query.MaxQueryLength {
			// Punctuation only: nothing can match.
			metrics.SearchRequestsTotal.WithLabelValues("empty").Inc()
			return []domdevice.Document{}, nil
		}
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("build query: %w", err)
	}

	hits, err := s.index.Search(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("search index: %w", err)
	}

	metrics.SearchRequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.SearchHits.Observe(float64(len(hits)))
	return result.Documents(hits), nil
}

// Get returns a device from the record store.
func (s *Service) Get(ctx context.Context, id int64) (domdevice.Document, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return domdevice.Document{}, fmt.Errorf("get record: %w", err)
	}
	return domdevice.DocumentFrom(rec), nil
}

// Delete removes a device from the record store and then from the index.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.records.Delete(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrDeviceNotFound) {
			metrics.DualWritesTotal.WithLabelValues(string(outbox.OpDelete), outcomeOf(err)).Inc()
		}
		return fmt.Errorf("delete record: %w", err)
	}

	if err := s.index.Delete(ctx, id); err != nil {
		metrics.DualWritesTotal.WithLabelValues(string(outbox.OpDelete), metrics.OutcomePartial).Inc()
		logger.FromContext(ctx).Warn("index delete failed after record commit",
			zap.Int64("device_id", id),
			zap.Error(err),
		)
		return domain.NewPartialWrite(id, string(outbox.OpDelete), err)
	}

	s.ack(ctx, id, outbox.OpDelete)
	metrics.DualWritesTotal.WithLabelValues(string(outbox.OpDelete), metrics.OutcomeOK).Inc()
	return nil
}

// ack clears the outbox marker. A failure only delays cleanup: the worker
// repeats the idempotent index write and acks again.
func (s *Service) ack(ctx context.Context, id int64, op outbox.Op) {
	if err := s.records.Ack(ctx, id, op); err != nil {
		logger.FromContext(ctx).Warn("outbox ack failed",
			zap.Int64("device_id", id),
			zap.String("op", string(op)),
			zap.Error(err),
		)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, domain.ErrConstraintViolation) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailed
}
