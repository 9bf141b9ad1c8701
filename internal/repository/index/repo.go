// Package index is the search index gateway: device documents stored as
// hashes under a key prefix and a RediSearch index over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/devsearch/internal/db"
	"github.com/kailas-cloud/devsearch/internal/domain"
	"github.com/kailas-cloud/devsearch/internal/domain/device"
	"github.com/kailas-cloud/devsearch/internal/domain/search/query"
	"github.com/kailas-cloud/devsearch/internal/domain/search/result"
)

// Document hash fields.
const (
	fieldID      = "id"
	fieldTitle   = "title"
	fieldContent = "content"
)

// DefaultMaxHits caps a search when no limit is configured.
const DefaultMaxHits = 1000

var returnFields = []string{fieldID, fieldTitle, fieldContent}

// store is the consumer interface for the search engine (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements usecase/device.SearchIndex.
type Repo struct {
	store     store
	keyPrefix string
	indexName string
	maxHits   int
}

// New creates a search index repository. keyPrefix namespaces every key,
// e.g. "devsearch:".
func New(s store, keyPrefix string, maxHits int) *Repo {
	if maxHits <= 0 {
		maxHits = DefaultMaxHits
	}
	return &Repo{
		store:     s,
		keyPrefix: keyPrefix + "device:",
		indexName: keyPrefix + "devices:idx",
		maxHits:   maxHits,
	}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.indexName }

// Definition builds and validates the index schema.
func (r *Repo) Definition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.indexName).
		OnHash().
		Prefix(r.keyPrefix).
		Text(fieldTitle).
		Text(fieldContent).
		NumericSortable(fieldID).
		Build()
	if err != nil {
		return nil, fmt.Errorf("index definition %s: %w", r.indexName, err)
	}
	return def, nil
}

// EnsureIndex creates the index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.Definition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return indexErr("create index "+r.indexName, err)
	}
	return nil
}

// RecreateIndex drops the index definition and creates it again. Documents
// stay in place and the engine indexes them anew in the background.
func (r *Repo) RecreateIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return indexErr("drop index "+r.indexName, err)
	}
	return r.EnsureIndex(ctx)
}

// Ping reports whether the engine answers and the index is in place.
func (r *Repo) Ping(ctx context.Context) error {
	ok, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return indexErr("index info "+r.indexName, err)
	}
	if !ok {
		return fmt.Errorf("index %s does not exist: %w", r.indexName, domain.ErrIndexUnavailable)
	}
	return nil
}

// Upsert stores the document under its id, replacing any previous version.
func (r *Repo) Upsert(ctx context.Context, doc device.Document) error {
	key := r.docKey(doc.ID)
	fields := map[string]string{
		fieldID:      strconv.FormatInt(doc.ID, 10),
		fieldTitle:   doc.Title,
		fieldContent: doc.Content,
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return indexErr("hset "+key, err)
	}
	return nil
}

// Get returns the indexed document of a device.
func (r *Repo) Get(ctx context.Context, id int64) (device.Document, error) {
	key := r.docKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return device.Document{}, domain.ErrDeviceNotFound
		}
		return device.Document{}, indexErr("hgetall "+key, err)
	}
	return device.Document{ID: id, Title: m[fieldTitle], Content: m[fieldContent]}, nil
}

// Delete removes the document of a device. Missing documents are not an error.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	key := r.docKey(id)
	if err := r.store.Del(ctx, key); err != nil {
		return indexErr("del "+key, err)
	}
	return nil
}

// IDs lists the ids of every indexed document.
func (r *Repo) IDs(ctx context.Context) ([]int64, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix+"*")
	if err != nil {
		return nil, indexErr("scan "+r.keyPrefix, err)
	}

	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, r.keyPrefix), 10, 64)
		if err != nil {
			continue // foreign key under our prefix
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Search runs the request and returns every hit up to the configured cap,
// highest relevance first.
func (r *Repo) Search(ctx context.Context, req query.Request) ([]result.Hit, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.indexName,
		Request:      req,
		Limit:        r.maxHits,
		Scorer:       db.ScorerBM25,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, indexErr("search "+r.indexName, err)
	}

	return r.parseHits(sr), nil
}

func (r *Repo) parseHits(sr *db.SearchResult) []result.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return []result.Hit{}
	}

	hits := make([]result.Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		idStr, ok := e.Fields[fieldID]
		if !ok {
			idStr = strings.TrimPrefix(e.Key, r.keyPrefix)
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, result.New(e.Score, device.Document{
			ID:      id,
			Title:   e.Fields[fieldTitle],
			Content: e.Fields[fieldContent],
		}))
	}
	return hits
}

func (r *Repo) docKey(id int64) string {
	return r.keyPrefix + strconv.FormatInt(id, 10)
}

// indexErr maps store errors to domain sentinels.
func indexErr(op string, err error) error {
	if errors.Is(err, db.ErrQuerySyntax) || errors.Is(err, domain.ErrQueryTranslation) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrQueryTranslation, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrIndexUnavailable, err)
}
