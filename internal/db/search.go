package db

import "github.com/kailas-cloud/devsearch/internal/domain/search/query"

// Scorer names a relevance scoring function of FT.SEARCH.
type Scorer string

const (
	// ScorerBM25 ranks by Okapi BM25.
	ScorerBM25 Scorer = "BM25"
	// ScorerTFIDF ranks by TF-IDF.
	ScorerTFIDF Scorer = "TFIDF"
)

// TextQuery is the input for a ranked full-text search.
type TextQuery struct {
	IndexName    string
	Request      query.Request
	Limit        int
	Scorer       Scorer
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search, in engine rank order.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
