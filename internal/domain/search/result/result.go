package result

import "github.com/kailas-cloud/devsearch/internal/domain/device"

// Hit is a single ranked search hit.
type Hit struct {
	score float64
	doc   device.Document
}

// New creates a search hit.
func New(score float64, doc device.Document) Hit {
	return Hit{score: score, doc: doc}
}

// ID returns the document identifier.
func (h *Hit) ID() int64 { return h.doc.ID }

// Score returns the relevance score assigned by the engine.
func (h *Hit) Score() float64 { return h.score }

// Document returns the hit payload without scoring metadata.
func (h *Hit) Document() device.Document { return h.doc }

// Documents flattens hits to their payloads, keeping the hit order.
func Documents(hits []Hit) []device.Document {
	docs := make([]device.Document, len(hits))
	for i := range hits {
		docs[i] = hits[i].doc
	}
	return docs
}
