package batch

import "github.com/kailas-cloud/devsearch/internal/domain/device"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of ingesting one item of a batch.
type Result struct {
	doc    device.Document
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(doc device.Document) Result { return Result{doc: doc, status: StatusOK} }

// NewError creates a failed batch result. doc holds whatever was known about
// the item when it failed: the input fields, plus the id when the record
// store had already committed it.
func NewError(doc device.Document, err error) Result {
	return Result{doc: doc, status: StatusError, err: err}
}

// Document returns the indexed document, or the partial one for failed items.
func (r Result) Document() device.Document { return r.doc }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
