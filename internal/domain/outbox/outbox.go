// Package outbox describes pending search-index work recorded next to the
// device rows in the record store.
package outbox

// Op is the index operation a marker asks for.
type Op string

const (
	// OpUpsert writes the current record state into the index.
	OpUpsert Op = "upsert"
	// OpDelete removes the document from the index.
	OpDelete Op = "delete"
)

// Entry is one pending marker. There is at most one per device; a newer
// operation replaces the older one and resets its attempts.
type Entry struct {
	DeviceID  int64
	Op        Op
	Attempts  int
	LastError string
}

// Stats summarizes the outbox backlog.
type Stats struct {
	// Pending counts every marker.
	Pending int
	// Exhausted counts markers that reached the attempt limit and are no longer drained.
	Exhausted int
}
