package devsearch

import domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"

// Device is a stored device. ID is assigned by the record store and
// ignored on input.
type Device struct {
	ID      int64
	Title   string
	Content string
}

// BatchResult is the outcome of one CreateMany item, in input order.
// Device.ID is set whenever the record store committed the item, even when
// Err is a *PartialWriteError.
type BatchResult struct {
	Device Device
	OK     bool
	Err    error
}

// ReindexReport summarizes a Reindex call.
type ReindexReport struct {
	Indexed int
	// Unchanged counts documents that already matched their record.
	Unchanged int
	Removed   int
	Failed    int
}

func deviceFromDoc(d domdevice.Document) Device {
	return Device{ID: d.ID, Title: d.Title, Content: d.Content}
}

func devicesFromDocs(docs []domdevice.Document) []Device {
	out := make([]Device, len(docs))
	for i, d := range docs {
		out[i] = deviceFromDoc(d)
	}
	return out
}
