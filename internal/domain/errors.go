package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrStoreUnavailable signals that the record store could not be reached or failed.
	ErrStoreUnavailable = errors.New("record store unavailable")
	// ErrIndexUnavailable signals that the search engine could not be reached or failed.
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrConstraintViolation signals malformed or constraint-breaking input.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrPartialWrite signals that the record store committed but the index write failed.
	ErrPartialWrite = errors.New("partial write")
	// ErrQueryTranslation signals a keyword that cannot be turned into a search request.
	ErrQueryTranslation = errors.New("invalid search query")
	// ErrDeviceNotFound signals a missing device record.
	ErrDeviceNotFound = errors.New("device not found")
)

// PartialWriteError wraps ErrPartialWrite with the id of the committed record.
// The record store keeps the write; the index lags until the outbox worker
// or a reindex sweep catches up.
type PartialWriteError struct {
	ID  int64
	Op  string
	Err error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: device %s committed, index %s failed: %v",
		ErrPartialWrite.Error(), strconv.FormatInt(e.ID, 10), e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying index failure to errors.Is.
func (e *PartialWriteError) Unwrap() []error { return []error{ErrPartialWrite, e.Err} }

// NewPartialWrite creates a partial write error for the given record id and index operation.
func NewPartialWrite(id int64, op string, err error) error {
	return &PartialWriteError{ID: id, Op: op, Err: err}
}
