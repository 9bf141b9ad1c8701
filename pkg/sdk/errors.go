package devsearch

import "github.com/kailas-cloud/devsearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrStoreUnavailable    = domain.ErrStoreUnavailable
	ErrIndexUnavailable    = domain.ErrIndexUnavailable
	ErrConstraintViolation = domain.ErrConstraintViolation
	ErrPartialWrite        = domain.ErrPartialWrite
	ErrQueryTranslation    = domain.ErrQueryTranslation
	ErrDeviceNotFound      = domain.ErrDeviceNotFound
)

// PartialWriteError carries the id of a record that committed while its
// index write failed. Use errors.As() to get it.
type PartialWriteError = domain.PartialWriteError
