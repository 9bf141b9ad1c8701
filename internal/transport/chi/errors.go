package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/devsearch/internal/domain"
	"github.com/kailas-cloud/devsearch/internal/logger"
)

// Error codes returned to clients.
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeValidationFailed = "validation_failed"
	CodeInvalidQuery     = "invalid_query"
	CodeDeviceNotFound   = "device_not_found"
	CodePartialWrite     = "partial_write"
	CodeStoreUnavailable = "store_unavailable"
	CodeIndexUnavailable = "index_unavailable"
	CodeInternalError    = "internal_error"
	CodeNotFound         = "not_found"
	CodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// ID is the committed device id of a partial write.
	ID *int64 `json:"id,omitempty"`
}

type apiError struct {
	status int
	body   ErrorResponse
}

// errorHandler tries to map a domain error. Returns false if it does not apply.
type errorHandler func(err error) (apiError, bool)

// errorHandlers is ordered: a partial write also unwraps to the index
// failure behind it, so it must match before ErrIndexUnavailable.
var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrConstraintViolation, http.StatusBadRequest, CodeValidationFailed),
	sentinelHandler(domain.ErrQueryTranslation, http.StatusBadRequest, CodeInvalidQuery),
	sentinelHandler(domain.ErrDeviceNotFound, http.StatusNotFound, CodeDeviceNotFound),
	partialWriteHandler,
	sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable),
	sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text only.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(err error) (apiError, bool) {
		if !errors.Is(err, sentinel) {
			return apiError{}, false
		}
		return apiError{status: status, body: ErrorResponse{Code: code, Message: sentinel.Error()}}, true
	}
}

func partialWriteHandler(err error) (apiError, bool) {
	var pwe *domain.PartialWriteError
	if !errors.As(err, &pwe) {
		return apiError{}, false
	}
	id := pwe.ID
	return apiError{
		status: http.StatusInternalServerError,
		body: ErrorResponse{
			Code:    CodePartialWrite,
			Message: "device " + pwe.Op + " committed but the search index was not updated",
			ID:      &id,
		},
	}, true
}

// mapError resolves err to a status and body; unknown errors become internal_error.
func mapError(err error) apiError {
	for _, h := range errorHandlers {
		if ae, ok := h(err); ok {
			return ae
		}
	}
	return apiError{
		status: http.StatusInternalServerError,
		body:   ErrorResponse{Code: CodeInternalError, Message: "internal error"},
	}
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	ae := mapError(err)
	log := logger.FromContext(r.Context())
	if ae.status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", ae.body.Code), zap.Error(err))
	} else {
		log.Warn("domain error", zap.String("code", ae.body.Code), zap.Error(err))
	}
	writeJSON(w, ae.status, ae.body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func logItemError(r *http.Request, index int, err error) {
	ae := mapError(err)
	logger.FromContext(r.Context()).Warn("batch item failed",
		zap.Int("index", index),
		zap.String("code", ae.body.Code),
		zap.Error(err),
	)
}
