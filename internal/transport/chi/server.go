package chi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	dombatch "github.com/kailas-cloud/devsearch/internal/domain/batch"
	domdevice "github.com/kailas-cloud/devsearch/internal/domain/device"
	deviceuc "github.com/kailas-cloud/devsearch/internal/usecase/device"
	healthuc "github.com/kailas-cloud/devsearch/internal/usecase/health"
)

// maxBodyBytes bounds request bodies: a full batch of maximum-size devices fits.
const maxBodyBytes = 32 << 20

// DeviceRequest is the body of POST /device and one item of POST /devices.
// A client-supplied id is ignored: the record store assigns it.
type DeviceRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DeviceResponse is a stored device.
type DeviceResponse struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BatchItemResponse is one item of the POST /devices response, in input order.
type BatchItemResponse struct {
	ID      *int64         `json:"id,omitempty"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Server serves the device HTTP API.
type Server struct {
	devices *deviceuc.Service
	health  *healthuc.Service
}

// NewServer creates an HTTP API server.
func NewServer(devices *deviceuc.Service, health *healthuc.Service) *Server {
	return &Server{devices: devices, health: health}
}

// CreateDevice handles POST /device.
func (s *Server) CreateDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := s.devices.IngestOne(r.Context(), domdevice.Input{Title: req.Title, Content: req.Content})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, deviceToResponse(doc))
}

// CreateDevices handles POST /devices. Items are processed independently:
// 200 when all succeeded, 207 when at least one failed.
func (s *Server) CreateDevices(w http.ResponseWriter, r *http.Request) {
	var req []DeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inputs := make([]domdevice.Input, len(req))
	for i, item := range req {
		inputs[i] = domdevice.Input{Title: item.Title, Content: item.Content}
	}

	results := s.devices.IngestMany(r.Context(), inputs)

	status := http.StatusOK
	items := make([]BatchItemResponse, len(results))
	for i, res := range results {
		items[i] = batchResultToResponse(res)
		if res.Status() != dombatch.StatusOK {
			status = http.StatusMultiStatus
			logItemError(r, i, res.Err())
		}
	}

	writeJSON(w, status, items)
}

// SearchDevices handles GET /search?keyword=.
func (s *Server) SearchDevices(w http.ResponseWriter, r *http.Request) {
	var keyword string
	if err := runtime.BindQueryParameter("form", true, true, "keyword", r.URL.Query(), &keyword); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "query parameter keyword is required")
		return
	}

	docs, err := s.devices.SearchAll(r.Context(), keyword)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	items := make([]DeviceResponse, len(docs))
	for i, d := range docs {
		items[i] = deviceToResponse(d)
	}
	writeJSON(w, http.StatusOK, items)
}

// GetDevice handles GET /device/{id}.
func (s *Server) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := bindDeviceID(w, r)
	if !ok {
		return
	}

	doc, err := s.devices.Get(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceToResponse(doc))
}

// DeleteDevice handles DELETE /device/{id}.
func (s *Server) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := bindDeviceID(w, r)
	if !ok {
		return
	}

	if err := s.devices.Delete(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

func bindDeviceID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "device id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func deviceToResponse(d domdevice.Document) DeviceResponse {
	return DeviceResponse{ID: d.ID, Title: d.Title, Content: d.Content}
}

func batchResultToResponse(res dombatch.Result) BatchItemResponse {
	doc := res.Document()
	item := BatchItemResponse{Title: doc.Title, Content: doc.Content}
	if doc.ID != 0 {
		id := doc.ID
		item.ID = &id
	}
	if res.Status() != dombatch.StatusOK {
		body := mapError(res.Err()).body
		body.ID = nil
		item.Error = &body
	}
	return item
}
