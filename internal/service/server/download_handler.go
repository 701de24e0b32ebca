package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/downpour-dl/downpour/internal/download"
)

// DownloadHandler serves the /api/v1/httpdownload endpoints.
type DownloadHandler struct {
	registry *download.Registry
	logger   *zap.Logger
}

// NewDownloadHandler creates a new DownloadHandler
func NewDownloadHandler(registry *download.Registry, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{registry: registry, logger: logger}
}

// createRequest is the body of POST /api/v1/httpdownload.
type createRequest struct {
	URL      string `json:"url"`
	FilePath string `json:"file_path,omitempty"`
}

// HandleCollection handles requests against the download collection:
// POST creates a download, GET lists all downloads.
func (h *DownloadHandler) HandleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.registry.List())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleItem handles requests against a single download:
// GET /{id}, POST /{id}/pause, POST /{id}/resume.
func (h *DownloadHandler) HandleItem(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/httpdownload/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		h.writeError(w, download.ErrNotFound)
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.writeError(w, download.ErrNotFound)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, id)
	case len(parts) == 2 && r.Method == http.MethodPost && parts[1] == "pause":
		h.pause(w, r, id)
	case len(parts) == 2 && r.Method == http.MethodPost && parts[1] == "resume":
		h.resume(w, id)
	case len(parts) == 1 || (len(parts) == 2 && (parts[1] == "pause" || parts[1] == "resume")):
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		h.writeError(w, download.ErrNotFound)
	}
}

func (h *DownloadHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("url is required"))
		return
	}

	data, err := h.registry.Create(r.Context(), req.URL, req.FilePath)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *DownloadHandler) get(w http.ResponseWriter, id uuid.UUID) {
	data, err := h.registry.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *DownloadHandler) pause(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	data, err := h.registry.Pause(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *DownloadHandler) resume(w http.ResponseWriter, id uuid.UUID) {
	data, err := h.registry.Resume(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// writeError maps registry errors to HTTP status codes.
func (h *DownloadHandler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, download.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, download.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.Is(err, download.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, download.ErrInsufficientSpace):
		status = http.StatusInsufficientStorage
	case errors.Is(err, download.ErrNetwork):
		status = http.StatusBadGateway
	default:
		h.logger.Error("unexpected error handling download request", zap.Error(err))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
