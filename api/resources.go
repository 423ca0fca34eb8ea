package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/agentkb/agentkb/internal/retrieval"
)

// userIDHeader carries the tenant identity, set by the upstream gateway.
const userIDHeader = "X-User-ID"

// maxUploadBytes caps a multipart upload; larger requests are rejected
// before any file is read into memory.
const maxUploadBytes = 10 << 20

// resourceService is the subset of the retrieval service used by ingestion
// and deletion endpoints.
type resourceService interface {
	CreateResource(ctx context.Context, content, userID string, agentID *string) string
	CreateResourcesFromFiles(ctx context.Context, files []retrieval.File, userID string, agentID *string) []retrieval.FileResult
	DeleteResource(ctx context.Context, id uuid.UUID, userID string) string
}

// ResourceHandler serves resource ingestion and deletion.
type ResourceHandler struct {
	service resourceService
	logger  *slog.Logger
}

// NewResourceHandler creates a resource handler.
func NewResourceHandler(service resourceService, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{service: service, logger: logger}
}

// RegisterRoutes registers resource routes on the given mux.
func (h *ResourceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/resources", h.create)
	mux.HandleFunc("POST /api/resources/files", h.createFromFiles)
	mux.HandleFunc("DELETE /api/resources/{id}", h.delete)
}

// createResourceRequest is the body for POST /api/resources.
type createResourceRequest struct {
	Content string  `json:"content"`
	AgentID *string `json:"agent_id,omitempty"`
}

// messageResponse carries a user-readable outcome message.
type messageResponse struct {
	Message string `json:"message"`
}

func (h *ResourceHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	msg := h.service.CreateResource(r.Context(), req.Content, userID, req.AgentID)
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg})
}

// fileResultsResponse is the body for POST /api/resources/files.
type fileResultsResponse struct {
	Results []retrieval.FileResult `json:"results"`
}

func (h *ResourceHandler) createFromFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request must be multipart form data within the size limit")
		return
	}

	var agentID *string
	if v := r.FormValue("agent_id"); v != "" {
		agentID = &v
	}

	var files []retrieval.File
	for _, header := range r.MultipartForm.File["files"] {
		f, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unreadable file "+header.Filename)
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unreadable file "+header.Filename)
			return
		}
		files = append(files, retrieval.File{Name: header.Filename, Content: string(content)})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one file is required")
		return
	}

	results := h.service.CreateResourcesFromFiles(r.Context(), files, userID, agentID)
	writeJSON(w, http.StatusOK, fileResultsResponse{Results: results})
}

func (h *ResourceHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "resource ID must be a UUID")
		return
	}

	msg := h.service.DeleteResource(r.Context(), id, userID)
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

// requireUserID extracts the tenant identity or writes a 401.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", userIDHeader+" header is required")
		return "", false
	}
	return userID, true
}
