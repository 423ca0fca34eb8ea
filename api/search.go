package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/agentkb/agentkb/internal/knowledge"
	"github.com/agentkb/agentkb/internal/retrieval"
)

// searchService is the subset of the retrieval service used by search.
type searchService interface {
	FindRelevantContent(ctx context.Context, query, userID string, agentID *string) retrieval.Result
}

// SearchHandler serves similarity search.
type SearchHandler struct {
	service searchService
	logger  *slog.Logger
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(service searchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: service, logger: logger}
}

// RegisterRoutes registers search routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.search)
}

// searchRequest is the body for POST /api/search.
type searchRequest struct {
	Query   string  `json:"query"`
	AgentID *string `json:"agent_id,omitempty"`
}

// searchResponse carries either ranked results or a readable message.
type searchResponse struct {
	Results []knowledge.Match `json:"results,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	res := h.service.FindRelevantContent(r.Context(), req.Query, userID, req.AgentID)
	writeJSON(w, http.StatusOK, searchResponse{Results: res.Matches, Message: res.Message})
}
