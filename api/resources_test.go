package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agentkb/agentkb/internal/knowledge"
	"github.com/agentkb/agentkb/internal/log"
	"github.com/agentkb/agentkb/internal/retrieval"
)

// mockKnowledgeService implements resourceService and searchService.
type mockKnowledgeService struct {
	createMsg   string
	deleteMsg   string
	fileResults []retrieval.FileResult
	findResult  retrieval.Result

	lastContent string
	lastUserID  string
	lastAgentID *string
	lastFiles   []retrieval.File
	lastQuery   string
	deletedID   uuid.UUID
}

func (m *mockKnowledgeService) CreateResource(_ context.Context, content, userID string, agentID *string) string {
	m.lastContent = content
	m.lastUserID = userID
	m.lastAgentID = agentID
	return m.createMsg
}

func (m *mockKnowledgeService) CreateResourcesFromFiles(_ context.Context, files []retrieval.File, userID string, agentID *string) []retrieval.FileResult {
	m.lastFiles = files
	m.lastUserID = userID
	m.lastAgentID = agentID
	return m.fileResults
}

func (m *mockKnowledgeService) DeleteResource(_ context.Context, id uuid.UUID, userID string) string {
	m.deletedID = id
	m.lastUserID = userID
	return m.deleteMsg
}

func (m *mockKnowledgeService) FindRelevantContent(_ context.Context, query, userID string, agentID *string) retrieval.Result {
	m.lastQuery = query
	m.lastUserID = userID
	m.lastAgentID = agentID
	return m.findResult
}

func newResourceMux(svc *mockKnowledgeService) *http.ServeMux {
	mux := http.NewServeMux()
	NewResourceHandler(svc, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestCreateResource_OK(t *testing.T) {
	svc := &mockKnowledgeService{createMsg: "Resource successfully created and embedded (2 chunks)."}
	mux := newResourceMux(svc)

	body := `{"content": "Some knowledge.", "agent_id": "agent-a"}`
	req := httptest.NewRequest("POST", "/api/resources", strings.NewReader(body))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Message != svc.createMsg {
		t.Errorf("message = %q, want %q", resp.Message, svc.createMsg)
	}
	if svc.lastUserID != "user-1" || svc.lastAgentID == nil || *svc.lastAgentID != "agent-a" {
		t.Error("identity not forwarded to the service")
	}
}

func TestCreateResource_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		withUser bool
		want     int
	}{
		{name: "missing user header", body: `{"content":"x"}`, withUser: false, want: http.StatusUnauthorized},
		{name: "invalid json", body: `{not json`, withUser: true, want: http.StatusBadRequest},
		{name: "empty content", body: `{"content":""}`, withUser: true, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newResourceMux(&mockKnowledgeService{})
			req := httptest.NewRequest("POST", "/api/resources", strings.NewReader(tt.body))
			if tt.withUser {
				req.Header.Set(userIDHeader, "user-1")
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCreateResourcesFromFiles_OK(t *testing.T) {
	svc := &mockKnowledgeService{fileResults: []retrieval.FileResult{
		{Filename: "a.txt", Success: true, ChunkCount: 1},
		{Filename: "b.txt", Success: true, ChunkCount: 0},
	}}
	mux := newResourceMux(svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("agent_id", "agent-a"); err != nil {
		t.Fatal(err)
	}
	for _, f := range []struct{ name, content string }{
		{"a.txt", "Alpha content."},
		{"b.txt", ""},
	} {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/resources/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp fileResultsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want 2", len(resp.Results))
	}

	if len(svc.lastFiles) != 2 || svc.lastFiles[0].Name != "a.txt" || svc.lastFiles[0].Content != "Alpha content." {
		t.Errorf("files forwarded = %+v", svc.lastFiles)
	}
	if svc.lastAgentID == nil || *svc.lastAgentID != "agent-a" {
		t.Error("agent_id form field not forwarded")
	}
}

func TestCreateResourcesFromFiles_NoFiles(t *testing.T) {
	mux := newResourceMux(&mockKnowledgeService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/resources/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteResource(t *testing.T) {
	svc := &mockKnowledgeService{deleteMsg: "Resource deleted."}
	mux := newResourceMux(svc)

	id := uuid.New()
	req := httptest.NewRequest("DELETE", "/api/resources/"+id.String(), nil)
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if svc.deletedID != id {
		t.Errorf("deleted ID = %s, want %s", svc.deletedID, id)
	}

	var resp messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Message != "Resource deleted." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestDeleteResource_InvalidID(t *testing.T) {
	mux := newResourceMux(&mockKnowledgeService{})

	req := httptest.NewRequest("DELETE", "/api/resources/not-a-uuid", nil)
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name   string
		result retrieval.Result
		check  func(*testing.T, searchResponse)
	}{
		{
			name:   "matches",
			result: retrieval.Result{Matches: []knowledge.Match{{Content: "fact", Similarity: 0.9}}},
			check: func(t *testing.T, resp searchResponse) {
				if len(resp.Results) != 1 || resp.Results[0].Content != "fact" {
					t.Errorf("results = %+v", resp.Results)
				}
				if resp.Message != "" {
					t.Errorf("unexpected message %q", resp.Message)
				}
			},
		},
		{
			name:   "sentinel message",
			result: retrieval.Result{Message: "No relevant information found in the knowledge base."},
			check: func(t *testing.T, resp searchResponse) {
				if resp.Message == "" || len(resp.Results) != 0 {
					t.Errorf("response = %+v, want message only", resp)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockKnowledgeService{findResult: tt.result}
			mux := http.NewServeMux()
			NewSearchHandler(svc, log.NewNop()).RegisterRoutes(mux)

			req := httptest.NewRequest("POST", "/api/search", strings.NewReader(`{"query": "anything"}`))
			req.Header.Set(userIDHeader, "user-1")
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp searchResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			tt.check(t, resp)
			if svc.lastQuery != "anything" {
				t.Errorf("query forwarded = %q", svc.lastQuery)
			}
		})
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	mux := http.NewServeMux()
	NewSearchHandler(&mockKnowledgeService{}, log.NewNop()).RegisterRoutes(mux)

	req := httptest.NewRequest("POST", "/api/search", strings.NewReader(`{"query": ""}`))
	req.Header.Set(userIDHeader, "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
