// Package retrieval orchestrates knowledge ingestion and query-time
// retrieval: chunking content, batching embedding calls, persisting chunk
// vectors, and answering "most relevant chunks" requests.
//
// This package is the error boundary for the whole pipeline. Its results are
// surfaced directly by an LLM tool-calling layer, so every operation degrades
// to a human-readable string instead of propagating raw errors. That is a
// deliberate design choice, not missing error handling: callers above this
// boundary always receive displayable text.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/agentkb/agentkb/internal/chunker"
	"github.com/agentkb/agentkb/internal/knowledge"
)

const (
	// DefaultSimilarityThreshold excludes matches with cosine similarity at
	// or below this value.
	DefaultSimilarityThreshold = 0.5

	// DefaultMaxResults caps the number of chunks returned per query.
	DefaultMaxResults = 4

	// NoRelevantInformation is returned verbatim when a query matches
	// nothing. The tool layer injects it into LLM context as-is, so an empty
	// store and a low-similarity query both degrade to readable text.
	NoRelevantInformation = "No relevant information found in the knowledge base."

	searchErrorMessage = "Error searching knowledge base, please try again."
)

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists resources and embeddings and answers similarity queries.
type Store interface {
	CreateResource(ctx context.Context, content, userID string, agentID *string) (uuid.UUID, error)
	InsertEmbeddings(ctx context.Context, resourceID uuid.UUID, chunks []string, vecs []pgvector.Vector) error
	DeleteResource(ctx context.Context, id uuid.UUID, userID string) error
	QuerySimilar(ctx context.Context, vec pgvector.Vector, userID string, agentID *string, threshold float64, limit int) ([]knowledge.Match, error)
}

// File is one uploaded file already parsed to plain text by the upstream
// collaborator. Binary formats are decoded before they reach this package.
type File struct {
	Name    string
	Content string
}

// FileResult reports the outcome of ingesting one file in a batch.
type FileResult struct {
	Filename   string `json:"filename"`
	Success    bool   `json:"success"`
	ResourceID string `json:"resource_id,omitempty"`
	ChunkCount int    `json:"chunks"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of a retrieval query: either ranked matches or a
// human-readable message (no matches, or a degraded failure). Exactly one of
// the two fields is populated.
type Result struct {
	Matches []knowledge.Match `json:"matches,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Config holds retrieval tuning parameters.
type Config struct {
	// SimilarityThreshold excludes matches at or below this similarity.
	// Zero means DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// MaxResults caps results per query. Zero means DefaultMaxResults.
	MaxResults int
}

// Service orchestrates the chunk → embed → persist pipeline and its query
// path. It is the only component that touches the chunker, the embedder, and
// the store together.
//
// Service is safe for concurrent use; concurrent ingestions for the same user
// interleave freely because resources are independent rows.
type Service struct {
	store     Store
	embedder  Embedder
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewService creates a Service. logger may be nil (defaults to slog.Default).
func NewService(store Store, embedder Embedder, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.SimilarityThreshold
	if threshold == 0 {
		threshold = DefaultSimilarityThreshold
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		threshold: threshold,
		limit:     limit,
		logger:    logger,
	}, nil
}

// CreateResource ingests one piece of content for the user: persist the
// resource, chunk it, embed all chunks in one call, and persist the chunk
// vectors. Content that produces zero chunks still succeeds; a resource may
// legitimately have nothing to embed.
//
// The ordering matters: the resource row must exist before embedding rows can
// reference it. No transaction spans the embedding call and the inserts; a
// crash in between leaves an orphaned embedding-less resource, an accepted
// consistency gap.
func (s *Service) CreateResource(ctx context.Context, content, userID string, agentID *string) string {
	resourceID, err := s.store.CreateResource(ctx, content, userID, agentID)
	if err != nil {
		s.logger.Error("creating resource", "user_id", userID, "error", err)
		return "Error creating resource, please try again."
	}

	chunks := chunker.Split(content)
	if len(chunks) == 0 {
		s.logger.Debug("resource has no embeddable content", "resource_id", resourceID)
		return "Resource successfully created and embedded (0 chunks)."
	}

	vecs, err := s.embedder.EmbedMany(ctx, chunks)
	if err != nil {
		s.logger.Error("embedding resource chunks", "resource_id", resourceID, "error", err)
		return "Error embedding resource content, please try again."
	}

	if err := s.insertChunks(ctx, resourceID, chunks, vecs); err != nil {
		s.logger.Error("storing embeddings", "resource_id", resourceID, "error", err)
		return "Error storing resource embeddings, please try again."
	}

	s.logger.Info("resource ingested", "resource_id", resourceID, "user_id", userID, "chunks", len(chunks))
	return fmt.Sprintf("Resource successfully created and embedded (%d chunks).", len(chunks))
}

// pendingFile tracks a file whose resource row exists and whose chunks await
// the shared embedding call. Chunk vectors live at vecs[offset:offset+len(chunks)]
// in the batch result.
type pendingFile struct {
	index      int // position in the results slice
	resourceID uuid.UUID
	chunks     []string
	offset     int
}

// CreateResourcesFromFiles ingests a batch of parsed files for the user.
//
// Resource rows are created per file up front, so a later embedding failure
// never rolls back earlier durable creations. All chunks from all files are
// flattened into exactly one EmbedMany call; provider round-trips dominate
// ingestion cost, so batch ingestion must never embed per file. If that one
// call fails, every file that had chunks is marked failed post hoc (their
// resource rows remain, unembedded) while zero-chunk files stay successful.
func (s *Service) CreateResourcesFromFiles(ctx context.Context, files []File, userID string, agentID *string) []FileResult {
	results := make([]FileResult, len(files))

	var pending []pendingFile
	var allChunks []string

	for i, f := range files {
		results[i] = FileResult{Filename: f.Name}

		resourceID, err := s.store.CreateResource(ctx, f.Content, userID, agentID)
		if err != nil {
			s.logger.Error("creating resource for file", "filename", f.Name, "error", err)
			results[i].Error = "failed to create resource"
			continue
		}
		results[i].ResourceID = resourceID.String()

		chunks := chunker.Split(f.Content)
		results[i].ChunkCount = len(chunks)
		if len(chunks) == 0 {
			// Nothing to embed; the file is done.
			results[i].Success = true
			continue
		}

		pending = append(pending, pendingFile{
			index:      i,
			resourceID: resourceID,
			chunks:     chunks,
			offset:     len(allChunks),
		})
		allChunks = append(allChunks, chunks...)
	}

	if len(allChunks) == 0 {
		return results
	}

	vecs, err := s.embedder.EmbedMany(ctx, allChunks)
	if err != nil {
		s.logger.Error("batch embedding failed", "files", len(pending), "chunks", len(allChunks), "error", err)
		for _, p := range pending {
			results[p.index].Error = "failed to embed content"
		}
		return results
	}

	for _, p := range pending {
		fileVecs := vecs[p.offset : p.offset+len(p.chunks)]
		if err := s.insertChunks(ctx, p.resourceID, p.chunks, fileVecs); err != nil {
			s.logger.Error("storing file embeddings", "resource_id", p.resourceID, "error", err)
			results[p.index].Error = "failed to store embeddings"
			continue
		}
		results[p.index].Success = true
	}

	s.logger.Info("batch ingestion complete", "files", len(files), "chunks", len(allChunks), "user_id", userID)
	return results
}

// FindRelevantContent embeds the query and returns the most similar stored
// chunks within the requested scope, ranked by similarity descending. An
// empty result set yields the NoRelevantInformation message rather than an
// empty list; failures yield a generic search error message.
func (s *Service) FindRelevantContent(ctx context.Context, query, userID string, agentID *string) Result {
	vec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		s.logger.Error("embedding query", "user_id", userID, "error", err)
		return Result{Message: searchErrorMessage}
	}

	matches, err := s.store.QuerySimilar(ctx, pgvector.NewVector(vec), userID, agentID, s.threshold, s.limit)
	if err != nil {
		s.logger.Error("similarity search", "user_id", userID, "error", err)
		return Result{Message: searchErrorMessage}
	}

	if len(matches) == 0 {
		return Result{Message: NoRelevantInformation}
	}
	return Result{Matches: matches}
}

// DeleteResource removes a resource (and, via cascade, its embeddings) after
// an ownership check. The not-found/forbidden outcome is reported distinctly
// from a generic failure.
func (s *Service) DeleteResource(ctx context.Context, id uuid.UUID, userID string) string {
	err := s.store.DeleteResource(ctx, id, userID)
	switch {
	case errors.Is(err, knowledge.ErrResourceNotFound):
		return "Resource not found or access denied."
	case err != nil:
		s.logger.Error("deleting resource", "resource_id", id, "user_id", userID, "error", err)
		return "Error deleting resource, please try again."
	}

	s.logger.Info("resource deleted", "resource_id", id, "user_id", userID)
	return "Resource deleted."
}

// insertChunks converts raw vectors to pgvector values and persists them
// against the resource.
func (s *Service) insertChunks(ctx context.Context, resourceID uuid.UUID, chunks []string, vecs [][]float32) error {
	pgVecs := make([]pgvector.Vector, len(vecs))
	for i, v := range vecs {
		pgVecs[i] = pgvector.NewVector(v)
	}
	return s.store.InsertEmbeddings(ctx, resourceID, chunks, pgVecs)
}
