// Package knowledge persists resources and their chunk embeddings in
// PostgreSQL + pgvector and answers cosine-similarity queries over them.
//
// The store is pure persistence: it never calls the embedding provider.
// Embedding generation belongs to the retrieval service, which hands this
// package ready-made vectors.
//
// The ORM-free raw SQL is deliberate: vector columns and the <=> cosine
// distance operator need parameterized queries against the pgvector
// extension directly.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrResourceNotFound reports a delete against a resource that does not
// exist or is not owned by the requesting user. The two cases are
// indistinguishable on purpose; revealing which would leak other tenants'
// resource IDs.
var ErrResourceNotFound = errors.New("resource not found or not owned by user")

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages resources and embeddings backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines. Embedding rows are
// append-only and deletes are ownership-scoped, so concurrent writers never
// conflict at the row level.
type Store struct {
	db     querier
	logger *slog.Logger
}

// NewStore creates a Store. db is typically a *pgxpool.Pool shared
// process-wide; logger may be nil (defaults to slog.Default).
func NewStore(db querier, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// CreateResource inserts a new resource row and returns its identifier.
// Pure creation: chunking and embedding are the caller's responsibility.
func (s *Store) CreateResource(ctx context.Context, content, userID string, agentID *string) (uuid.UUID, error) {
	if userID == "" {
		return uuid.Nil, fmt.Errorf("user ID is required")
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO resources (content, user_id, agent_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		content, userID, agentID,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting resource: %w", err)
	}

	s.logger.Debug("created resource", "id", id, "user_id", userID, "content_length", len(content))
	return id, nil
}

// InsertEmbedding appends one chunk embedding for the given resource.
func (s *Store) InsertEmbedding(ctx context.Context, resourceID uuid.UUID, content string, vec pgvector.Vector) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO embeddings (resource_id, content, embedding)
		 VALUES ($1, $2, $3)`,
		resourceID, content, vec,
	)
	if err != nil {
		return fmt.Errorf("inserting embedding for resource %s: %w", resourceID, err)
	}
	return nil
}

// InsertEmbeddings appends a batch of (chunk, vector) pairs for one resource.
// chunks and vecs must be index-aligned.
func (s *Store) InsertEmbeddings(ctx context.Context, resourceID uuid.UUID, chunks []string, vecs []pgvector.Vector) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vecs))
	}
	for i, chunk := range chunks {
		if err := s.InsertEmbedding(ctx, resourceID, chunk, vecs[i]); err != nil {
			return err
		}
	}
	s.logger.Debug("inserted embeddings", "resource_id", resourceID, "count", len(chunks))
	return nil
}

// GetResource fetches one resource with an ownership check. Returns
// ErrResourceNotFound when the row does not exist or belongs to another user.
func (s *Store) GetResource(ctx context.Context, id uuid.UUID, userID string) (*Resource, error) {
	var r Resource
	err := s.db.QueryRow(ctx,
		`SELECT id, content, user_id, agent_id, created_at
		 FROM resources
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&r.ID, &r.Content, &r.UserID, &r.AgentID, &r.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, ErrResourceNotFound
	case err != nil:
		return nil, fmt.Errorf("querying resource %s: %w", id, err)
	}
	return &r, nil
}

// ListResources returns the user's resources, newest first, scoped the same
// way as QuerySimilar: with agentID, agent-specific plus global rows; without,
// global rows only.
func (s *Store) ListResources(ctx context.Context, userID string, agentID *string, limit int32) ([]Resource, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, content, user_id, agent_id, created_at
		 FROM resources
		 WHERE user_id = $1
		   AND CASE WHEN $2::text IS NULL
		       THEN agent_id IS NULL
		       ELSE (agent_id = $2 OR agent_id IS NULL)
		       END
		 ORDER BY created_at DESC
		 LIMIT $3`,
		userID, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var resources []Resource
	for rows.Next() {
		var r Resource
		if err := rows.Scan(&r.ID, &r.Content, &r.UserID, &r.AgentID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning resource row: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading resource rows: %w", err)
	}
	return resources, nil
}

// DeleteResource deletes a resource after verifying ownership. The foreign
// key cascade removes all of the resource's embeddings in the same statement.
// Returns ErrResourceNotFound when nothing was deleted.
func (s *Store) DeleteResource(ctx context.Context, id uuid.UUID, userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	tag, err := s.db.Exec(ctx,
		`DELETE FROM resources WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting resource %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}

	s.logger.Debug("deleted resource", "id", id, "user_id", userID)
	return nil
}

// QuerySimilar returns the stored chunks most similar to the query vector,
// scoped to the user's resources. With agentID, rows scoped to that agent and
// the user's global (NULL agent) rows are visible; without, global rows only.
// Results have similarity strictly greater than threshold, are ordered by
// similarity descending, and are capped at limit.
func (s *Store) QuerySimilar(ctx context.Context, vec pgvector.Vector, userID string, agentID *string, threshold float64, limit int) ([]Match, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(ctx,
		`SELECT e.content, 1 - (e.embedding <=> $1) AS similarity
		 FROM embeddings e
		 JOIN resources r ON r.id = e.resource_id
		 WHERE r.user_id = $2
		   AND CASE WHEN $3::text IS NULL
		       THEN r.agent_id IS NULL
		       ELSE (r.agent_id = $3 OR r.agent_id IS NULL)
		       END
		   AND 1 - (e.embedding <=> $1) > $4
		 ORDER BY e.embedding <=> $1
		 LIMIT $5`,
		vec, userID, agentID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying similar embeddings: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Content, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading match rows: %w", err)
	}

	s.logger.Debug("similarity query", "user_id", userID, "matches", len(matches))
	return matches, nil
}
