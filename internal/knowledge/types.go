package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a durable unit of owned text content submitted for retrieval.
// A resource belongs to exactly one user; AgentID is nil for knowledge that
// is global to the user rather than tied to a specific agent.
type Resource struct {
	ID        uuid.UUID
	Content   string
	UserID    string
	AgentID   *string
	CreatedAt time.Time
}

// Match is one similarity-search result: a stored chunk and its cosine
// similarity to the query vector (1 - cosine distance, higher is closer).
type Match struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
