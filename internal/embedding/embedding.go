// Package embedding converts text into fixed-dimension vectors using the
// Gemini embedding API.
//
// The client requests a truncated output dimensionality instead of the
// model's native maximum: pgvector's HNSW index caps indexable vectors at
// 2000 dimensions, and 1536 retains materially better retrieval quality than
// the 768-dimension small tier.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const (
	// Model is the embedding model identifier.
	// gemini-embedding-001 outputs 3072 dimensions natively and supports
	// truncation via OutputDimensionality (Matryoshka Representation
	// Learning).
	Model = "gemini-embedding-001"

	// Dimension is the requested output dimensionality. Must match the
	// vector(N) column in the embeddings table.
	Dimension = 1536
)

// Client generates embeddings via the Gemini API.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	genai  *genai.Client
	model  string
	logger *slog.Logger
}

// New creates an embedding client. logger may be nil (defaults to
// slog.Default).
func New(c *genai.Client, logger *slog.Logger) (*Client, error) {
	if c == nil {
		return nil, fmt.Errorf("genai client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{genai: c, model: Model, logger: logger}, nil
}

// NewClient dials the Gemini API with the given key and wraps it in a Client.
func NewClient(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return New(gc, logger)
}

// EmbedOne embeds a single text and returns a Dimension-length vector.
// Newlines are replaced with spaces before embedding; the provider's output
// quality degrades on embedded newlines.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{sanitize(text)})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds all texts in a single provider call and returns one vector
// per input, index-aligned with texts. Callers with more than one text must
// use this instead of repeated EmbedOne calls; round-trip latency to the
// provider dominates ingestion cost.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	cleaned := make([]string, len(texts))
	for i, t := range texts {
		cleaned[i] = sanitize(t)
	}
	return c.embed(ctx, cleaned)
}

// embed performs the provider call and validates the response shape.
func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	dim := int32(Dimension)
	resp, err := c.genai.Models.EmbedContent(ctx, c.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		if len(e.Values) != Dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d",
				i, len(e.Values), Dimension)
		}
		vecs[i] = e.Values
	}

	c.logger.Debug("generated embeddings", "count", len(vecs), "model", c.model)
	return vecs, nil
}

// sanitize replaces newlines with spaces.
func sanitize(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", " "), "\n", " ")
}
