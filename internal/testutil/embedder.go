package testutil

import (
	"context"
	"hash/fnv"

	"github.com/agentkb/agentkb/internal/embedding"
)

// StaticEmbedder produces deterministic vectors derived from the input
// text, so similarity queries behave consistently across test runs
// without calling the real provider. It records every call.
type StaticEmbedder struct {
	Dimension int

	OneCalls  []string
	ManyCalls [][]string

	Err error
}

// NewStaticEmbedder returns an embedder emitting vectors of the store's
// expected dimension.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{Dimension: embedding.Dimension}
}

// EmbedOne returns a deterministic vector for text.
func (e *StaticEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	e.OneCalls = append(e.OneCalls, text)
	if e.Err != nil {
		return nil, e.Err
	}
	return e.vectorFor(text), nil
}

// EmbedMany returns one deterministic vector per input text.
func (e *StaticEmbedder) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	e.ManyCalls = append(e.ManyCalls, texts)
	if e.Err != nil {
		return nil, e.Err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = e.vectorFor(t)
	}
	return vecs, nil
}

func (e *StaticEmbedder) vectorFor(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, e.Dimension)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return vec
}
