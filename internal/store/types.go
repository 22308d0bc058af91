// Package store holds the indexed documents and the three retrieval
// layers over them: the exact/prefix symbol index, the BM25 full-text
// index, and the HNSW vector index, plus SQLite persistence. Mutations
// are applied per file path as an atomic set.
package store

import (
	"strings"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/embed"
)

// IndexedDocument is the stored unit: a chunk, its optional embedding,
// and metadata derived at index time.
type IndexedDocument struct {
	Chunk     *chunk.CodeChunk `json:"chunk"`
	Embedding *embed.Record    `json:"embedding,omitempty"`

	// Refs are the outgoing reference edges found in the chunk's span,
	// resolved against the symbol index at query time.
	Refs []chunk.Reference `json:"refs,omitempty"`

	// Quality is a multiplicative re-ranking bonus in (0, ~1.2].
	Quality float64 `json:"quality"`

	// Complexity is a rough size-based complexity score.
	Complexity float64 `json:"complexity"`
}

// VectorResult is one similarity search hit.
type VectorResult struct {
	ChunkID  string
	Distance float32
	Score    float64
}

// TextResult is one full-text search hit.
type TextResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// NewDocument wraps a chunk with derived metadata.
func NewDocument(c *chunk.CodeChunk, rec *embed.Record) *IndexedDocument {
	return &IndexedDocument{
		Chunk:      c,
		Embedding:  rec,
		Quality:    qualityOf(c),
		Complexity: complexityOf(c),
	}
}

// qualityOf scores how well-formed a chunk looks. Documented chunks get
// a bonus; degenerate ones (syntax-recovered fragments, enormous spans)
// are damped.
func qualityOf(c *chunk.CodeChunk) float64 {
	q := 1.0
	if c.DocComment != "" {
		q += 0.1
	}
	if c.Name != "" && !strings.ContainsAny(c.Name, " \t") {
		q += 0.05
	}
	if c.Location.Span() > 500 {
		q -= 0.15
	}
	if q < 0.5 {
		q = 0.5
	}
	return q
}

// complexityOf approximates complexity from span and nesting markers.
func complexityOf(c *chunk.CodeChunk) float64 {
	lines := float64(c.Location.Span())
	branches := float64(strings.Count(c.OriginalText, "if ") +
		strings.Count(c.OriginalText, "for ") +
		strings.Count(c.OriginalText, "while ") +
		strings.Count(c.OriginalText, "case "))
	return lines/10 + branches
}
