// Package embed generates vector embeddings for chunk text. Providers
// are injected configuration: the rest of the pipeline only sees the
// Embedder interface, and running without embeddings is a first-class
// mode, not a failure.
package embed

import (
	"context"
	goerrors "errors"
	"math"
	"time"
)

const (
	// DefaultBatchSize is texts per provider request.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request to bound memory.
	MaxBatchSize = 256

	// DefaultMaxRetries is the attempt cap for transient failures.
	DefaultMaxRetries = 3

	// DefaultWarmTimeout applies when the model is already loaded.
	DefaultWarmTimeout = 60 * time.Second

	// DefaultColdTimeout applies on first use; model loading is slow.
	DefaultColdTimeout = 180 * time.Second

	// modelUnloadThreshold is how long Ollama keeps an idle model warm.
	modelUnloadThreshold = 5 * time.Minute
)

// ErrDisabled is returned when an embedding operation is invoked on the
// disabled embedder. Callers should consult Enabled first; downstream
// layers treat the disabled mode as vector-layer-absent, never as an
// indexing failure.
var ErrDisabled = goerrors.New("embeddings disabled")

// Record pairs a chunk with its embedding vector.
type Record struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"model_id"`
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Enabled reports whether this embedder produces vectors at all.
	Enabled() bool

	// Available checks whether the provider is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Normalize scales a vector to unit length so cosine similarity reduces
// to a dot product. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
