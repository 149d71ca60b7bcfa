// Package embed provides query/document embedding backends for the dense index.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default timeout for embedding requests.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256

	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default Ollama embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// Result order matches input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length.
// Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
