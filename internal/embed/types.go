// Package embed turns chunk and query text into fixed-dimension vectors.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants
const (
	// DefaultBatchSize is the number of texts sent per provider request.
	DefaultBatchSize = 256

	// MaxBatchSize is the largest batch the OpenAI embeddings endpoint accepts.
	MaxBatchSize = 2048

	// DefaultTimeout bounds a single provider request.
	DefaultTimeout = 30 * time.Second

	// DefaultOpenAIModel is the embedding model used when none is configured.
	DefaultOpenAIModel = "text-embedding-ada-002"

	// DefaultDimensions is the vector size of text-embedding-ada-002.
	DefaultDimensions = 1536

	// StaticDimensions is the default vector size of the offline embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
//
// EmbedBatch returns exactly one vector per input, in input order.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector applies L2 normalization to a vector.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}
	return result
}

// splitBatches cuts n items into [start, end) windows of at most size.
func splitBatches(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	windows := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		windows = append(windows, [2]int{start, end})
	}
	return windows
}
