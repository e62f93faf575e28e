package embed

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// vectorMagnitude computes the magnitude of a vector
func vectorMagnitude(v []float32) float64 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	return math.Sqrt(sum)
}

// cosineSimilarity computes cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dotProduct, magA, magB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(magA) * math.Sqrt(magB))
}

// countingEmbedder is a test double that counts calls and texts.
type countingEmbedder struct {
	batchCalls atomic.Int64
	texts      atomic.Int64
	dimensions int
}

func newCountingEmbedder(dims int) *countingEmbedder {
	return &countingEmbedder{dimensions: dims}
}

func (m *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, m, text)
}

func (m *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.texts.Add(int64(len(texts)))
	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, m.dimensions)
		vec[0] = float32(len(text))
		result[i] = vec
	}
	return result, nil
}

func (m *countingEmbedder) Dimensions() int   { return m.dimensions }
func (m *countingEmbedder) ModelName() string { return "counting" }
func (m *countingEmbedder) Close() error      { return nil }

// testGuard retries quickly and never opens the circuit within a test.
func testGuard(t *testing.T, maxRetries int) *docerrors.Guard {
	t.Helper()
	return docerrors.NewGuard(docerrors.GuardConfig{
		Name:    "embedding provider",
		Code:    docerrors.ErrCodeEmbeddingFailed,
		Timeout: 2 * time.Second,
		Retry: docerrors.RetryConfig{
			MaxRetries:   maxRetries,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1,
		},
		MaxFailures: 100,
	})
}
