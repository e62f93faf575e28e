package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	// Given: an Ollama server that fails once with 503
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		out := ollamaEmbedResponse{Model: req.Model}
		for _, text := range req.Input {
			out.Embeddings = append(out.Embeddings, []float64{float64(len(text)), 0})
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{
		Host:       srv.URL + "/",
		Model:      "nomic-embed-text",
		Dimensions: 2,
	}, testGuard(t, 2))
	defer func() { _ = e.Close() }()

	// When: I embed two texts
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bcd"})

	// Then: the retry succeeds and order is preserved
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, [][]float32{{1, 0}, {3, 0}}, vecs)
	assert.Equal(t, "nomic-embed-text", e.ModelName())
}

func TestOllamaEmbedder_UnreachableHost(t *testing.T) {
	// Given: a server that is already shut down
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: url, Model: "m", Dimensions: 2}, testGuard(t, 0))

	// When: I embed
	_, err := e.Embed(context.Background(), "x")

	// Then: an embedding error is reported
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeEmbeddingFailed, docerrors.GetCode(err))
}

func TestOllamaEmbedder_ClosedRejectsCalls(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Model: "m"}, testGuard(t, 0))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
}
