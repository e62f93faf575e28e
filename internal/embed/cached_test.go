package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_CacheHit_SkipsInner(t *testing.T) {
	// Given: a cached embedder
	inner := newCountingEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: I embed the same question twice
	v1, err1 := cached.Embed(ctx, "what is the RTO?")
	v2, err2 := cached.Embed(ctx, "what is the RTO?")

	// Then: the inner embedder is called once and results match
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, int64(1), inner.batchCalls.Load())
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_EmbedBatch_OnlySendsMisses(t *testing.T) {
	// Given: a cache already holding "a"
	inner := newCountingEmbedder(4)
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	_, err := cached.Embed(ctx, "a")
	require.NoError(t, err)

	// When: I embed a batch containing "a" and two new texts
	vecs, err := cached.EmbedBatch(ctx, []string{"bb", "a", "ccc"})

	// Then: only the misses reach the inner embedder, order is preserved
	require.NoError(t, err)
	assert.Equal(t, int64(3), inner.texts.Load())
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(2), vecs[0][0])
	assert.Equal(t, float32(1), vecs[1][0])
	assert.Equal(t, float32(3), vecs[2][0])
}

func TestCachedEmbedder_EvictsLeastRecentlyUsed(t *testing.T) {
	inner := newCountingEmbedder(4)
	cached := NewCachedEmbedder(inner, 1)
	ctx := context.Background()

	_, _ = cached.Embed(ctx, "one")
	_, _ = cached.Embed(ctx, "two")
	_, _ = cached.Embed(ctx, "one")

	assert.Equal(t, int64(3), inner.batchCalls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := newCountingEmbedder(7)
	cached := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 7, cached.Dimensions())
	assert.Equal(t, "counting", cached.ModelName())
	assert.NoError(t, cached.Close())

	vecs, err := cached.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
