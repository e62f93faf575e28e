package embed

import (
	"context"
	"fmt"

	docerrors "github.com/Aman-CERP/docqa/internal/errors"
)

// requestFunc performs one provider request for a sub-batch of texts.
type requestFunc func(ctx context.Context, texts []string) ([][]float32, error)

// guardedBatch sends texts in windows of batchSize, each window under g.
// Every returned vector is checked against dims. Cancellation is honoured
// between windows.
func guardedBatch(ctx context.Context, g *docerrors.Guard, texts []string, batchSize, dims int, call requestFunc) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))

	for _, w := range splitBatches(len(texts), batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		part := texts[w[0]:w[1]]
		vecs, err := docerrors.Do(ctx, g, func(ctx context.Context) ([][]float32, error) {
			vecs, err := call(ctx, part)
			if err != nil {
				return nil, err
			}
			if err := checkShape(vecs, len(part), dims); err != nil {
				return nil, err
			}
			return vecs, nil
		})
		if err != nil {
			return nil, err
		}
		results = append(results, vecs...)
	}

	return results, nil
}

// checkShape verifies the provider returned one vector of dims per text.
func checkShape(vecs [][]float32, want, dims int) error {
	if len(vecs) != want {
		return docerrors.New(docerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("provider returned %d vectors for %d texts", len(vecs), want), nil)
	}
	for i, v := range vecs {
		if dims > 0 && len(v) != dims {
			return docerrors.New(docerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(v), dims), nil).
				WithSuggestion("Set embeddings.dimensions to match the embedding model.")
		}
	}
	return nil
}

// embedOne is Embed expressed through EmbedBatch.
func embedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
