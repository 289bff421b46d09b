package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"

	"github.com/yuvalr-dev/librarium/internal/core"
)

// EmbedChunks obtains one vector per chunk, in chunk order. Chunks are
// grouped into batches of params.BatchSize; batches run concurrently
// under an errgroup, and any batch failure fails the whole stage so no
// partial embedding state ever reaches storage.
func EmbedChunks(ctx context.Context, provider core.EmbeddingProvider, params *RunParams, chunks []ChunkData) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 16
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(chunks); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			embs, err := provider.EmbedTexts(gctx, params.EmbeddingModel, texts)
			if err != nil {
				return &EmbeddingError{Transient: isTransientEmbedError(err), Err: err}
			}
			if len(embs) != len(texts) {
				return &EmbeddingError{
					Transient: false,
					Err:       fmt.Errorf("batch returned %d vectors for %d chunks", len(embs), len(texts)),
				}
			}
			copy(vectors[start:end], embs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// isTransientEmbedError decides whether re-running the embed stage from
// the unchanged chunk artifact can succeed. Rate limits, server errors,
// timeouts and network failures are transient; a bad model name or
// rejected input is not.
func isTransientEmbedError(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
