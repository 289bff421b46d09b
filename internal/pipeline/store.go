package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

// StoreChunks persists the chunk and vector set for one document in a
// single transaction. Dimensions are checked before touching the
// database so a mismatch never reaches a half-applied transaction; any
// database failure leaves the previously stored state intact.
func StoreChunks(ctx context.Context, db core.DbClient, embedDim int, doc *models.Document, params *RunParams, chunks []ChunkData, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return &StorageError{Err: fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors))}
	}
	for _, v := range vectors {
		if len(v) != embedDim {
			return &DimensionMismatchError{Got: len(v), Want: embedDim}
		}
	}

	chunkRows := make([]models.DocumentChunk, 0, len(chunks))
	vectorRows := make([]models.DocumentVector, 0, len(vectors))
	for i, c := range chunks {
		chunkID := uuid.NewString()
		chunkRows = append(chunkRows, models.DocumentChunk{
			ID:             chunkID,
			DocumentID:     doc.ID,
			Index:          c.Index,
			Text:           c.Text,
			ChunkingMethod: params.ChunkingMethod,
			ChunkSize:      params.ChunkSize,
			ChunkOverlap:   params.ChunkOverlap,
			PageNumber:     c.PageNumber,
		})
		vectorRows = append(vectorRows, models.DocumentVector{
			ID:             uuid.NewString(),
			ChunkID:        chunkID,
			EmbeddingModel: params.EmbeddingModel,
			Embedding:      vectors[i],
		})
	}

	if err := db.ReplaceDocumentChunks(ctx, doc, chunkRows, vectorRows); err != nil {
		return &StorageError{Err: err}
	}
	return nil
}
