package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/yuvalr-dev/librarium/internal/models"
)

// ReplaceDocumentChunks persists one document's chunk and vector set in
// a single transaction. If a document already exists for the same
// (workspace, storage path) its row is reused and its old chunks are
// deleted first, so re-ingesting a file never duplicates rows. Any
// failure rolls back and leaves the previously stored state intact.
func (c *DatabaseClient) ReplaceDocumentChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk, vectors []models.DocumentVector) error {
	if doc == nil {
		return errors.New("nil document")
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Upsert the document row keyed on (workspace_id, storage_path).
	const upsert = `
		INSERT INTO documents
			(doc_id, workspace_id, uploaded_by, filename, storage_path, size_bytes, status, error_reason, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, 'stored', '', $7)
		ON CONFLICT (workspace_id, storage_path) DO UPDATE
		SET uploaded_by = EXCLUDED.uploaded_by,
		    filename = EXCLUDED.filename,
		    size_bytes = EXCLUDED.size_bytes,
		    status = 'stored',
		    error_reason = '',
		    metadata = EXCLUDED.metadata,
		    updated_at = now()
		RETURNING doc_id
	`
	var meta any
	if len(doc.Metadata) > 0 {
		meta = string(doc.Metadata)
	}
	var actualID string
	if err := tx.QueryRowContext(ctx, upsert,
		doc.ID, doc.WorkspaceID, doc.UploadedBy, doc.FileName, doc.StoragePath,
		doc.SizeBytes, meta,
	).Scan(&actualID); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	doc.ID = actualID

	// Old chunk set goes away entirely; vectors cascade with it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE doc_id = $1`, actualID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	const insChunk = `
		INSERT INTO document_chunks
			(chunk_id, doc_id, chunk_index, chunk_text, chunking_method, chunk_size, chunk_overlap, page_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	chunkStmt, err := tx.PrepareContext(ctx, insChunk)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		ch.DocumentID = actualID
		if _, err := chunkStmt.ExecContext(ctx,
			ch.ID, actualID, ch.Index, ch.Text, ch.ChunkingMethod, ch.ChunkSize, ch.ChunkOverlap, ch.PageNumber,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.Index, err)
		}
	}

	const insVector = `
		INSERT INTO document_vectors (vector_id, chunk_id, embedding_model, embedding)
		VALUES ($1, $2, $3, $4)
	`
	vecStmt, err := tx.PrepareContext(ctx, insVector)
	if err != nil {
		return err
	}
	defer vecStmt.Close()

	for i := range vectors {
		v := &vectors[i]
		if len(v.Embedding) != c.embedDim {
			return fmt.Errorf("vector for chunk %s has dimension %d, column expects %d", v.ChunkID, len(v.Embedding), c.embedDim)
		}
		if _, err := vecStmt.ExecContext(ctx,
			v.ID, v.ChunkID, v.EmbeddingModel, pgvector.NewVector(v.Embedding),
		); err != nil {
			return fmt.Errorf("insert vector for chunk %s: %w", v.ChunkID, err)
		}
	}

	return tx.Commit()
}

func (c *DatabaseClient) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT chunk_id, doc_id, chunk_index, chunk_text, chunking_method, chunk_size, chunk_overlap, page_number, created_at
		FROM document_chunks
		WHERE doc_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := c.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var ch models.DocumentChunk
		if err := rows.Scan(
			&ch.ID, &ch.DocumentID, &ch.Index, &ch.Text, &ch.ChunkingMethod,
			&ch.ChunkSize, &ch.ChunkOverlap, &ch.PageNumber, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// metricOperator maps a similarity metric to its pgvector operator. All
// three operators yield "smaller is better" values (<#> is the negated
// inner product), so ranking always orders ascending.
func metricOperator(metric string) (string, error) {
	switch metric {
	case "cosine":
		return "<=>", nil
	case "l2":
		return "<->", nil
	case "inner":
		return "<#>", nil
	default:
		return "", fmt.Errorf("unsupported similarity metric: %q", metric)
	}
}

// searchChunksQuery builds the ranked retrieval statement. Ties on the
// distance break by ascending chunk index, then ascending document id,
// so repeated calls return an identical ordering.
func searchChunksQuery(metric string) (string, error) {
	op, err := metricOperator(metric)
	if err != nil {
		return "", err
	}
	q := `
		SELECT c.chunk_id, c.doc_id, c.chunk_index, c.chunk_text,
		       c.chunking_method, c.chunk_size, c.chunk_overlap, c.page_number, c.created_at,
		       d.filename, v.embedding ` + op + ` $1 AS distance
		FROM document_vectors v
		JOIN document_chunks c ON c.chunk_id = v.chunk_id
		JOIN documents d ON d.doc_id = c.doc_id
		WHERE d.workspace_id = $2 AND v.embedding_model = $3
		ORDER BY distance ASC, c.chunk_index ASC, c.doc_id ASC
		LIMIT $4
	`
	return q, nil
}

// SearchWorkspaceChunks ranks every vector stored under the given model
// in the workspace against the query vector and returns the top-k hits,
// best first.
func (c *DatabaseClient) SearchWorkspaceChunks(ctx context.Context, workspaceID, embeddingModel string, queryVec []float32, metric string, limit int) ([]models.RankedChunk, error) {
	q, err := searchChunksQuery(metric)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(queryVec), workspaceID, embeddingModel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RankedChunk
	for rows.Next() {
		var rc models.RankedChunk
		if err := rows.Scan(
			&rc.Chunk.ID, &rc.Chunk.DocumentID, &rc.Chunk.Index, &rc.Chunk.Text,
			&rc.Chunk.ChunkingMethod, &rc.Chunk.ChunkSize, &rc.Chunk.ChunkOverlap,
			&rc.Chunk.PageNumber, &rc.Chunk.CreatedAt,
			&rc.FileName, &rc.Similarity,
		); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
