package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/yuvalr-dev/librarium/internal/models"
)

// Implementing the db interface for documents

const documentColumns = `doc_id, workspace_id, uploaded_by, filename, storage_path,
	size_bytes, status, error_reason, metadata, uploaded_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var d models.Document
	var meta sql.NullString
	err := row.Scan(
		&d.ID, &d.WorkspaceID, &d.UploadedBy, &d.FileName, &d.StoragePath,
		&d.SizeBytes, &d.Status, &d.ErrorReason, &meta, &d.UploadedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if meta.Valid {
		d.Metadata = []byte(meta.String)
	}
	return &d, nil
}

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(doc_id, workspace_id, uploaded_by, filename, storage_path, size_bytes, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at, updated_at
	`
	var meta any
	if len(doc.Metadata) > 0 {
		meta = string(doc.Metadata)
	}
	return c.db.QueryRowContext(ctx, q,
		doc.ID, doc.WorkspaceID, doc.UploadedBy, doc.FileName, doc.StoragePath,
		doc.SizeBytes, doc.Status, meta,
	).Scan(&doc.UploadedAt, &doc.UpdatedAt)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE doc_id = $1`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) GetDocumentByStoragePath(ctx context.Context, workspaceID, storagePath string) (*models.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE workspace_id = $1 AND storage_path = $2`
	d, err := scanDocument(c.db.QueryRowContext(ctx, q, workspaceID, storagePath))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (c *DatabaseClient) ListDocumentsByWorkspace(ctx context.Context, workspaceID string) ([]models.Document, error) {
	q := `SELECT ` + documentColumns + `
		FROM documents
		WHERE workspace_id = $1
		ORDER BY uploaded_at DESC`
	rows, err := c.db.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id, status, errorReason string) error {
	const q = `
		UPDATE documents
		SET status = $2, error_reason = $3, updated_at = now()
		WHERE doc_id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, errorReason)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteDocument(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE doc_id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}
