package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

// fakeDB implements the handful of DbClient methods the pipeline
// touches; anything else panics via the embedded nil interface.
type fakeDB struct {
	core.DbClient

	mu        sync.Mutex
	workspace *models.Workspace
	doc       *models.Document
	statuses  []string
	reasons   []string

	storedChunks  []models.DocumentChunk
	storedVectors []models.DocumentVector
	replaceErr    error
}

func (f *fakeDB) GetWorkspaceByID(ctx context.Context, id string) (*models.Workspace, error) {
	if f.workspace == nil || f.workspace.ID != id {
		return nil, nil
	}
	ws := *f.workspace
	return &ws, nil
}

func (f *fakeDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	if f.doc == nil || f.doc.ID != id {
		return nil, nil
	}
	d := *f.doc
	return &d, nil
}

func (f *fakeDB) UpdateDocumentStatus(ctx context.Context, id, status, errorReason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.doc == nil || f.doc.ID != id {
		return fmt.Errorf("document not found: %s", id)
	}
	f.doc.Status = status
	f.doc.ErrorReason = errorReason
	f.statuses = append(f.statuses, status)
	f.reasons = append(f.reasons, errorReason)
	return nil
}

func (f *fakeDB) ReplaceDocumentChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk, vectors []models.DocumentVector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.storedChunks = chunks
	f.storedVectors = vectors
	f.doc.Status = models.StatusStored
	return nil
}

// fakeEmbedder returns deterministic vectors of a fixed dimension.
// When failWith is set, calls beyond the first failAfter succeed ones
// fail; failAfter 0 fails from the first call.
type fakeEmbedder struct {
	dim       int
	mu        sync.Mutex
	calls     int
	failAfter int
	failWith  error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()

	if f.failWith != nil && call > f.failAfter {
		return nil, f.failWith
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dim)
		vec[0] = float32(len(texts[i]))
		out[i] = vec
	}
	return out, nil
}
