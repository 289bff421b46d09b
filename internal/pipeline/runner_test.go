package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/yuvalr-dev/librarium/internal/models"
)

const testDim = 8

func newTestRunner(t *testing.T, db *fakeDB, emb *fakeEmbedder) *Runner {
	t.Helper()
	return NewRunner(db, nil, emb, NewDocconvExtractor(false), DefaultTemplate(), testDim, t.TempDir())
}

func writeSourceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testDoc(storagePath string) *models.Document {
	return &models.Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		FileName:    "doc.txt",
		StoragePath: storagePath,
		Status:      models.StatusPending,
	}
}

func TestRunnerFullRun(t *testing.T) {
	source := strings.Repeat("0123456789", 240) // 2400 chars
	db := &fakeDB{
		workspace: &models.Workspace{ID: "ws-1"},
		doc:       testDoc(writeSourceFile(t, source)),
	}
	emb := &fakeEmbedder{dim: testDim}
	runner := newTestRunner(t, db, emb)

	require.NoError(t, runner.Run(context.Background(), "doc-1", Overrides{}, nil))

	assert.Equal(t, []string{
		models.StatusExtracting, models.StatusExtracted,
		models.StatusChunking, models.StatusChunked,
		models.StatusEmbedding, models.StatusEmbedded,
		models.StatusStoring,
	}, db.statuses)
	assert.Equal(t, models.StatusStored, db.doc.Status)

	require.Len(t, db.storedChunks, 3)
	assert.Len(t, db.storedChunks[0].Text, 1000)
	assert.Len(t, db.storedChunks[1].Text, 1000)
	assert.Len(t, db.storedChunks[2].Text, 600)

	require.Len(t, db.storedVectors, 3)
	for i, v := range db.storedVectors {
		assert.Equal(t, db.storedChunks[i].ID, v.ChunkID)
		assert.Len(t, v.Embedding, testDim)
	}
}

func TestRunnerExtractionFailureIsTerminal(t *testing.T) {
	db := &fakeDB{
		workspace: &models.Workspace{ID: "ws-1"},
		doc:       testDoc(filepath.Join(t.TempDir(), "does-not-exist.txt")),
	}
	runner := newTestRunner(t, db, &fakeEmbedder{dim: testDim})

	err := runner.Run(context.Background(), "doc-1", Overrides{}, nil)
	require.Error(t, err)
	var extErr *ExtractionError
	assert.ErrorAs(t, err, &extErr)

	assert.Equal(t, models.StatusFailed, db.doc.Status)
	assert.NotEmpty(t, db.doc.ErrorReason)
}

func TestRunnerTransientEmbedFailureRevertsToChunked(t *testing.T) {
	// Small chunks force multiple embed batches; the second one hits a
	// rate limit.
	db := &fakeDB{
		workspace: &models.Workspace{
			ID:     "ws-1",
			Config: models.WorkspaceConfig{ChunkSize: 100, ChunkOverlap: 10},
		},
		doc: testDoc(writeSourceFile(t, strings.Repeat("0123456789", 240))),
	}
	emb := &fakeEmbedder{
		dim:       testDim,
		failAfter: 1,
		failWith:  &googleapi.Error{Code: 429, Message: "rate limited"},
	}
	runner := newTestRunner(t, db, emb)

	err := runner.Run(context.Background(), "doc-1", Overrides{}, nil)
	require.Error(t, err)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.True(t, embErr.Transient)

	assert.Equal(t, models.StatusChunked, db.doc.Status)
	assert.Empty(t, db.storedChunks, "nothing may be persisted on a failed embed stage")

	// Re-running just embed and store from the persisted chunk artifact
	// succeeds without re-extracting.
	emb.failWith = nil
	require.NoError(t, runner.Run(context.Background(), "doc-1", Overrides{}, []string{StageEmbed, StageStore}))
	assert.Equal(t, models.StatusStored, db.doc.Status)
	assert.NotEmpty(t, db.storedChunks)
	assert.Len(t, db.storedVectors, len(db.storedChunks))
}

func TestRunnerTerminalEmbedFailure(t *testing.T) {
	db := &fakeDB{
		workspace: &models.Workspace{ID: "ws-1"},
		doc:       testDoc(writeSourceFile(t, "a little bit of text")),
	}
	emb := &fakeEmbedder{
		dim:      testDim,
		failWith: &googleapi.Error{Code: 400, Message: "unknown model"},
	}
	runner := newTestRunner(t, db, emb)

	err := runner.Run(context.Background(), "doc-1", Overrides{}, nil)
	require.Error(t, err)
	var embErr *EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.False(t, embErr.Transient)
	assert.Equal(t, models.StatusFailed, db.doc.Status)
}

func TestRunnerDimensionMismatchAbortsStore(t *testing.T) {
	db := &fakeDB{
		workspace: &models.Workspace{ID: "ws-1"},
		doc:       testDoc(writeSourceFile(t, "short document body")),
	}
	emb := &fakeEmbedder{dim: testDim + 1}
	runner := newTestRunner(t, db, emb)

	err := runner.Run(context.Background(), "doc-1", Overrides{}, nil)
	require.Error(t, err)
	var dimErr *DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, testDim+1, dimErr.Got)
	assert.Equal(t, testDim, dimErr.Want)

	assert.Equal(t, models.StatusFailed, db.doc.Status)
	assert.Empty(t, db.storedChunks)
}

func TestRunnerRejectsUnknownStage(t *testing.T) {
	db := &fakeDB{
		workspace: &models.Workspace{ID: "ws-1"},
		doc:       testDoc(writeSourceFile(t, "text")),
	}
	runner := newTestRunner(t, db, &fakeEmbedder{dim: testDim})

	err := runner.Run(context.Background(), "doc-1", Overrides{}, []string{"transmogrify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transmogrify")
}
