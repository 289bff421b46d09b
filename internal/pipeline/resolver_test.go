package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvalr-dev/librarium/internal/models"
)

func TestResolveParamsDefaultsOnly(t *testing.T) {
	db := &fakeDB{workspace: &models.Workspace{ID: "ws-1"}}

	params, err := ResolveParams(context.Background(), db, DefaultTemplate(), "ws-1", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "recursive", params.ChunkingMethod)
	assert.Equal(t, 1000, params.ChunkSize)
	assert.Equal(t, 100, params.ChunkOverlap)
	assert.Equal(t, "cosine", params.SimilarityMetric)
	assert.Equal(t, 4, params.TopK)
	assert.Equal(t, 16, params.BatchSize)
}

func TestResolveParamsWorkspaceOverridesDefaults(t *testing.T) {
	db := &fakeDB{workspace: &models.Workspace{
		ID: "ws-1",
		Config: models.WorkspaceConfig{
			ChunkingMethod:   "token",
			ChunkSize:        512,
			SimilarityMetric: "l2",
			TopK:             8,
			EmbeddingModel:   "text-embedding-004",
		},
	}}

	params, err := ResolveParams(context.Background(), db, DefaultTemplate(), "ws-1", Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "token", params.ChunkingMethod)
	assert.Equal(t, 512, params.ChunkSize)
	assert.Equal(t, 100, params.ChunkOverlap, "unset workspace field keeps the default")
	assert.Equal(t, "l2", params.SimilarityMetric)
	assert.Equal(t, 8, params.TopK)
	assert.Equal(t, "text-embedding-004", params.EmbeddingModel)
}

func TestResolveParamsRunOverridesWin(t *testing.T) {
	db := &fakeDB{workspace: &models.Workspace{
		ID:     "ws-1",
		Config: models.WorkspaceConfig{ChunkingMethod: "token", ChunkSize: 512},
	}}

	params, err := ResolveParams(context.Background(), db, DefaultTemplate(), "ws-1", Overrides{
		ChunkingMethod: "character",
		ChunkSize:      256,
		ChunkOverlap:   32,
		EmbeddingModel: "gemini-embedding-001",
	})
	require.NoError(t, err)

	assert.Equal(t, "character", params.ChunkingMethod)
	assert.Equal(t, 256, params.ChunkSize)
	assert.Equal(t, 32, params.ChunkOverlap)
	assert.Equal(t, "gemini-embedding-001", params.EmbeddingModel)
}

func TestResolveParamsUnknownWorkspace(t *testing.T) {
	db := &fakeDB{}
	_, err := ResolveParams(context.Background(), db, DefaultTemplate(), "missing", Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
