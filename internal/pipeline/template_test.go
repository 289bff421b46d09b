package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"artifact_dir": "/tmp/artifacts", "doc_id": "abc"}

	assert.Equal(t, "/tmp/artifacts/abc/chunks.json",
		Substitute("${artifact_dir}/${doc_id}/chunks.json", vars))
	assert.Equal(t, "no variables", Substitute("no variables", vars))
	assert.Equal(t, "/x//y", Substitute("/x/${unknown}/y", vars))
	assert.Equal(t, "${broken", Substitute("${broken", vars))
}

func TestDefaultTemplate(t *testing.T) {
	tpl := DefaultTemplate()

	assert.Equal(t, "recursive", tpl.Defaults.ChunkingMethod)
	assert.Equal(t, 1000, tpl.Defaults.ChunkSize)
	assert.Equal(t, 100, tpl.Defaults.ChunkOverlap)
	assert.Equal(t, "cosine", tpl.Defaults.SimilarityMetric)
	assert.Equal(t, 4, tpl.Defaults.TopK)

	for _, id := range []string{StageExtract, StageChunk, StageEmbed, StageStore} {
		require.NotNil(t, tpl.Stage(id), "stage %s must exist", id)
	}
	assert.Nil(t, tpl.Stage("nonexistent"))

	path := tpl.ArtifactPath(StageChunk, map[string]string{"artifact_dir": "a", "doc_id": "d"})
	assert.Equal(t, "a/d/chunks.json", path)
	assert.Empty(t, tpl.ArtifactPath(StageStore, nil))
}

func TestLoadTemplateFromYAML(t *testing.T) {
	raw := `
version: 1
defaults:
  chunking_method: token
  chunk_size: 512
  chunk_overlap: 64
  similarity_metric: l2
  top_k: 8
  batch_size: 32
stages:
  - id: extract
    module: pipeline/extract
    artifact: ${artifact_dir}/${doc_id}/extracted.json
  - id: chunk
    module: pipeline/chunk
    artifact: ${artifact_dir}/${doc_id}/chunks.json
  - id: embed
    module: pipeline/embed
    artifact: ${artifact_dir}/${doc_id}/vectors.json
  - id: store
    module: pipeline/store
cleanup:
  remove_artifacts: true
`
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	tpl, err := LoadTemplate(path)
	require.NoError(t, err)

	assert.Equal(t, "token", tpl.Defaults.ChunkingMethod)
	assert.Equal(t, 512, tpl.Defaults.ChunkSize)
	assert.Equal(t, 32, tpl.Defaults.BatchSize)
	assert.True(t, tpl.Cleanup.RemoveArtifacts)
	assert.Len(t, tpl.Stages, 4)
}

func TestLoadTemplateEmptyPathUsesDefault(t *testing.T) {
	tpl, err := LoadTemplate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate().Defaults, tpl.Defaults)
}

func TestLoadTemplateRejectsUnknownStage(t *testing.T) {
	raw := "version: 1\nstages:\n  - id: transmogrify\n"
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	_, err := LoadTemplate(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transmogrify")
}
