package pipeline

import (
	"context"
	"fmt"

	"github.com/yuvalr-dev/librarium/internal/core"
)

// RunParams is the effective parameter set for one ingestion run. It is
// resolved once per run and never revisited, so a workspace config
// change mid-run does not affect runs already in flight.
type RunParams struct {
	WorkspaceID      string `json:"workspace_id"`
	ChunkingMethod   string `json:"chunking_method"`
	ChunkSize        int    `json:"chunk_size"`
	ChunkOverlap     int    `json:"chunk_overlap"`
	SimilarityMetric string `json:"similarity_metric"`
	TopK             int    `json:"top_k"`
	HybridSearch     bool   `json:"hybrid_search"`
	EmbeddingModel   string `json:"embedding_model"`
	BatchSize        int    `json:"batch_size"`
}

// Overrides are run-level parameter overrides, the highest-precedence
// layer (run > workspace > template defaults).
type Overrides struct {
	ChunkingMethod string
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
}

// ResolveParams reads the workspace row fresh and layers template
// defaults, workspace configuration and run overrides into one set.
// A zero or empty value at a layer means "use the layer below".
func ResolveParams(ctx context.Context, db core.DbClient, tpl *Template, workspaceID string, ov Overrides) (*RunParams, error) {
	ws, err := db.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace not found: %s", workspaceID)
	}

	d := tpl.Defaults
	p := &RunParams{
		WorkspaceID:      workspaceID,
		ChunkingMethod:   d.ChunkingMethod,
		ChunkSize:        d.ChunkSize,
		ChunkOverlap:     d.ChunkOverlap,
		SimilarityMetric: d.SimilarityMetric,
		TopK:             d.TopK,
		EmbeddingModel:   d.EmbeddingModel,
		BatchSize:        d.BatchSize,
		HybridSearch:     ws.Config.HybridSearch,
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 16
	}

	cfg := ws.Config
	if cfg.ChunkingMethod != "" {
		p.ChunkingMethod = cfg.ChunkingMethod
	}
	if cfg.ChunkSize > 0 {
		p.ChunkSize = cfg.ChunkSize
	}
	if cfg.ChunkOverlap > 0 {
		p.ChunkOverlap = cfg.ChunkOverlap
	}
	if cfg.SimilarityMetric != "" {
		p.SimilarityMetric = cfg.SimilarityMetric
	}
	if cfg.TopK > 0 {
		p.TopK = cfg.TopK
	}
	if cfg.EmbeddingModel != "" {
		p.EmbeddingModel = cfg.EmbeddingModel
	}

	if ov.ChunkingMethod != "" {
		p.ChunkingMethod = ov.ChunkingMethod
	}
	if ov.ChunkSize > 0 {
		p.ChunkSize = ov.ChunkSize
	}
	if ov.ChunkOverlap > 0 {
		p.ChunkOverlap = ov.ChunkOverlap
	}
	if ov.EmbeddingModel != "" {
		p.EmbeddingModel = ov.EmbeddingModel
	}

	return p, nil
}
