package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/core/objectstore"
	"github.com/yuvalr-dev/librarium/internal/models"
)

// Runner sequences the four pipeline stages for one document, records
// the document's status transitions and persists each stage's output
// artifact as JSON so later stages can be re-run alone.
type Runner struct {
	db          core.DbClient
	obj         core.ObjectClient
	embedder    core.EmbeddingProvider
	extractor   core.DocumentExtractor
	tpl         *Template
	embedDim    int
	artifactDir string
}

func NewRunner(db core.DbClient, obj core.ObjectClient, emb core.EmbeddingProvider, ext core.DocumentExtractor, tpl *Template, embedDim int, artifactDir string) *Runner {
	if tpl == nil {
		tpl = DefaultTemplate()
	}
	return &Runner{
		db: db, obj: obj, embedder: emb, extractor: ext,
		tpl: tpl, embedDim: embedDim, artifactDir: artifactDir,
	}
}

type chunkArtifact struct {
	ChunkingMethod string      `json:"chunking_method"`
	ChunkSize      int         `json:"chunk_size"`
	ChunkOverlap   int         `json:"chunk_overlap"`
	Chunks         []ChunkData `json:"chunks"`
}

type vectorArtifact struct {
	EmbeddingModel string      `json:"embedding_model"`
	Vectors        [][]float32 `json:"vectors"`
}

// Run executes the pipeline for one document. stages selects which
// stages run (nil means all four); skipped stages must have their
// artifacts on disk from an earlier run. A terminal stage error marks
// the document failed with the reason; a transient embedding error
// puts it back to chunked so the embed stage can be retried.
func (r *Runner) Run(ctx context.Context, docID string, ov Overrides, stages []string) error {
	doc, err := r.db.GetDocumentByID(ctx, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("document not found: %s", docID)
	}

	params, err := ResolveParams(ctx, r.db, r.tpl, doc.WorkspaceID, ov)
	if err != nil {
		return r.fail(ctx, doc, err)
	}

	run := map[string]bool{}
	if len(stages) == 0 {
		for _, id := range stageOrder {
			run[id] = true
		}
	} else {
		for _, s := range stages {
			id := strings.TrimSpace(strings.ToLower(s))
			if r.tpl.Stage(id) == nil {
				return fmt.Errorf("unknown stage %q", s)
			}
			run[id] = true
		}
	}

	vars := r.artifactVars(doc, params)

	var extracted *core.ExtractedText
	var chunks []ChunkData
	var vectors [][]float32

	if run[StageExtract] {
		if err := r.setStatus(ctx, doc, models.StatusExtracting); err != nil {
			return err
		}
		data, err := r.fetchSource(ctx, doc)
		if err != nil {
			return r.fail(ctx, doc, &ExtractionError{Source: doc.FileName, Err: err})
		}
		extracted, err = r.extractor.ExtractText(ctx, data, doc.FileName, "")
		if err != nil {
			return r.fail(ctx, doc, err)
		}
		if err := writeArtifact(r.tpl.ArtifactPath(StageExtract, vars), extracted); err != nil {
			return r.fail(ctx, doc, err)
		}
		if err := r.setStatus(ctx, doc, models.StatusExtracted); err != nil {
			return err
		}
	}

	if run[StageChunk] {
		if extracted == nil {
			extracted = &core.ExtractedText{}
			if err := readArtifact(r.tpl.ArtifactPath(StageExtract, vars), extracted); err != nil {
				return r.fail(ctx, doc, err)
			}
		}
		if err := r.setStatus(ctx, doc, models.StatusChunking); err != nil {
			return err
		}
		chunks, err = ChunkText(extracted, params)
		if err != nil {
			return r.fail(ctx, doc, err)
		}
		art := chunkArtifact{
			ChunkingMethod: params.ChunkingMethod,
			ChunkSize:      params.ChunkSize,
			ChunkOverlap:   params.ChunkOverlap,
			Chunks:         chunks,
		}
		if err := writeArtifact(r.tpl.ArtifactPath(StageChunk, vars), art); err != nil {
			return r.fail(ctx, doc, err)
		}
		if err := r.setStatus(ctx, doc, models.StatusChunked); err != nil {
			return err
		}
	}

	if run[StageEmbed] {
		if chunks == nil {
			var art chunkArtifact
			if err := readArtifact(r.tpl.ArtifactPath(StageChunk, vars), &art); err != nil {
				return r.fail(ctx, doc, err)
			}
			chunks = art.Chunks
		}
		if err := r.setStatus(ctx, doc, models.StatusEmbedding); err != nil {
			return err
		}
		vectors, err = EmbedChunks(ctx, r.embedder, params, chunks)
		if err != nil {
			return r.fail(ctx, doc, err)
		}
		art := vectorArtifact{EmbeddingModel: params.EmbeddingModel, Vectors: vectors}
		if err := writeArtifact(r.tpl.ArtifactPath(StageEmbed, vars), art); err != nil {
			return r.fail(ctx, doc, err)
		}
		if err := r.setStatus(ctx, doc, models.StatusEmbedded); err != nil {
			return err
		}
	}

	if run[StageStore] {
		if chunks == nil {
			var art chunkArtifact
			if err := readArtifact(r.tpl.ArtifactPath(StageChunk, vars), &art); err != nil {
				return r.fail(ctx, doc, err)
			}
			chunks = art.Chunks
		}
		if vectors == nil {
			var art vectorArtifact
			if err := readArtifact(r.tpl.ArtifactPath(StageEmbed, vars), &art); err != nil {
				return r.fail(ctx, doc, err)
			}
			vectors = art.Vectors
		}
		if err := r.setStatus(ctx, doc, models.StatusStoring); err != nil {
			return err
		}
		if err := StoreChunks(ctx, r.db, r.embedDim, doc, params, chunks, vectors); err != nil {
			return r.fail(ctx, doc, err)
		}
		// ReplaceDocumentChunks already left the row at "stored".
		doc.Status = models.StatusStored
	}

	if r.tpl.Cleanup.RemoveArtifacts {
		if dir := filepath.Join(r.artifactDir, doc.ID); dir != "" {
			_ = os.RemoveAll(dir)
		}
	}

	log.Printf("pipeline: document %s processed to %s", doc.ID, doc.Status)
	return nil
}

func (r *Runner) artifactVars(doc *models.Document, params *RunParams) map[string]string {
	return map[string]string{
		"artifact_dir":    r.artifactDir,
		"doc_id":          doc.ID,
		"workspace_id":    doc.WorkspaceID,
		"chunking_method": params.ChunkingMethod,
		"chunk_size":      strconv.Itoa(params.ChunkSize),
		"chunk_overlap":   strconv.Itoa(params.ChunkOverlap),
		"embedding_model": params.EmbeddingModel,
	}
}

// fetchSource reads the raw file bytes, from object storage when the
// storage path is an S3 URL, from the local filesystem otherwise.
func (r *Runner) fetchSource(ctx context.Context, doc *models.Document) ([]byte, error) {
	if strings.HasPrefix(doc.StoragePath, "https://") {
		if r.obj == nil {
			return nil, errors.New("no object storage client configured")
		}
		bucket, key := objectstore.ParseObjectURL(doc.StoragePath)
		return r.obj.GetFile(ctx, bucket, key)
	}
	return os.ReadFile(doc.StoragePath)
}

func (r *Runner) setStatus(ctx context.Context, doc *models.Document, status string) error {
	if err := r.db.UpdateDocumentStatus(ctx, doc.ID, status, ""); err != nil {
		return fmt.Errorf("update status to %s: %w", status, err)
	}
	doc.Status = status
	return nil
}

// fail records the outcome on the document row. Transient embedding
// failures put the row back at "chunked" (the chunk artifact is intact,
// the stage can simply be re-run); everything else is terminal.
func (r *Runner) fail(ctx context.Context, doc *models.Document, err error) error {
	status := models.StatusFailed
	var embErr *EmbeddingError
	if errors.As(err, &embErr) && embErr.Transient {
		status = models.StatusChunked
	}
	if uerr := r.db.UpdateDocumentStatus(ctx, doc.ID, status, err.Error()); uerr != nil {
		log.Printf("pipeline: could not record failure for document %s: %v", doc.ID, uerr)
	}
	doc.Status = status
	return err
}

func writeArtifact(path string, v any) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func readArtifact(path string, v any) error {
	if path == "" {
		return errors.New("stage has no artifact location")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}
