package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

// Turn is one prior conversation exchange.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// QueryRequest is one question against one workspace.
type QueryRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	Query       string  `json:"query"`
	History     []Turn  `json:"history"`
	Temperature float32 `json:"temperature"`
}

// Engine answers workspace questions: it embeds the query, ranks the
// workspace's stored chunks by similarity, assembles a prompt and
// streams the generated answer followed by a final metadata event.
type Engine struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	llm      core.LLMProvider
	gate     *auth.Gate
	genModel string
	embedDim int
}

func NewEngine(db core.DbClient, emb core.EmbeddingProvider, llm core.LLMProvider, gate *auth.Gate, genModel string, embedDim int) *Engine {
	return &Engine{db: db, embedder: emb, llm: llm, gate: gate, genModel: genModel, embedDim: embedDim}
}

// Query authorizes the caller and, on success, returns a channel of
// stream events. Authorization failures are returned synchronously
// before any external call is made. The channel closes after the final
// Metadata event, or after an Err event on failure. Cancelling ctx
// stops event forwarding; the in-flight generation call is abandoned,
// not awaited.
func (e *Engine) Query(ctx context.Context, caller *core.Identity, req QueryRequest) (<-chan Event, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	if err := e.gate.CanAccess(ctx, caller, req.WorkspaceID); err != nil {
		return nil, err
	}

	ws, err := e.db.GetWorkspaceByID(ctx, req.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if ws == nil {
		return nil, fmt.Errorf("workspace not found: %s", req.WorkspaceID)
	}

	out := make(chan Event, 16)
	go e.run(ctx, ws.Config.EmbeddingModel, ws.Config.SimilarityMetric, ws.Config.TopK, req, out)
	return out, nil
}

func (e *Engine) run(ctx context.Context, embedModel, metric string, topK int, req QueryRequest, out chan<- Event) {
	defer close(out)
	start := time.Now()

	send := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	abort := func(err error) {
		log.Printf("engine: query for workspace %s failed: %v", req.WorkspaceID, err)
		send(Event{Err: (&StreamError{Err: err}).Error()})
	}

	retrievalStart := time.Now()

	vecs, err := e.embedder.EmbedTexts(ctx, embedModel, []string{req.Query})
	if err != nil || len(vecs) == 0 {
		if err == nil {
			err = fmt.Errorf("embedder returned no vector")
		}
		abort(fmt.Errorf("embed query: %w", err))
		return
	}
	queryVec := vecs[0]
	if len(queryVec) != e.embedDim {
		abort(fmt.Errorf("query embedding has dimension %d, stored vectors use %d; check the workspace embedding model", len(queryVec), e.embedDim))
		return
	}

	chunks, err := e.db.SearchWorkspaceChunks(ctx, req.WorkspaceID, embedModel, queryVec, metric, topK)
	if err != nil {
		abort(fmt.Errorf("rank chunks: %w", err))
		return
	}
	retrievalDur := time.Since(retrievalStart)

	system, user := buildPrompt(chunks, req.History, req.Query)

	var answer strings.Builder
	err = e.llm.GenerateStream(ctx, system, user, req.Temperature, func(delta string) error {
		answer.WriteString(delta)
		if !send(Event{Text: delta}) {
			return context.Canceled
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; nothing left to report to.
			return
		}
		abort(fmt.Errorf("generate answer: %w", err))
		return
	}

	meta := &Metadata{
		TotalDurationMs:     time.Since(start).Milliseconds(),
		RetrievalDurationMs: retrievalDur.Milliseconds(),
		EmbeddingModel:      embedModel,
		GenerativeModel:     e.genModel,
		Temperature:         req.Temperature,
		TopK:                topK,
		SimilarityMetric:    metric,
		HistorySize:         len(req.History),
		Chunks:              chunkResults(chunks),
	}
	send(Event{Metadata: meta})

	log.Printf("engine: answered workspace %s query in %dms (%d chunks, %d chars)",
		req.WorkspaceID, meta.TotalDurationMs, len(chunks), answer.Len())
}

const previewLen = 160

func chunkResults(chunks []models.RankedChunk) []ChunkResult {
	out := make([]ChunkResult, 0, len(chunks))
	for _, rc := range chunks {
		out = append(out, ChunkResult{
			DocumentID: rc.Chunk.DocumentID,
			FileName:   rc.FileName,
			ChunkIndex: rc.Chunk.Index,
			PageNumber: rc.Chunk.PageNumber,
			Similarity: rc.Similarity,
			Preview:    preview(rc.Chunk.Text),
		})
	}
	return out
}

func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "…"
}
