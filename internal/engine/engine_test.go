package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

const testDim = 4

type fakeDB struct {
	core.DbClient

	workspace *models.Workspace
	chunks    []models.RankedChunk
	canAccess bool
	searchErr error

	searchedModel  string
	searchedMetric string
	searchedLimit  int
}

func (f *fakeDB) GetWorkspaceByID(ctx context.Context, id string) (*models.Workspace, error) {
	if f.workspace == nil || f.workspace.ID != id {
		return nil, nil
	}
	ws := *f.workspace
	return &ws, nil
}

func (f *fakeDB) UserCanAccessWorkspace(ctx context.Context, workspaceID, userID string) (bool, error) {
	return f.canAccess, nil
}

func (f *fakeDB) SearchWorkspaceChunks(ctx context.Context, workspaceID, embeddingModel string, queryVec []float32, metric string, limit int) ([]models.RankedChunk, error) {
	f.searchedModel = embeddingModel
	f.searchedMetric = metric
	f.searchedLimit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.chunks, nil
}

type fakeEmbedder struct {
	dim int
	err error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}

type fakeLLM struct {
	deltas []string
	err    error
	system string
	user   string
	block  bool
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLLM) GenerateStream(ctx context.Context, systemPrompt, userPrompt string, temperature float32, onDelta func(string) error) error {
	f.system = systemPrompt
	f.user = userPrompt
	if f.err != nil {
		return f.err
	}
	for _, d := range f.deltas {
		if f.block {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return nil
}

func testWorkspace() *models.Workspace {
	return &models.Workspace{
		ID: "ws-1",
		Config: models.WorkspaceConfig{
			SimilarityMetric: "cosine",
			TopK:             2,
			EmbeddingModel:   "gemini-embedding-001",
		},
	}
}

func rankedChunk(docID string, index int, text string, sim float64) models.RankedChunk {
	return models.RankedChunk{
		Chunk:      models.DocumentChunk{ID: "c", DocumentID: docID, Index: index, Text: text},
		FileName:   "doc.txt",
		Similarity: sim,
	}
}

func collect(t *testing.T, events <-chan Event) (text string, meta *Metadata, errMsg string) {
	t.Helper()
	for ev := range events {
		switch {
		case ev.Metadata != nil:
			meta = ev.Metadata
		case ev.Err != "":
			errMsg = ev.Err
		default:
			text += ev.Text
		}
	}
	return text, meta, errMsg
}

func user() *core.Identity {
	return &core.Identity{UserID: "u-1", Role: models.RoleUser}
}

func TestQueryStreamsAnswerAndMetadata(t *testing.T) {
	db := &fakeDB{
		workspace: testWorkspace(),
		canAccess: true,
		chunks: []models.RankedChunk{
			rankedChunk("d-1", 0, "alpha content", 0.1),
			rankedChunk("d-1", 1, "beta content", 0.2),
		},
	}
	llm := &fakeLLM{deltas: []string{"Hello ", "world"}}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim}, llm, auth.NewGate(db), "gemini-1.5-flash", testDim)

	events, err := eng.Query(context.Background(), user(), QueryRequest{
		WorkspaceID: "ws-1",
		Query:       "what is alpha?",
		Temperature: 0.3,
		History:     []Turn{{Role: "user", Text: "hi"}},
	})
	require.NoError(t, err)

	text, meta, errMsg := collect(t, events)
	assert.Empty(t, errMsg)
	assert.Equal(t, "Hello world", text)

	require.NotNil(t, meta, "stream must end with a metadata event")
	assert.Equal(t, "gemini-embedding-001", meta.EmbeddingModel)
	assert.Equal(t, "gemini-1.5-flash", meta.GenerativeModel)
	assert.Equal(t, float32(0.3), meta.Temperature)
	assert.Equal(t, 2, meta.TopK)
	assert.Equal(t, "cosine", meta.SimilarityMetric)
	assert.Equal(t, 1, meta.HistorySize)
	require.Len(t, meta.Chunks, 2)
	assert.Equal(t, "alpha content", meta.Chunks[0].Preview)
	assert.Equal(t, 0.1, meta.Chunks[0].Similarity)

	assert.Equal(t, "gemini-embedding-001", db.searchedModel)
	assert.Equal(t, "cosine", db.searchedMetric)
	assert.Equal(t, 2, db.searchedLimit)

	// Prompt carries tagged context, history and the question.
	assert.Contains(t, llm.user, "[source: doc.txt, chunk 0]")
	assert.Contains(t, llm.user, "user: hi")
	assert.Contains(t, llm.user, "what is alpha?")
}

func TestQueryRejectsUnauthorizedBeforeExternalCalls(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: false}
	embedder := &fakeEmbedder{dim: testDim, err: errors.New("must not be called")}
	eng := NewEngine(db, embedder, &fakeLLM{}, auth.NewGate(db), "m", testDim)

	_, err := eng.Query(context.Background(), user(), QueryRequest{WorkspaceID: "ws-1", Query: "q"})
	require.Error(t, err)
	var authErr *auth.AuthorizationError
	assert.ErrorAs(t, err, &authErr)
}

func TestQueryEmptyWorkspaceIsNotAnError(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: true, chunks: nil}
	llm := &fakeLLM{deltas: []string{"No matching content found."}}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim}, llm, auth.NewGate(db), "m", testDim)

	events, err := eng.Query(context.Background(), user(), QueryRequest{WorkspaceID: "ws-1", Query: "anything"})
	require.NoError(t, err)

	text, meta, errMsg := collect(t, events)
	assert.Empty(t, errMsg)
	assert.NotEmpty(t, text)
	require.NotNil(t, meta)
	assert.Empty(t, meta.Chunks)
	assert.Contains(t, llm.system, "No relevant context")
}

func TestQueryDimensionMismatchFailsExplicitly(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: true}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim + 3}, &fakeLLM{}, auth.NewGate(db), "m", testDim)

	events, err := eng.Query(context.Background(), user(), QueryRequest{WorkspaceID: "ws-1", Query: "q"})
	require.NoError(t, err)

	_, meta, errMsg := collect(t, events)
	assert.Nil(t, meta)
	assert.Contains(t, errMsg, "dimension")
}

func TestQueryGenerationFailureEndsStreamWithError(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: true}
	llm := &fakeLLM{err: errors.New("model exploded")}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim}, llm, auth.NewGate(db), "m", testDim)

	events, err := eng.Query(context.Background(), user(), QueryRequest{WorkspaceID: "ws-1", Query: "q"})
	require.NoError(t, err)

	_, meta, errMsg := collect(t, events)
	assert.Nil(t, meta)
	assert.Contains(t, errMsg, "model exploded")
}

func TestQueryCancellationStopsForwarding(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: true}
	llm := &fakeLLM{deltas: []string{"a", "b", "c", "d"}, block: true}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim}, llm, auth.NewGate(db), "m", testDim)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := eng.Query(ctx, user(), QueryRequest{WorkspaceID: "ws-1", Query: "q"})
	require.NoError(t, err)

	// Read one increment, then walk away.
	<-events
	cancel()

	// The channel must close without a metadata event.
	var meta *Metadata
	for ev := range events {
		if ev.Metadata != nil {
			meta = ev.Metadata
		}
	}
	assert.Nil(t, meta)
}

func TestQueryAdminBypassesGroupCheck(t *testing.T) {
	db := &fakeDB{workspace: testWorkspace(), canAccess: false}
	llm := &fakeLLM{deltas: []string{"ok"}}
	eng := NewEngine(db, &fakeEmbedder{dim: testDim}, llm, auth.NewGate(db), "m", testDim)

	admin := &core.Identity{UserID: "a-1", Role: models.RoleAdmin}
	events, err := eng.Query(context.Background(), admin, QueryRequest{WorkspaceID: "ws-1", Query: "q"})
	require.NoError(t, err)

	text, meta, errMsg := collect(t, events)
	assert.Empty(t, errMsg)
	assert.Equal(t, "ok", text)
	assert.NotNil(t, meta)
}
