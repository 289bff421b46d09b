package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/config"
	"github.com/yuvalr-dev/librarium/internal/core"
	db "github.com/yuvalr-dev/librarium/internal/core/database"
	"github.com/yuvalr-dev/librarium/internal/core/llm"
	"github.com/yuvalr-dev/librarium/internal/core/objectstore"
	"github.com/yuvalr-dev/librarium/internal/engine"
	"github.com/yuvalr-dev/librarium/internal/pipeline"
)

// App holds every long-lived component of the API service.
type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Ingestor     *pipeline.DocumentIngestor
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectstore.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the LLM: %w", err)
	}

	tpl, err := pipeline.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("couldn't load pipeline template: %w", err)
	}

	extractor := pipeline.NewDocconvExtractor(false)
	runner := pipeline.NewRunner(dbClient, objClient, embedder, extractor, tpl, cfg.EmbedDim, cfg.ArtifactDir)
	ingestor := pipeline.NewDocumentIngestor(runner)
	ingestor.Start(ctx, cfg.IngestWorkers)

	gate := auth.NewGate(dbClient)
	eng := engine.NewEngine(dbClient, embedder, llmProvider, gate, cfg.GenModel, cfg.EmbedDim)
	resolver := auth.NewJWTResolver(cfg.JWTSecret)

	server := NewServer(cfg, dbClient, objClient, ingestor, eng, gate, resolver)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Ingestor:     ingestor,
		Server:       server,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
