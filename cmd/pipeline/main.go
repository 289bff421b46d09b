package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yuvalr-dev/librarium/internal/config"
	"github.com/yuvalr-dev/librarium/internal/core"
	db "github.com/yuvalr-dev/librarium/internal/core/database"
	"github.com/yuvalr-dev/librarium/internal/core/llm"
	"github.com/yuvalr-dev/librarium/internal/core/objectstore"
	"github.com/yuvalr-dev/librarium/internal/models"
	"github.com/yuvalr-dev/librarium/internal/pipeline"
)

var (
	flagWorkspaceID    string
	flagObject         string
	flagFile           string
	flagDir            string
	flagChunkingMethod string
	flagChunkSize      int
	flagChunkOverlap   int
	flagEmbeddingModel string
	flagDatabaseURL    string
	flagTemplate       string
	flagStages         []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the ingestion pipeline for one file, an object reference, or a directory",
		Long: `Ingests documents into a workspace: extraction, chunking, embedding and
storage run in order, persisting an artifact per stage. With --stages a
suffix of the pipeline can be re-run from the artifacts of an earlier
invocation. Directory mode processes every regular file and reports one
outcome per file, continuing past individual failures.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flagWorkspaceID, "workspace-id", "", "target workspace id (required)")
	rootCmd.Flags().StringVar(&flagObject, "object", "", "object storage URL to ingest")
	rootCmd.Flags().StringVar(&flagFile, "file", "", "local file to ingest")
	rootCmd.Flags().StringVar(&flagDir, "dir", "", "local directory to ingest (batch mode)")
	rootCmd.Flags().StringVar(&flagChunkingMethod, "chunking-method", "", "override the workspace chunking method")
	rootCmd.Flags().IntVar(&flagChunkSize, "chunk-size", 0, "override the workspace chunk size")
	rootCmd.Flags().IntVar(&flagChunkOverlap, "chunk-overlap", 0, "override the workspace chunk overlap")
	rootCmd.Flags().StringVar(&flagEmbeddingModel, "embedding-model", "", "override the workspace embedding model")
	rootCmd.Flags().StringVar(&flagDatabaseURL, "database-url", "", "override the configured database connection string")
	rootCmd.Flags().StringVar(&flagTemplate, "template", "", "pipeline template file (YAML)")
	rootCmd.Flags().StringSliceVar(&flagStages, "stages", nil, "stages to run (extract,chunk,embed,store); earlier stages must have artifacts on disk")
	_ = rootCmd.MarkFlagRequired("workspace-id")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	inputs := 0
	for _, v := range []string{flagObject, flagFile, flagDir} {
		if v != "" {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("exactly one of --object, --file or --dir is required")
	}

	cfg := config.LoadConfig()
	if flagDatabaseURL != "" {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flagTemplate != "" {
		cfg.TemplatePath = flagTemplate
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	embedder, err := llm.NewGeminiEmbedder(ctx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return fmt.Errorf("initialize embedder: %w", err)
	}
	defer embedder.Close()

	tpl, err := pipeline.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return err
	}

	// Object storage is only needed for --object runs; local runs work
	// without AWS configuration.
	var objClient core.ObjectClient
	if flagObject != "" {
		objClient, err = objectstore.NewS3Client(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initialize object storage: %w", err)
		}
	}

	runner := pipeline.NewRunner(dbClient, objClient, embedder, pipeline.NewDocconvExtractor(false), tpl, cfg.EmbedDim, cfg.ArtifactDir)

	overrides := pipeline.Overrides{
		ChunkingMethod: flagChunkingMethod,
		ChunkSize:      flagChunkSize,
		ChunkOverlap:   flagChunkOverlap,
		EmbeddingModel: flagEmbeddingModel,
	}

	paths, err := collectInputs()
	if err != nil {
		return err
	}

	failures := 0
	for _, p := range paths {
		docID, err := ensureDocument(ctx, dbClient, p)
		if err == nil {
			err = runner.Run(ctx, docID, overrides, flagStages)
		}
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "FAILED  %s: %v\n", p, err)
			continue
		}
		fmt.Printf("OK      %s\n", p)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d inputs failed", failures, len(paths))
	}
	log.Printf("pipeline: %d input(s) processed", len(paths))
	return nil
}

// collectInputs resolves the input flag into one storage path per
// document: an object URL, a single file, or every regular file in a
// directory.
func collectInputs() ([]string, error) {
	switch {
	case flagObject != "":
		return []string{flagObject}, nil
	case flagFile != "":
		abs, err := filepath.Abs(flagFile)
		if err != nil {
			return nil, err
		}
		return []string{abs}, nil
	default:
		entries, err := os.ReadDir(flagDir)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		var paths []string
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			abs, err := filepath.Abs(filepath.Join(flagDir, e.Name()))
			if err != nil {
				return nil, err
			}
			paths = append(paths, abs)
		}
		if len(paths) == 0 {
			return nil, fmt.Errorf("no regular files in %s", flagDir)
		}
		return paths, nil
	}
}

// ensureDocument finds or creates the document row for one storage
// path. Re-running against the same path reuses the existing row so
// re-ingestion stays idempotent.
func ensureDocument(ctx context.Context, dbClient core.DbClient, storagePath string) (string, error) {
	existing, err := dbClient.GetDocumentByStoragePath(ctx, flagWorkspaceID, storagePath)
	if err != nil {
		return "", fmt.Errorf("look up document: %w", err)
	}
	if existing != nil {
		if err := dbClient.UpdateDocumentStatus(ctx, existing.ID, models.StatusPending, ""); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	var size int64
	if flagObject == "" {
		if info, err := os.Stat(storagePath); err == nil {
			size = info.Size()
		}
	}

	filename := filepath.Base(storagePath)
	if flagObject != "" {
		_, key := objectstore.ParseObjectURL(storagePath)
		if key != "" {
			filename = filepath.Base(key)
		}
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		WorkspaceID: flagWorkspaceID,
		UploadedBy:  "pipeline-cli",
		FileName:    filename,
		StoragePath: storagePath,
		SizeBytes:   size,
		Status:      models.StatusPending,
	}
	if err := dbClient.CreateDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return doc.ID, nil
}
