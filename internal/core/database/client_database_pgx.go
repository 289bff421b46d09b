package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yuvalr-dev/librarium/internal/config"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

type DatabaseClient struct {
	db       *sql.DB
	embedDim int
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db, embedDim: cfg.EmbedDim}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Implementing the db interface for users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (user_id, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.Email, user.PasswordHash, user.Role, nullTime(user.CreatedAt), nullTime(user.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT user_id, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Implementing the db interface for workspaces

const workspaceColumns = `workspace_id, name, owner_user_id, created_at,
	config_chunking_method, config_chunk_size, config_chunk_overlap,
	config_similarity_metric, config_top_k, config_hybrid_search, config_embedding_model`

func scanWorkspace(row interface{ Scan(...any) error }) (*models.Workspace, error) {
	var w models.Workspace
	err := row.Scan(
		&w.ID, &w.Name, &w.OwnerUserID, &w.CreatedAt,
		&w.Config.ChunkingMethod, &w.Config.ChunkSize, &w.Config.ChunkOverlap,
		&w.Config.SimilarityMetric, &w.Config.TopK, &w.Config.HybridSearch, &w.Config.EmbeddingModel,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *DatabaseClient) CreateWorkspace(ctx context.Context, ws *models.Workspace) error {
	if ws == nil {
		return errors.New("nil workspace")
	}
	const q = `
		INSERT INTO workspaces
			(workspace_id, name, owner_user_id, config_chunking_method, config_chunk_size,
			 config_chunk_overlap, config_similarity_metric, config_top_k,
			 config_hybrid_search, config_embedding_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q,
		ws.ID, ws.Name, ws.OwnerUserID,
		ws.Config.ChunkingMethod, ws.Config.ChunkSize, ws.Config.ChunkOverlap,
		ws.Config.SimilarityMetric, ws.Config.TopK, ws.Config.HybridSearch, ws.Config.EmbeddingModel,
	).Scan(&ws.CreatedAt)
}

func (c *DatabaseClient) GetWorkspaceByID(ctx context.Context, id string) (*models.Workspace, error) {
	q := `SELECT ` + workspaceColumns + ` FROM workspaces WHERE workspace_id = $1`
	ws, err := scanWorkspace(c.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (c *DatabaseClient) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	q := `SELECT ` + workspaceColumns + ` FROM workspaces ORDER BY created_at DESC`
	return c.queryWorkspaces(ctx, q)
}

// ListWorkspacesForUser filters to workspaces the user owns or can reach
// through a group with a workspace_group_access row. Inaccessible
// workspaces are simply absent, never an error.
func (c *DatabaseClient) ListWorkspacesForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	q := `SELECT ` + workspaceColumns + `
		FROM workspaces w
		WHERE w.owner_user_id = $1
		OR w.workspace_id IN (
			SELECT wga.workspace_id
			FROM workspace_group_access wga
			WHERE wga.group_id IN (
				SELECT ugm.group_id
				FROM user_group_memberships ugm
				WHERE ugm.user_id = $1
			)
		)
		ORDER BY created_at DESC`
	return c.queryWorkspaces(ctx, q, userID)
}

func (c *DatabaseClient) queryWorkspaces(ctx context.Context, q string, args ...any) ([]models.Workspace, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateWorkspaceConfig(ctx context.Context, id string, cfg models.WorkspaceConfig) error {
	const q = `
		UPDATE workspaces
		SET config_chunking_method = $2, config_chunk_size = $3, config_chunk_overlap = $4,
		    config_similarity_metric = $5, config_top_k = $6, config_hybrid_search = $7,
		    config_embedding_model = $8
		WHERE workspace_id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id,
		cfg.ChunkingMethod, cfg.ChunkSize, cfg.ChunkOverlap,
		cfg.SimilarityMetric, cfg.TopK, cfg.HybridSearch, cfg.EmbeddingModel)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workspace not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeleteWorkspace(ctx context.Context, id string) error {
	// Documents, chunks, vectors and access rows go with it via FK cascade.
	res, err := c.db.ExecContext(ctx, `DELETE FROM workspaces WHERE workspace_id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("workspace not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) UserCanAccessWorkspace(ctx context.Context, workspaceID, userID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM workspaces w
			WHERE w.workspace_id = $1
			AND (
				w.owner_user_id = $2
				OR w.workspace_id IN (
					SELECT wga.workspace_id
					FROM workspace_group_access wga
					WHERE wga.group_id IN (
						SELECT ugm.group_id
						FROM user_group_memberships ugm
						WHERE ugm.user_id = $2
					)
				)
			)
		)
	`
	var ok bool
	if err := c.db.QueryRowContext(ctx, q, workspaceID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
