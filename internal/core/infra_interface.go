package core

import (
	"context"
	"io"

	"github.com/yuvalr-dev/librarium/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateWorkspace(ctx context.Context, ws *models.Workspace) error
	GetWorkspaceByID(ctx context.Context, id string) (*models.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]models.Workspace, error)
	ListWorkspacesForUser(ctx context.Context, userID string) ([]models.Workspace, error)
	UpdateWorkspaceConfig(ctx context.Context, id string, cfg models.WorkspaceConfig) error
	DeleteWorkspace(ctx context.Context, id string) error
	UserCanAccessWorkspace(ctx context.Context, workspaceID, userID string) (bool, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByStoragePath(ctx context.Context, workspaceID, storagePath string) (*models.Document, error)
	ListDocumentsByWorkspace(ctx context.Context, workspaceID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status, errorReason string) error
	DeleteDocument(ctx context.Context, id string) error

	// ReplaceDocumentChunks upserts the document row to "stored" and
	// swaps its chunk and vector set inside one transaction.
	ReplaceDocumentChunks(ctx context.Context, doc *models.Document, chunks []models.DocumentChunk, vectors []models.DocumentVector) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)
	SearchWorkspaceChunks(ctx context.Context, workspaceID, embeddingModel string, queryVec []float32, metric string, limit int) ([]models.RankedChunk, error)

	CreateGroup(ctx context.Context, group *models.UserGroup) error
	ListGroups(ctx context.Context) ([]models.UserGroup, error)
	DeleteGroup(ctx context.Context, id string) error
	GroupIDsByName(ctx context.Context, names []string) (map[string]string, error)
	SetUserGroups(ctx context.Context, userID string, groupIDs []string) error
	GetUserGroups(ctx context.Context, userID string) ([]models.UserGroup, error)
	SetWorkspaceGroups(ctx context.Context, workspaceID string, groupIDs []string) error
	GetWorkspaceGroups(ctx context.Context, workspaceID string) ([]string, error)
	ListWorkspaceGroupAccess(ctx context.Context) ([]models.WorkspaceGroupAccess, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
