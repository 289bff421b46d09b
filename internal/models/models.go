package models

import (
	"encoding/json"
	"time"
)

// Document lifecycle statuses. Each pipeline stage owns exactly one
// forward transition; "failed" is reachable from any in-progress state.
const (
	StatusPending    = "pending"
	StatusExtracting = "extracting"
	StatusExtracted  = "extracted"
	StatusChunking   = "chunking"
	StatusChunked    = "chunked"
	StatusEmbedding  = "embedding"
	StatusEmbedded   = "embedded"
	StatusStoring    = "storing"
	StatusStored     = "stored"
	StatusFailed     = "failed"
)

// Roles carried in the claims token.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// WorkspaceConfig is the per-workspace pipeline configuration embedded
// in the workspace row. Zero values mean "use the global default".
type WorkspaceConfig struct {
	ChunkingMethod   string `db:"config_chunking_method" json:"chunking_method"`
	ChunkSize        int    `db:"config_chunk_size" json:"chunk_size"`
	ChunkOverlap     int    `db:"config_chunk_overlap" json:"chunk_overlap"`
	SimilarityMetric string `db:"config_similarity_metric" json:"similarity_metric"`
	TopK             int    `db:"config_top_k" json:"top_k"`
	HybridSearch     bool   `db:"config_hybrid_search" json:"hybrid_search"`
	EmbeddingModel   string `db:"config_embedding_model" json:"embedding_model"`
}

// Workspace is the tenant boundary: documents, configuration and group
// access rows all hang off it and cascade on delete.
type Workspace struct {
	ID          string          `db:"workspace_id" json:"workspace_id"`
	Name        string          `db:"name" json:"name"`
	OwnerUserID string          `db:"owner_user_id" json:"owner_user_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	Config      WorkspaceConfig `json:"config"`
}

// Document represents one uploaded or CLI-ingested file.
type Document struct {
	ID          string          `db:"doc_id" json:"doc_id"`
	WorkspaceID string          `db:"workspace_id" json:"workspace_id"`
	UploadedBy  string          `db:"uploaded_by" json:"uploaded_by"`
	FileName    string          `db:"filename" json:"filename"`
	StoragePath string          `db:"storage_path" json:"storage_path"` // S3 URL or local path
	SizeBytes   int64           `db:"size_bytes" json:"size_bytes"`
	Status      string          `db:"status" json:"status"`
	ErrorReason string          `db:"error_reason" json:"error_reason,omitempty"`
	Metadata    json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	UploadedAt  time.Time       `db:"uploaded_at" json:"uploaded_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// DocumentChunk is one text segment of a document. Indices are
// zero-based and contiguous per document; a re-ingest replaces the
// whole set rather than appending.
type DocumentChunk struct {
	ID             string    `db:"chunk_id" json:"chunk_id"`
	DocumentID     string    `db:"doc_id" json:"doc_id"`
	Index          int       `db:"chunk_index" json:"chunk_index"`
	Text           string    `db:"chunk_text" json:"chunk_text"`
	ChunkingMethod string    `db:"chunking_method" json:"chunking_method"`
	ChunkSize      int       `db:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int       `db:"chunk_overlap" json:"chunk_overlap"`
	PageNumber     *int      `db:"page_number" json:"page_number,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DocumentVector holds the embedding for one (chunk, model) pair.
type DocumentVector struct {
	ID             string    `db:"vector_id" json:"vector_id"`
	ChunkID        string    `db:"chunk_id" json:"chunk_id"`
	EmbeddingModel string    `db:"embedding_model" json:"embedding_model"`
	Embedding      []float32 `db:"embedding" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserGroup is an access-control group; membership grants read/query
// access to every workspace the group is assigned to.
type UserGroup struct {
	ID          string    `db:"group_id" json:"group_id"`
	Name        string    `db:"group_name" json:"group_name"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UserGroupMembership links a user to a group (many-to-many).
type UserGroupMembership struct {
	UserID  string `db:"user_id" json:"user_id"`
	GroupID string `db:"group_id" json:"group_id"`
}

// WorkspaceGroupAccess grants a group's members access to a workspace.
type WorkspaceGroupAccess struct {
	WorkspaceID string `db:"workspace_id" json:"workspace_id"`
	GroupID     string `db:"group_id" json:"group_id"`
}

// User represents an identity known to the bundled identity provider.
type User struct {
	ID           string    `db:"user_id" json:"user_id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RankedChunk is a retrieval hit: a chunk plus its similarity score and
// source document info, in rank order.
type RankedChunk struct {
	Chunk      DocumentChunk `json:"chunk"`
	FileName   string        `json:"file_name"`
	Similarity float64       `json:"similarity"`
}
