package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yuvalr-dev/librarium/internal/api/middlewares"
	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

type WorkspaceHandler struct {
	dbclient core.DbClient
	gate     *auth.Gate
}

func NewWorkspaceHandler(dbclient core.DbClient, gate *auth.Gate) *WorkspaceHandler {
	return &WorkspaceHandler{dbclient: dbclient, gate: gate}
}

// writeAuthErr maps authorization failures to 403 and everything else
// to 500.
func writeAuthErr(w http.ResponseWriter, err error) {
	var authErr *auth.AuthorizationError
	if errors.As(err, &authErr) {
		http.Error(w, authErr.Error(), http.StatusForbidden)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

type createWorkspaceRequest struct {
	Name   string                  `json:"name"`
	Config *models.WorkspaceConfig `json:"config,omitempty"`
}

// Create makes a new workspace. Admin-only; the admin becomes the
// owner.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	if err := h.gate.RequireAdmin(caller); err != nil {
		writeAuthErr(w, err)
		return
	}

	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "workspace name required", http.StatusBadRequest)
		return
	}

	ws := &models.Workspace{
		ID:          uuid.NewString(),
		Name:        req.Name,
		OwnerUserID: caller.UserID,
		CreatedAt:   time.Now(),
	}
	if req.Config != nil {
		ws.Config = *req.Config
	}
	applyConfigDefaults(&ws.Config)
	if ws.Config.ChunkOverlap >= ws.Config.ChunkSize {
		http.Error(w, "chunk_overlap must be smaller than chunk_size", http.StatusBadRequest)
		return
	}

	if err := h.dbclient.CreateWorkspace(r.Context(), ws); err != nil {
		http.Error(w, "could not create workspace: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ws)
}

// applyConfigDefaults fills unset configuration fields so the stored
// row always carries a complete parameter set.
func applyConfigDefaults(cfg *models.WorkspaceConfig) {
	if cfg.ChunkingMethod == "" {
		cfg.ChunkingMethod = "recursive"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.SimilarityMetric == "" {
		cfg.SimilarityMetric = "cosine"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
}

// List returns the workspaces visible to the caller: all of them for an
// admin, owned plus group-granted for everyone else.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())

	workspaces, err := h.gate.FilterWorkspaces(r.Context(), caller)
	if err != nil {
		writeAuthErr(w, err)
		return
	}
	if workspaces == nil {
		workspaces = []models.Workspace{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(workspaces)
}

func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	if err := h.gate.CanAccess(r.Context(), caller, workspaceID); err != nil {
		writeAuthErr(w, err)
		return
	}

	ws, err := h.dbclient.GetWorkspaceByID(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ws == nil {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws)
}

// UpdateConfig replaces the workspace's pipeline configuration. Allowed
// for admins and the owner. Runs already in flight keep their resolved
// parameters; the next run picks up the change.
func (h *WorkspaceHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	ws, err := h.dbclient.GetWorkspaceByID(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ws == nil {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}
	if err := h.gate.CanManage(caller, ws); err != nil {
		writeAuthErr(w, err)
		return
	}

	var cfg models.WorkspaceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	applyConfigDefaults(&cfg)
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		http.Error(w, "chunk_overlap must be smaller than chunk_size", http.StatusBadRequest)
		return
	}

	if err := h.dbclient.UpdateWorkspaceConfig(r.Context(), workspaceID, cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws.Config = cfg
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws)
}

// Delete removes the workspace; documents, chunks, vectors and access
// rows cascade with it. Allowed for admins and the owner.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller := middlewares.CallerFrom(r.Context())
	workspaceID := chi.URLParam(r, "workspaceID")

	ws, err := h.dbclient.GetWorkspaceByID(r.Context(), workspaceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ws == nil {
		http.Error(w, "workspace not found", http.StatusNotFound)
		return
	}
	if err := h.gate.CanManage(caller, ws); err != nil {
		writeAuthErr(w, err)
		return
	}

	if err := h.dbclient.DeleteWorkspace(r.Context(), workspaceID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
