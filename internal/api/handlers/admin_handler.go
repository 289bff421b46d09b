package handlers

import (
	"encoding/json"
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

// AdminHandler manages groups, user memberships and workspace access
// grants. Every endpoint is admin-only.
type AdminHandler struct {
	dbclient core.DbClient
	gate     *auth.Gate
}

func NewAdminHandler(dbclient core.DbClient, gate *auth.Gate) *AdminHandler {
	return &AdminHandler{dbclient: dbclient, gate: gate}
}

func (h *AdminHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if err := h.gate.RequireAdmin(middlewares.CallerFrom(r.Context())); err != nil {
		writeAuthErr(w, err)
		return false
	}
	return true
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AdminHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "group name required", http.StatusBadRequest)
		return
	}

	group := &models.UserGroup{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now(),
	}
	if err := h.dbclient.CreateGroup(r.Context(), group); err != nil {
		http.Error(w, "could not create group: "+err.Error(), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *AdminHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	groups, err := h.dbclient.ListGroups(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []models.UserGroup{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groups)
}

func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.dbclient.DeleteGroup(r.Context(), chi.URLParam(r, "groupID")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setGroupsRequest struct {
	GroupIDs   []string `json:"group_ids"`
	GroupNames []string `json:"group_names"`
}

// resolveGroupIDs merges explicit ids with ids looked up by name. An
// unknown name is a client error rather than a silent skip.
func (h *AdminHandler) resolveGroupIDs(w http.ResponseWriter, r *http.Request, req *setGroupsRequest) ([]string, bool) {
	ids := append([]string{}, req.GroupIDs...)
	if len(req.GroupNames) > 0 {
		byName, err := h.dbclient.GroupIDsByName(r.Context(), req.GroupNames)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return nil, false
		}
		for _, name := range req.GroupNames {
			id, ok := byName[name]
			if !ok {
				http.Error(w, "unknown group: "+name, http.StatusBadRequest)
				return nil, false
			}
			ids = append(ids, id)
		}
	}
	return ids, true
}

// SetUserGroups replaces a user's memberships with the given set.
func (h *AdminHandler) SetUserGroups(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req setGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ids, ok := h.resolveGroupIDs(w, r, &req)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if err := h.dbclient.SetUserGroups(r.Context(), userID, ids); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetWorkspaceGroups replaces the set of groups granted access to a
// workspace. Takes effect on the members' next request.
func (h *AdminHandler) SetWorkspaceGroups(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req setGroupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	ids, ok := h.resolveGroupIDs(w, r, &req)
	if !ok {
		return
	}

	workspaceID := chi.URLParam(r, "workspaceID")
	if err := h.dbclient.SetWorkspaceGroups(r.Context(), workspaceID, ids); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWorkspaceGroups returns the group ids currently granted access to
// a workspace.
func (h *AdminHandler) GetWorkspaceGroups(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	ids, err := h.dbclient.GetWorkspaceGroups(r.Context(), chi.URLParam(r, "workspaceID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"group_ids": ids})
}

// ListAccess returns every workspace-group access grant.
func (h *AdminHandler) ListAccess(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	grants, err := h.dbclient.ListWorkspaceGroupAccess(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if grants == nil {
		grants = []models.WorkspaceGroupAccess{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grants)
}
