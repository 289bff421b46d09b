package auth

import (
	"context"
	"fmt"

	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

// AuthorizationError means the caller lacks the role or group required
// for an operation. It is surfaced immediately and never retried.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "not authorized: " + e.Reason
}

// Gate makes the role/group authorization decisions. Group membership
// is read from the database per call, never cached, so removing a user
// from a group takes effect on their next request.
type Gate struct {
	db core.DbClient
}

func NewGate(db core.DbClient) *Gate {
	return &Gate{db: db}
}

// RequireAdmin rejects callers without the admin role.
func (g *Gate) RequireAdmin(caller *core.Identity) error {
	if caller == nil || caller.Role != models.RoleAdmin {
		return &AuthorizationError{Reason: "admin role required"}
	}
	return nil
}

// CanAccess decides whether the caller may read or query the workspace:
// admins always, others when they own it or one of their groups has an
// access grant for it.
func (g *Gate) CanAccess(ctx context.Context, caller *core.Identity, workspaceID string) error {
	if caller == nil {
		return &AuthorizationError{Reason: "no caller identity"}
	}
	if caller.Role == models.RoleAdmin {
		return nil
	}
	ok, err := g.db.UserCanAccessWorkspace(ctx, workspaceID, caller.UserID)
	if err != nil {
		return fmt.Errorf("check workspace access: %w", err)
	}
	if !ok {
		return &AuthorizationError{Reason: "no access to workspace " + workspaceID}
	}
	return nil
}

// CanManage decides whether the caller may configure or delete the
// workspace: admins and the owner.
func (g *Gate) CanManage(caller *core.Identity, ws *models.Workspace) error {
	if caller == nil {
		return &AuthorizationError{Reason: "no caller identity"}
	}
	if caller.Role == models.RoleAdmin {
		return nil
	}
	if ws != nil && ws.OwnerUserID == caller.UserID {
		return nil
	}
	return &AuthorizationError{Reason: "admin role or workspace ownership required"}
}

// FilterWorkspaces lists the workspaces visible to the caller. Admins
// see everything; other callers see what they own or can reach through
// a group grant. Inaccessible workspaces are absent, never an error.
func (g *Gate) FilterWorkspaces(ctx context.Context, caller *core.Identity) ([]models.Workspace, error) {
	if caller == nil {
		return nil, &AuthorizationError{Reason: "no caller identity"}
	}
	if caller.Role == models.RoleAdmin {
		return g.db.ListWorkspaces(ctx)
	}
	return g.db.ListWorkspacesForUser(ctx, caller.UserID)
}
