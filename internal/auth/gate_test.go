package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/models"
)

type fakeDB struct {
	core.DbClient

	workspaces []models.Workspace
	// workspace id -> user ids with group-granted or owner access
	access map[string][]string
}

func (f *fakeDB) ListWorkspaces(ctx context.Context) ([]models.Workspace, error) {
	return f.workspaces, nil
}

func (f *fakeDB) ListWorkspacesForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	var out []models.Workspace
	for _, ws := range f.workspaces {
		if ws.OwnerUserID == userID {
			out = append(out, ws)
			continue
		}
		for _, uid := range f.access[ws.ID] {
			if uid == userID {
				out = append(out, ws)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeDB) UserCanAccessWorkspace(ctx context.Context, workspaceID, userID string) (bool, error) {
	for _, ws := range f.workspaces {
		if ws.ID == workspaceID && ws.OwnerUserID == userID {
			return true, nil
		}
	}
	for _, uid := range f.access[workspaceID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func twoWorkspaceDB() *fakeDB {
	return &fakeDB{
		workspaces: []models.Workspace{
			{ID: "W1", Name: "first", OwnerUserID: "owner-1"},
			{ID: "W2", Name: "second", OwnerUserID: "owner-2"},
		},
		// user-1 reaches W1 through group G1; nothing grants W2.
		access: map[string][]string{"W1": {"user-1"}},
	}
}

func TestFilterWorkspacesNonAdminSeesOnlyGranted(t *testing.T) {
	gate := NewGate(twoWorkspaceDB())
	caller := &core.Identity{UserID: "user-1", Role: models.RoleUser, Groups: []string{"G1"}}

	visible, err := gate.FilterWorkspaces(context.Background(), caller)
	require.NoError(t, err)

	require.Len(t, visible, 1)
	assert.Equal(t, "W1", visible[0].ID)
}

func TestFilterWorkspacesAdminSeesAll(t *testing.T) {
	gate := NewGate(twoWorkspaceDB())
	admin := &core.Identity{UserID: "admin-1", Role: models.RoleAdmin}

	visible, err := gate.FilterWorkspaces(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestCanAccess(t *testing.T) {
	gate := NewGate(twoWorkspaceDB())
	ctx := context.Background()

	granted := &core.Identity{UserID: "user-1", Role: models.RoleUser}
	assert.NoError(t, gate.CanAccess(ctx, granted, "W1"))

	err := gate.CanAccess(ctx, granted, "W2")
	require.Error(t, err)
	var authErr *AuthorizationError
	assert.ErrorAs(t, err, &authErr)

	admin := &core.Identity{UserID: "admin-1", Role: models.RoleAdmin}
	assert.NoError(t, gate.CanAccess(ctx, admin, "W2"))

	owner := &core.Identity{UserID: "owner-2", Role: models.RoleUser}
	assert.NoError(t, gate.CanAccess(ctx, owner, "W2"))
}

func TestRequireAdmin(t *testing.T) {
	gate := NewGate(&fakeDB{})

	assert.NoError(t, gate.RequireAdmin(&core.Identity{Role: models.RoleAdmin}))

	err := gate.RequireAdmin(&core.Identity{Role: models.RoleUser})
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)

	assert.Error(t, gate.RequireAdmin(nil))
}

func TestCanManage(t *testing.T) {
	gate := NewGate(&fakeDB{})
	ws := &models.Workspace{ID: "W1", OwnerUserID: "owner-1"}

	assert.NoError(t, gate.CanManage(&core.Identity{UserID: "x", Role: models.RoleAdmin}, ws))
	assert.NoError(t, gate.CanManage(&core.Identity{UserID: "owner-1", Role: models.RoleUser}, ws))
	assert.Error(t, gate.CanManage(&core.Identity{UserID: "stranger", Role: models.RoleUser}, ws))
}

func TestTokenRoundTrip(t *testing.T) {
	id := &core.Identity{UserID: "u-1", Email: "a@b.c", Role: models.RoleUser, Groups: []string{"G1", "G2"}}

	token, err := IssueToken("secret", id)
	require.NoError(t, err)

	claims, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.Equal(t, []string{"G1", "G2"}, claims.Groups)

	_, err = ParseToken("wrong-secret", token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2!"))
	assert.False(t, CheckPassword(hash, "hunter3!"))
}
