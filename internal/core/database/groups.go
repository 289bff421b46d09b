package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuvalr-dev/librarium/internal/models"
)

// Implementing the db interface for groups, memberships and access rows

func (c *DatabaseClient) CreateGroup(ctx context.Context, group *models.UserGroup) error {
	if group == nil {
		return errors.New("nil group")
	}
	const q = `
		INSERT INTO user_groups (group_id, group_name, description)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	return c.db.QueryRowContext(ctx, q, group.ID, group.Name, group.Description).Scan(&group.CreatedAt)
}

func (c *DatabaseClient) ListGroups(ctx context.Context) ([]models.UserGroup, error) {
	const q = `SELECT group_id, group_name, description, created_at FROM user_groups ORDER BY group_name`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserGroup
	for rows.Next() {
		var g models.UserGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) DeleteGroup(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM user_groups WHERE group_id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("group not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) GroupIDsByName(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}
	const q = `SELECT group_name, group_id FROM user_groups WHERE group_name = ANY($1)`
	rows, err := c.db.QueryContext(ctx, q, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, id string
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

// SetUserGroups replaces the user's memberships with the given set.
func (c *DatabaseClient) SetUserGroups(ctx context.Context, userID string, groupIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_group_memberships WHERE user_id = $1`, userID); err != nil {
		return err
	}
	const ins = `INSERT INTO user_group_memberships (user_id, group_id) VALUES ($1, $2)`
	for _, gid := range groupIDs {
		if _, err := tx.ExecContext(ctx, ins, userID, gid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetUserGroups(ctx context.Context, userID string) ([]models.UserGroup, error) {
	const q = `
		SELECT g.group_id, g.group_name, g.description, g.created_at
		FROM user_groups g
		JOIN user_group_memberships m ON m.group_id = g.group_id
		WHERE m.user_id = $1
		ORDER BY g.group_name
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserGroup
	for rows.Next() {
		var g models.UserGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetWorkspaceGroups replaces the set of groups granted access to the
// workspace.
func (c *DatabaseClient) SetWorkspaceGroups(ctx context.Context, workspaceID string, groupIDs []string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM workspace_group_access WHERE workspace_id = $1`, workspaceID); err != nil {
		return err
	}
	const ins = `INSERT INTO workspace_group_access (workspace_id, group_id) VALUES ($1, $2)`
	for _, gid := range groupIDs {
		if _, err := tx.ExecContext(ctx, ins, workspaceID, gid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetWorkspaceGroups(ctx context.Context, workspaceID string) ([]string, error) {
	const q = `SELECT group_id FROM workspace_group_access WHERE workspace_id = $1`
	rows, err := c.db.QueryContext(ctx, q, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) ListWorkspaceGroupAccess(ctx context.Context) ([]models.WorkspaceGroupAccess, error) {
	const q = `SELECT workspace_id, group_id FROM workspace_group_access`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WorkspaceGroupAccess
	for rows.Next() {
		var a models.WorkspaceGroupAccess
		if err := rows.Scan(&a.WorkspaceID, &a.GroupID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
