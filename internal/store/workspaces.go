package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) CreateWorkspace(ctx context.Context, ws Workspace) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, name, description, color, icon, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ws.ID, ws.Name, ws.Description, ws.Color, ws.Icon, ws.OwnerID)
		if err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		// The owner is always a member; the role row keeps the invariant
		// that every member has exactly one role entry.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role)
			VALUES ($1, $2, 'owner')
		`, ws.ID, ws.OwnerID)
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id string) (Workspace, error) {
	var ws Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, icon, owner_id, created_at, updated_at
		FROM workspaces WHERE id = $1
	`, id).Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Color, &ws.Icon, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	if err := s.loadMembers(ctx, &ws); err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

func (s *PostgresStore) loadMembers(ctx context.Context, ws *Workspace) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, role FROM workspace_members WHERE workspace_id = $1 ORDER BY joined_at
	`, ws.ID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	defer rows.Close()

	ws.MemberIDs = []string{}
	ws.Roles = map[string]string{}
	for rows.Next() {
		var userID, role string
		if err := rows.Scan(&userID, &role); err != nil {
			return fmt.Errorf("scan member: %w", err)
		}
		ws.MemberIDs = append(ws.MemberIDs, userID)
		ws.Roles[userID] = role
	}
	return rows.Err()
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.description, w.color, w.icon, w.owner_id, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members m ON m.workspace_id = w.id
		WHERE m.user_id = $1
		ORDER BY w.created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := []Workspace{}
	for rows.Next() {
		var ws Workspace
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.Color, &ws.Icon, &ws.OwnerID, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range workspaces {
		if err := s.loadMembers(ctx, &workspaces[i]); err != nil {
			return nil, err
		}
	}
	return workspaces, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, id, name, description, color, icon string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name = $2, description = $3, color = $4, icon = $5, updated_at = NOW()
		WHERE id = $1
	`, id, name, description, color, icon)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) AddMember(ctx context.Context, workspaceID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
	`, workspaceID, userID, role)
	if err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, workspaceID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) SetMemberRole(ctx context.Context, workspaceID, userID, role string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workspace_members SET role = $3 WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID, role)
	if err != nil {
		return fmt.Errorf("set member role: %w", err)
	}
	return requireRowAffected(res)
}

// workspaceCascadeStatements delete every dependent collection before the
// workspace row itself. Children go first so no statement trips a foreign key.
var workspaceCascadeStatements = []string{
	`DELETE FROM notifications WHERE workspace_id = $1`,
	`DELETE FROM activities WHERE workspace_id = $1`,
	`DELETE FROM files WHERE workspace_id = $1`,
	`DELETE FROM time_entries WHERE workspace_id = $1`,
	`DELETE FROM comments WHERE workspace_id = $1`,
	`DELETE FROM requests WHERE workspace_id = $1`,
	`DELETE FROM favorites WHERE entity_id IN (SELECT id FROM projects WHERE workspace_id = $1)`,
	`DELETE FROM favorites WHERE entity_id IN (SELECT id FROM tasks WHERE workspace_id = $1)`,
	`DELETE FROM favorites WHERE entity_id IN (SELECT id FROM notes WHERE workspace_id = $1)`,
	`DELETE FROM notes WHERE workspace_id = $1`,
	`DELETE FROM tags WHERE workspace_id = $1`,
	`DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE workspace_id = $1)`,
	`DELETE FROM tasks WHERE workspace_id = $1`,
	`DELETE FROM projects WHERE workspace_id = $1`,
	`DELETE FROM workspace_members WHERE workspace_id = $1`,
	`DELETE FROM workspaces WHERE id = $1`,
}

// DeleteWorkspaceCascade removes a workspace and every dependent collection
// in one transaction; there is no partial success.
func (s *PostgresStore) DeleteWorkspaceCascade(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range workspaceCascadeStatements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("workspace cascade: %w", err)
			}
		}
		return nil
	})
}
