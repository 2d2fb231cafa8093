package store

import (
	"context"
	"database/sql"
	"fmt"
)

const projectColumns = `id, workspace_id, name, description, status, priority, progress, deadline, assigned_to, tags, created_by, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var assigned, tags []byte
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.Progress, &p.Deadline, &assigned, &tags, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	p.AssignedTo = scanList(assigned)
	p.Tags = scanList(tags)
	return p, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, workspace_id, name, description, status, priority, progress, deadline, assigned_to, tags, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.WorkspaceID, p.Name, p.Description, p.Status, p.Priority, p.Progress, p.Deadline, jsonList(p.AssignedTo), jsonList(p.Tags), p.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	return scanProject(row)
}

func (s *PostgresStore) ListProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE workspace_id = $1 ORDER BY created_at
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET name = $2, description = $3, status = $4, priority = $5, progress = $6,
			deadline = $7, assigned_to = $8, tags = $9, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.Status, p.Priority, p.Progress, p.Deadline, jsonList(p.AssignedTo), jsonList(p.Tags))
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRowAffected(res)
}

// projectCascadeStatements clear everything hanging off a project and its
// tasks. The project row is deleted separately so the caller learns whether
// the project existed.
var projectCascadeStatements = []string{
	`DELETE FROM favorites WHERE entity_type = 'task' AND entity_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
	`DELETE FROM favorites WHERE entity_type = 'project' AND entity_id = $1`,
	`DELETE FROM time_entries WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
	`DELETE FROM comments WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
	`DELETE FROM comments WHERE project_id = $1`,
	`DELETE FROM files WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
	`DELETE FROM files WHERE project_id = $1`,
	`DELETE FROM subtasks WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)`,
	`DELETE FROM tasks WHERE project_id = $1`,
}

// DeleteProjectCascade removes a project along with its tasks, subtasks,
// comments, files, time entries, and favorites in one transaction.
func (s *PostgresStore) DeleteProjectCascade(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range projectCascadeStatements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("project cascade: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		return requireRowAffected(res)
	})
}

// CountProjectsAssigned counts projects in a workspace where the member
// appears in the assignee list.
func (s *PostgresStore) CountProjectsAssigned(ctx context.Context, workspaceID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projects
		WHERE workspace_id = $1 AND assigned_to @> to_jsonb(ARRAY[$2::text])
	`, workspaceID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assigned projects: %w", err)
	}
	return count, nil
}
