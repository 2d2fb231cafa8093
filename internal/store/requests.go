package store

import (
	"context"
	"fmt"
)

// Requests

func (s *PostgresStore) CreateRequest(ctx context.Context, r Request) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, workspace_id, title, description, priority, category, status, deadline, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.ID, r.WorkspaceID, r.Title, r.Description, r.Priority, r.Category, r.Status, r.Deadline, r.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (Request, error) {
	var r Request
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, description, priority, category, status, deadline, created_by, created_at, updated_at
		FROM requests WHERE id = $1
	`, id).Scan(&r.ID, &r.WorkspaceID, &r.Title, &r.Description, &r.Priority, &r.Category, &r.Status, &r.Deadline, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *PostgresStore) ListRequests(ctx context.Context, workspaceID string) ([]Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, description, priority, category, status, deadline, created_by, created_at, updated_at
		FROM requests WHERE workspace_id = $1 ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Title, &r.Description, &r.Priority, &r.Category, &r.Status, &r.Deadline, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (s *PostgresStore) UpdateRequest(ctx context.Context, r Request) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests
		SET title = $2, description = $3, priority = $4, category = $5, deadline = $6, updated_at = NOW()
		WHERE id = $1
	`, r.ID, r.Title, r.Description, r.Priority, r.Category, r.Deadline)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteRequest(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return requireRowAffected(res)
}

// Comments

func (s *PostgresStore) CreateComment(ctx context.Context, c Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, workspace_id, task_id, project_id, content, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.WorkspaceID, c.TaskID, c.ProjectID, c.Content, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (Comment, error) {
	var c Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, task_id, project_id, content, created_by, created_at, updated_at
		FROM comments WHERE id = $1
	`, id).Scan(&c.ID, &c.WorkspaceID, &c.TaskID, &c.ProjectID, &c.Content, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListComments lists by task or by project depending on which id is set.
func (s *PostgresStore) ListComments(ctx context.Context, taskID, projectID string) ([]Comment, error) {
	query := `
		SELECT id, workspace_id, task_id, project_id, content, created_by, created_at, updated_at
		FROM comments WHERE task_id = $1 ORDER BY created_at`
	arg := taskID
	if taskID == "" {
		query = `
		SELECT id, workspace_id, task_id, project_id, content, created_by, created_at, updated_at
		FROM comments WHERE project_id = $1 ORDER BY created_at`
		arg = projectID
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.TaskID, &c.ProjectID, &c.Content, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *PostgresStore) UpdateComment(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET content = $2, updated_at = NOW() WHERE id = $1`, id, content)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireRowAffected(res)
}
