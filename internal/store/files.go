package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateFile(ctx context.Context, f File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (id, workspace_id, project_id, task_id, filename, content_type, size_bytes, data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, f.ID, f.WorkspaceID, f.ProjectID, f.TaskID, f.Filename, f.ContentType, f.SizeBytes, f.Data, f.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile returns metadata plus the inline payload.
func (s *PostgresStore) GetFile(ctx context.Context, id string) (File, error) {
	var f File
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, project_id, task_id, filename, content_type, size_bytes, data, created_by, created_at
		FROM files WHERE id = $1
	`, id).Scan(&f.ID, &f.WorkspaceID, &f.ProjectID, &f.TaskID, &f.Filename, &f.ContentType, &f.SizeBytes, &f.Data, &f.CreatedBy, &f.CreatedAt)
	return f, err
}

// ListFiles returns metadata only; payloads never appear in list responses.
func (s *PostgresStore) ListFiles(ctx context.Context, projectID, taskID string) ([]File, error) {
	query := `
		SELECT id, workspace_id, project_id, task_id, filename, content_type, size_bytes, created_by, created_at
		FROM files WHERE project_id = $1 ORDER BY created_at DESC`
	arg := projectID
	if projectID == "" {
		query = `
		SELECT id, workspace_id, project_id, task_id, filename, content_type, size_bytes, created_by, created_at
		FROM files WHERE task_id = $1 ORDER BY created_at DESC`
		arg = taskID
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.WorkspaceID, &f.ProjectID, &f.TaskID, &f.Filename, &f.ContentType, &f.SizeBytes, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return requireRowAffected(res)
}
