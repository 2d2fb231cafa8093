package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const taskColumns = `id, project_id, workspace_id, title, description, status, priority, assigned_to, deadline, tags, estimated_hours, parent_task_id, created_by, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var tags []byte
	err := row.Scan(&t.ID, &t.ProjectID, &t.WorkspaceID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssignedTo, &t.Deadline, &tags, &t.EstimatedHours, &t.ParentTaskID, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	t.Tags = scanList(tags)
	return t, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, workspace_id, title, description, status, priority, assigned_to, deadline, tags, estimated_hours, parent_task_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, t.ID, t.ProjectID, t.WorkspaceID, t.Title, t.Description, t.Status, t.Priority, t.AssignedTo, t.Deadline, jsonList(t.Tags), t.EstimatedHours, t.ParentTaskID, t.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

// ListTasks applies every non-zero filter field. Results are newest-first
// to match the feed-style listings the clients render.
func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	var conditions []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.WorkspaceID != "" {
		add("workspace_id = $%d", filter.WorkspaceID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.AssignedTo != "" {
		add("assigned_to = $%d", filter.AssignedTo)
	}
	if filter.DeadlineFrom != nil {
		add("deadline >= $%d", *filter.DeadlineFrom)
	}
	if filter.DeadlineTo != nil {
		add("deadline <= $%d", *filter.DeadlineTo)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, assigned_to = $6,
			deadline = $7, tags = $8, estimated_hours = $9, parent_task_id = $10, updated_at = NOW()
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Status, t.Priority, t.AssignedTo, t.Deadline, jsonList(t.Tags), t.EstimatedHours, t.ParentTaskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireRowAffected(res)
}

var taskCascadeStatements = []string{
	`DELETE FROM favorites WHERE entity_type = 'task' AND entity_id = $1`,
	`DELETE FROM time_entries WHERE task_id = $1`,
	`DELETE FROM comments WHERE task_id = $1`,
	`DELETE FROM files WHERE task_id = $1`,
	`DELETE FROM subtasks WHERE task_id = $1`,
}

// DeleteTaskCascade removes a task with its subtasks, comments, files, time
// entries, and favorites in one transaction.
func (s *PostgresStore) DeleteTaskCascade(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range taskCascadeStatements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("task cascade: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return requireRowAffected(res)
	})
}

func (s *PostgresStore) CountTasksAssigned(ctx context.Context, workspaceID, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks WHERE workspace_id = $1 AND assigned_to = $2
	`, workspaceID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assigned tasks: %w", err)
	}
	return count, nil
}

// Subtasks

func (s *PostgresStore) CreateSubtask(ctx context.Context, st Subtask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, title, completed, created_by)
		VALUES ($1, $2, $3, $4, $5)
	`, st.ID, st.TaskID, st.Title, st.Completed, st.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert subtask: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubtask(ctx context.Context, id string) (Subtask, error) {
	var st Subtask
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, title, completed, created_by, created_at, updated_at
		FROM subtasks WHERE id = $1
	`, id).Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

func (s *PostgresStore) ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, title, completed, created_by, created_at, updated_at
		FROM subtasks WHERE task_id = $1 ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := []Subtask{}
	for rows.Next() {
		var st Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed, &st.CreatedBy, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		subtasks = append(subtasks, st)
	}
	return subtasks, rows.Err()
}

func (s *PostgresStore) UpdateSubtask(ctx context.Context, id, title string, completed bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE subtasks SET title = $2, completed = $3, updated_at = NOW() WHERE id = $1
	`, id, title, completed)
	if err != nil {
		return fmt.Errorf("update subtask: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) DeleteSubtask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return requireRowAffected(res)
}
