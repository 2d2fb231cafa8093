package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const timeEntryColumns = `id, workspace_id, task_id, user_id, description, started_at, ended_at, duration_seconds, created_at`

func scanTimeEntry(row interface{ Scan(...any) error }) (TimeEntry, error) {
	var te TimeEntry
	err := row.Scan(&te.ID, &te.WorkspaceID, &te.TaskID, &te.UserID, &te.Description, &te.StartedAt, &te.EndedAt, &te.DurationSeconds, &te.CreatedAt)
	return te, err
}

func (s *PostgresStore) CreateTimeEntry(ctx context.Context, te TimeEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO time_entries (id, workspace_id, task_id, user_id, description, started_at, ended_at, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, te.ID, te.WorkspaceID, te.TaskID, te.UserID, te.Description, te.StartedAt, te.EndedAt, te.DurationSeconds)
	if err != nil {
		return fmt.Errorf("insert time entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTimeEntry(ctx context.Context, id string) (TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timeEntryColumns+` FROM time_entries WHERE id = $1`, id)
	return scanTimeEntry(row)
}

// GetRunningTimeEntry returns the user's open timer, if any.
func (s *PostgresStore) GetRunningTimeEntry(ctx context.Context, userID string) (TimeEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+timeEntryColumns+` FROM time_entries WHERE user_id = $1 AND ended_at IS NULL
	`, userID)
	return scanTimeEntry(row)
}

// StopTimeEntry closes an open timer and records its duration.
func (s *PostgresStore) StopTimeEntry(ctx context.Context, id string, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE time_entries
		SET ended_at = $2,
			duration_seconds = EXTRACT(EPOCH FROM ($2 - started_at))::bigint
		WHERE id = $1 AND ended_at IS NULL
	`, id, endedAt)
	if err != nil {
		return fmt.Errorf("stop time entry: %w", err)
	}
	return requireRowAffected(res)
}

func (s *PostgresStore) ListTimeEntries(ctx context.Context, filter TimeEntryFilter) ([]TimeEntry, error) {
	var conditions []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.TaskID != "" {
		add("task_id = $%d", filter.TaskID)
	}
	if filter.WorkspaceID != "" {
		add("workspace_id = $%d", filter.WorkspaceID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.From != nil {
		add("started_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("started_at <= $%d", *filter.To)
	}

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	entries := []TimeEntry{}
	for rows.Next() {
		te, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		entries = append(entries, te)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteTimeEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete time entry: %w", err)
	}
	return requireRowAffected(res)
}
