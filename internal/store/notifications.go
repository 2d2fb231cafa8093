package store

import (
	"context"
	"fmt"
	"time"
)

// Notifications

func (s *PostgresStore) CreateNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, workspace_id, title, message, type, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.UserID, n.WorkspaceID, n.Title, n.Message, n.Type, n.Read)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetNotification(ctx context.Context, id string) (Notification, error) {
	var n Notification
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, title, message, type, read, created_at FROM notifications WHERE id = $1
	`, id).Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt)
	return n, err
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, workspace_id, title, message, type, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.WorkspaceID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *PostgresStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireRowAffected(res)
}

// MarkAllNotificationsRead intentionally succeeds when nothing was unread.
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireRowAffected(res)
}

// Activities — append-only, no update or delete.

func (s *PostgresStore) InsertActivity(ctx context.Context, a Activity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, workspace_id, actor_id, actor_name, entity_type, entity_id, action, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, a.ID, a.WorkspaceID, a.ActorID, a.ActorName, a.EntityType, a.EntityID, a.Action, a.Detail)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, workspaceID string, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, actor_name, entity_type, entity_id, action, detail, created_at
		FROM activities WHERE workspace_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	activities := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActorID, &a.ActorName, &a.EntityType, &a.EntityID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// ListActivitiesSince supports the workspace report.
func (s *PostgresStore) ListActivitiesSince(ctx context.Context, workspaceID string, since time.Time, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, actor_id, actor_name, entity_type, entity_id, action, detail, created_at
		FROM activities WHERE workspace_id = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT $3
	`, workspaceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities since: %w", err)
	}
	defer rows.Close()

	activities := []Activity{}
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.ActorID, &a.ActorName, &a.EntityType, &a.EntityID, &a.Action, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
