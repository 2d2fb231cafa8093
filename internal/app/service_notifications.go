package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"planhub/api/internal/store"
)

type NotificationList struct {
	Notifications []store.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

func (s *Service) ListNotifications(ctx context.Context, session Session, limit int) (NotificationList, error) {
	items, err := s.store.ListNotifications(ctx, session.UserID, limit)
	if err != nil {
		return NotificationList{}, err
	}
	unread, err := s.store.CountUnreadNotifications(ctx, session.UserID)
	if err != nil {
		return NotificationList{}, err
	}
	return NotificationList{Notifications: items, UnreadCount: unread}, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, id string) error {
	n, err := s.notificationForOwner(ctx, session, id)
	if err != nil {
		return err
	}
	return s.store.MarkNotificationRead(ctx, n.ID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

func (s *Service) DeleteNotification(ctx context.Context, session Session, id string) error {
	n, err := s.notificationForOwner(ctx, session, id)
	if err != nil {
		return err
	}
	return s.store.DeleteNotification(ctx, n.ID)
}

// Notifications are visible to their recipient only; anyone else sees 404.
func (s *Service) notificationForOwner(ctx context.Context, session Session, id string) (store.Notification, error) {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Notification{}, notFound("Notification")
		}
		return store.Notification{}, err
	}
	if n.UserID != session.UserID {
		return store.Notification{}, notFound("Notification")
	}
	return n, nil
}

// ListActivities returns the workspace activity feed, newest first. A
// non-nil since narrows it to entries after that instant, which lets clients
// poll incrementally.
func (s *Service) ListActivities(ctx context.Context, session Session, workspaceID string, since *time.Time, limit int) ([]store.Activity, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	if since != nil {
		return s.store.ListActivitiesSince(ctx, workspaceID, *since, limit)
	}
	return s.store.ListActivities(ctx, workspaceID, limit)
}
