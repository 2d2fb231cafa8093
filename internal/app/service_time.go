package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"planhub/api/internal/rbac"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

type CheckInInput struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

// CheckIn starts a running timer. A user has at most one.
func (s *Service) CheckIn(ctx context.Context, session Session, in CheckInInput) (store.TimeEntry, error) {
	task, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.TimeEntry{}, notFound("Task")
		}
		return store.TimeEntry{}, err
	}
	if _, _, err := s.requireAction(ctx, task.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.TimeEntry{}, err
	}

	if _, err := s.store.GetRunningTimeEntry(ctx, session.UserID); err == nil {
		return store.TimeEntry{}, domainError(http.StatusBadRequest, "CONFLICT", "A timer is already running", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.TimeEntry{}, err
	}

	now := time.Now()
	te := store.TimeEntry{
		ID:          util.NewID("tme"),
		WorkspaceID: task.WorkspaceID,
		TaskID:      task.ID,
		UserID:      session.UserID,
		Description: in.Description,
		StartedAt:   now,
		CreatedAt:   now,
	}
	if err := s.store.CreateTimeEntry(ctx, te); err != nil {
		return store.TimeEntry{}, err
	}
	return te, nil
}

// CheckOut stops a running timer and computes its duration.
func (s *Service) CheckOut(ctx context.Context, session Session, id string) (store.TimeEntry, error) {
	te, err := s.store.GetTimeEntry(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.TimeEntry{}, notFound("Time entry")
		}
		return store.TimeEntry{}, err
	}
	if te.UserID != session.UserID {
		return store.TimeEntry{}, forbidden()
	}
	if te.EndedAt != nil {
		return store.TimeEntry{}, domainError(http.StatusBadRequest, "CONFLICT", "Timer is not running", nil)
	}

	if err := s.store.StopTimeEntry(ctx, id, time.Now()); err != nil {
		return store.TimeEntry{}, err
	}
	return s.store.GetTimeEntry(ctx, id)
}

type TimeEntryInput struct {
	TaskID      string     `json:"task_id"`
	Description string     `json:"description"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
}

// CreateTimeEntry records a manual, already-finished entry.
func (s *Service) CreateTimeEntry(ctx context.Context, session Session, in TimeEntryInput) (store.TimeEntry, error) {
	task, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.TimeEntry{}, notFound("Task")
		}
		return store.TimeEntry{}, err
	}
	if _, _, err := s.requireAction(ctx, task.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.TimeEntry{}, err
	}
	if in.StartedAt.IsZero() || in.EndedAt == nil {
		return store.TimeEntry{}, validationError("started_at and ended_at are required")
	}
	if !in.EndedAt.After(in.StartedAt) {
		return store.TimeEntry{}, validationError("ended_at must be after started_at")
	}

	te := store.TimeEntry{
		ID:              util.NewID("tme"),
		WorkspaceID:     task.WorkspaceID,
		TaskID:          task.ID,
		UserID:          session.UserID,
		Description:     in.Description,
		StartedAt:       in.StartedAt,
		EndedAt:         in.EndedAt,
		DurationSeconds: int64(in.EndedAt.Sub(in.StartedAt).Seconds()),
		CreatedAt:       time.Now(),
	}
	if err := s.store.CreateTimeEntry(ctx, te); err != nil {
		return store.TimeEntry{}, err
	}
	return te, nil
}

func (s *Service) ListTimeEntries(ctx context.Context, session Session, filter store.TimeEntryFilter) ([]store.TimeEntry, error) {
	workspaceID := filter.WorkspaceID
	if workspaceID == "" {
		if filter.TaskID == "" {
			return nil, validationError("task_id or workspace_id is required")
		}
		task, err := s.store.GetTask(ctx, filter.TaskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Task")
			}
			return nil, err
		}
		workspaceID = task.WorkspaceID
	}
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListTimeEntries(ctx, filter)
}

func (s *Service) DeleteTimeEntry(ctx context.Context, session Session, id string) error {
	te, err := s.store.GetTimeEntry(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Time entry")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, te.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, te.UserID, session.UserID) {
		return forbidden()
	}
	return s.store.DeleteTimeEntry(ctx, id)
}
