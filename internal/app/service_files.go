package app

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"planhub/api/internal/rbac"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

type FileInput struct {
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	Data        string  `json:"data"`
	ProjectID   *string `json:"project_id"`
	TaskID      *string `json:"task_id"`
}

// CreateFile stores an attachment inline. The payload arrives base64-encoded
// and stays that way in the row.
func (s *Service) CreateFile(ctx context.Context, session Session, in FileInput) (store.File, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return store.File{}, validationError("filename is required")
	}
	hasProject := in.ProjectID != nil && *in.ProjectID != ""
	hasTask := in.TaskID != nil && *in.TaskID != ""
	if hasProject == hasTask {
		return store.File{}, validationError("exactly one of project_id or task_id is required")
	}

	raw, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		return store.File{}, validationError("data must be valid base64")
	}
	if len(raw) == 0 {
		return store.File{}, validationError("data is required")
	}
	if len(raw) > s.cfg.MaxFileBytes {
		return store.File{}, domainError(http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "File exceeds the size limit", nil)
	}

	var workspaceID string
	if hasProject {
		project, err := s.store.GetProject(ctx, *in.ProjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.File{}, notFound("Project")
			}
			return store.File{}, err
		}
		workspaceID = project.WorkspaceID
	} else {
		task, err := s.store.GetTask(ctx, *in.TaskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.File{}, notFound("Task")
			}
			return store.File{}, err
		}
		workspaceID = task.WorkspaceID
	}
	if _, _, err := s.requireAction(ctx, workspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.File{}, err
	}

	f := store.File{
		ID:          util.NewID("fil"),
		WorkspaceID: workspaceID,
		ProjectID:   in.ProjectID,
		TaskID:      in.TaskID,
		Filename:    strings.TrimSpace(in.Filename),
		ContentType: defaultStr(in.ContentType, "application/octet-stream"),
		SizeBytes:   len(raw),
		Data:        in.Data,
		CreatedBy:   session.UserID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		return store.File{}, err
	}

	s.logActivity(ctx, workspaceID, session, "file", f.ID, "uploaded", f.Filename)
	f.Data = ""
	return f, nil
}

// GetFile returns the full record, payload included.
func (s *Service) GetFile(ctx context.Context, session Session, id string) (store.File, error) {
	f, err := s.store.GetFile(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.File{}, notFound("File")
		}
		return store.File{}, err
	}
	if _, _, err := s.memberRole(ctx, f.WorkspaceID, session.UserID); err != nil {
		return store.File{}, err
	}
	return f, nil
}

// ListFiles returns metadata only.
func (s *Service) ListFiles(ctx context.Context, session Session, projectID, taskID string) ([]store.File, error) {
	var workspaceID string
	switch {
	case projectID != "":
		project, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Project")
			}
			return nil, err
		}
		workspaceID = project.WorkspaceID
	case taskID != "":
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Task")
			}
			return nil, err
		}
		workspaceID = task.WorkspaceID
	default:
		return nil, validationError("project_id or task_id is required")
	}
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListFiles(ctx, projectID, taskID)
}

func (s *Service) DeleteFile(ctx context.Context, session Session, id string) error {
	f, err := s.store.GetFile(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("File")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, f.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, f.CreatedBy, session.UserID) {
		return forbidden()
	}
	return s.store.DeleteFile(ctx, id)
}
