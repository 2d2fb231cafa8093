package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"planhub/api/internal/rbac"
	"planhub/api/internal/search"
	"planhub/api/internal/store"
	"planhub/api/internal/util"
)

var requestStatuses = map[string]struct{}{
	"open":     {},
	"approved": {},
	"rejected": {},
	"done":     {},
}

type RequestInput struct {
	WorkspaceID string     `json:"workspace_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category"`
	Deadline    *time.Time `json:"deadline"`
}

func (s *Service) CreateRequest(ctx context.Context, session Session, in RequestInput) (store.Request, error) {
	if _, _, err := s.requireAction(ctx, in.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Request{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Request{}, validationError("title is required")
	}
	if in.Priority != "" {
		if _, ok := priorities[in.Priority]; !ok {
			return store.Request{}, validationError("priority must be low, medium or high")
		}
	}

	now := time.Now()
	r := store.Request{
		ID:          util.NewID("req"),
		WorkspaceID: in.WorkspaceID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    defaultStr(in.Priority, "medium"),
		Category:    defaultStr(in.Category, "general"),
		Status:      "open",
		Deadline:    in.Deadline,
		CreatedBy:   session.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return store.Request{}, err
	}

	s.logActivity(ctx, r.WorkspaceID, session, "request", r.ID, "created", r.Title)
	return r, nil
}

func (s *Service) ListRequests(ctx context.Context, session Session, workspaceID string) ([]store.Request, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, workspaceID)
}

func (s *Service) GetRequest(ctx context.Context, session Session, id string) (store.Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Request{}, notFound("Request")
		}
		return store.Request{}, err
	}
	if _, _, err := s.memberRole(ctx, r.WorkspaceID, session.UserID); err != nil {
		return store.Request{}, err
	}
	return r, nil
}

func (s *Service) UpdateRequest(ctx context.Context, session Session, id string, in RequestInput) (store.Request, error) {
	existing, err := s.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Request{}, notFound("Request")
		}
		return store.Request{}, err
	}
	_, role, err := s.memberRole(ctx, existing.WorkspaceID, session.UserID)
	if err != nil {
		return store.Request{}, err
	}
	if !canManageEntity(role, existing.CreatedBy, session.UserID) {
		return store.Request{}, forbidden()
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Request{}, validationError("title is required")
	}

	updated := existing
	updated.Title = strings.TrimSpace(in.Title)
	updated.Description = in.Description
	updated.Priority = defaultStr(in.Priority, existing.Priority)
	updated.Category = defaultStr(in.Category, existing.Category)
	updated.Deadline = in.Deadline
	if err := s.store.UpdateRequest(ctx, updated); err != nil {
		return store.Request{}, err
	}
	return s.store.GetRequest(ctx, id)
}

// UpdateRequestStatus transitions a work request; owner/admin only. The
// creator is notified of the decision.
func (s *Service) UpdateRequestStatus(ctx context.Context, session Session, id, status string) (store.Request, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Request{}, notFound("Request")
		}
		return store.Request{}, err
	}
	_, role, err := s.memberRole(ctx, r.WorkspaceID, session.UserID)
	if err != nil {
		return store.Request{}, err
	}
	if !rbac.Can(role, rbac.ActionManage) {
		return store.Request{}, forbidden()
	}
	if _, ok := requestStatuses[status]; !ok {
		return store.Request{}, validationError("status must be open, approved, rejected or done")
	}

	if err := s.store.UpdateRequestStatus(ctx, id, status); err != nil {
		return store.Request{}, err
	}

	if r.CreatedBy != session.UserID {
		s.notify(ctx, r.WorkspaceID, r.CreatedBy, "Request "+status,
			session.UserName+" marked your request "+r.Title+" as "+status, "request")
	}
	s.logActivity(ctx, r.WorkspaceID, session, "request", id, "status_changed", status)
	return s.store.GetRequest(ctx, id)
}

func (s *Service) DeleteRequest(ctx context.Context, session Session, id string) error {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Request")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, r.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, r.CreatedBy, session.UserID) {
		return forbidden()
	}
	return s.store.DeleteRequest(ctx, id)
}

type CommentInput struct {
	Content   string  `json:"content"`
	TaskID    *string `json:"task_id"`
	ProjectID *string `json:"project_id"`
}

// CreateComment attaches a comment to exactly one of a task or project.
func (s *Service) CreateComment(ctx context.Context, session Session, in CommentInput) (store.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return store.Comment{}, validationError("content is required")
	}
	hasTask := in.TaskID != nil && *in.TaskID != ""
	hasProject := in.ProjectID != nil && *in.ProjectID != ""
	if hasTask == hasProject {
		return store.Comment{}, validationError("exactly one of task_id or project_id is required")
	}

	var workspaceID string
	var taskOwner string
	var parentTitle string
	if hasTask {
		task, err := s.store.GetTask(ctx, *in.TaskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Comment{}, notFound("Task")
			}
			return store.Comment{}, err
		}
		workspaceID = task.WorkspaceID
		taskOwner = task.AssignedTo
		parentTitle = task.Title
	} else {
		project, err := s.store.GetProject(ctx, *in.ProjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.Comment{}, notFound("Project")
			}
			return store.Comment{}, err
		}
		workspaceID = project.WorkspaceID
		parentTitle = project.Name
	}
	if _, _, err := s.requireAction(ctx, workspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Comment{}, err
	}

	now := time.Now()
	c := store.Comment{
		ID:          util.NewID("cmt"),
		WorkspaceID: workspaceID,
		TaskID:      in.TaskID,
		ProjectID:   in.ProjectID,
		Content:     strings.TrimSpace(in.Content),
		CreatedBy:   session.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return store.Comment{}, err
	}

	s.logActivity(ctx, workspaceID, session, "comment", c.ID, "created", parentTitle)
	if taskOwner != "" && taskOwner != session.UserID {
		s.notify(ctx, workspaceID, taskOwner, "New comment",
			session.UserName+" commented on "+parentTitle, "comment")
	}
	if s.search != nil {
		s.search.Index(search.Record{
			ID:          c.ID,
			Type:        search.ResultComment,
			WorkspaceID: workspaceID,
			Title:       parentTitle,
			Body:        c.Content,
		})
	}
	return c, nil
}

func (s *Service) ListComments(ctx context.Context, session Session, taskID, projectID string) ([]store.Comment, error) {
	var workspaceID string
	switch {
	case taskID != "":
		task, err := s.store.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Task")
			}
			return nil, err
		}
		workspaceID = task.WorkspaceID
	case projectID != "":
		project, err := s.store.GetProject(ctx, projectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Project")
			}
			return nil, err
		}
		workspaceID = project.WorkspaceID
	default:
		return nil, validationError("task_id or project_id is required")
	}
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID, projectID)
}

func (s *Service) UpdateComment(ctx context.Context, session Session, id, content string) (store.Comment, error) {
	c, err := s.commentForModify(ctx, session, id)
	if err != nil {
		return store.Comment{}, err
	}
	if strings.TrimSpace(content) == "" {
		return store.Comment{}, validationError("content is required")
	}
	if err := s.store.UpdateComment(ctx, c.ID, strings.TrimSpace(content)); err != nil {
		return store.Comment{}, err
	}
	return s.store.GetComment(ctx, id)
}

func (s *Service) DeleteComment(ctx context.Context, session Session, id string) error {
	c, err := s.commentForModify(ctx, session, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, c.ID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.Delete(id)
	}
	return nil
}

func (s *Service) commentForModify(ctx context.Context, session Session, id string) (store.Comment, error) {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, notFound("Comment")
		}
		return store.Comment{}, err
	}
	_, role, err := s.memberRole(ctx, c.WorkspaceID, session.UserID)
	if err != nil {
		return store.Comment{}, err
	}
	if !canManageEntity(role, c.CreatedBy, session.UserID) {
		return store.Comment{}, forbidden()
	}
	return c, nil
}
