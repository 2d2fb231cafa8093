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

var projectStatuses = map[string]struct{}{
	"not_started": {},
	"in_progress": {},
	"on_hold":     {},
	"completed":   {},
}

var priorities = map[string]struct{}{
	"low":    {},
	"medium": {},
	"high":   {},
}

type ProjectInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	WorkspaceID string     `json:"workspace_id"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Progress    int        `json:"progress"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  []string   `json:"assigned_to"`
	Tags        []string   `json:"tags"`
}

func (in ProjectInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationError("name is required")
	}
	if in.Status != "" {
		if _, ok := projectStatuses[in.Status]; !ok {
			return validationError("status must be not_started, in_progress, on_hold or completed")
		}
	}
	if in.Priority != "" {
		if _, ok := priorities[in.Priority]; !ok {
			return validationError("priority must be low, medium or high")
		}
	}
	if in.Progress < 0 || in.Progress > 100 {
		return validationError("progress must be between 0 and 100")
	}
	return nil
}

func (s *Service) CreateProject(ctx context.Context, session Session, in ProjectInput) (store.Project, error) {
	if _, _, err := s.requireAction(ctx, in.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Project{}, err
	}
	if err := in.validate(); err != nil {
		return store.Project{}, err
	}

	now := time.Now()
	p := store.Project{
		ID:          util.NewID("prj"),
		WorkspaceID: in.WorkspaceID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Status:      defaultStr(in.Status, "not_started"),
		Priority:    defaultStr(in.Priority, "medium"),
		Progress:    in.Progress,
		Deadline:    in.Deadline,
		AssignedTo:  in.AssignedTo,
		Tags:        in.Tags,
		CreatedBy:   session.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return store.Project{}, err
	}

	s.logActivity(ctx, p.WorkspaceID, session, "project", p.ID, "created", p.Name)
	for _, assignee := range p.AssignedTo {
		if assignee != session.UserID {
			s.notify(ctx, p.WorkspaceID, assignee, "Project assignment",
				session.UserName+" assigned you to "+p.Name, "assignment")
		}
	}
	s.indexProject(p)
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, id string) (store.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, notFound("Project")
		}
		return store.Project{}, err
	}
	if _, _, err := s.memberRole(ctx, p.WorkspaceID, session.UserID); err != nil {
		return store.Project{}, err
	}
	return p, nil
}

func (s *Service) ListProjects(ctx context.Context, session Session, workspaceID string) ([]store.Project, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListProjects(ctx, workspaceID)
}

func (s *Service) UpdateProject(ctx context.Context, session Session, id string, in ProjectInput) (store.Project, error) {
	existing, err := s.store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, notFound("Project")
		}
		return store.Project{}, err
	}
	_, role, err := s.memberRole(ctx, existing.WorkspaceID, session.UserID)
	if err != nil {
		return store.Project{}, err
	}
	if !canManageEntity(role, existing.CreatedBy, session.UserID) {
		return store.Project{}, forbidden()
	}
	if err := in.validate(); err != nil {
		return store.Project{}, err
	}

	updated := existing
	updated.Name = strings.TrimSpace(in.Name)
	updated.Description = in.Description
	updated.Status = defaultStr(in.Status, existing.Status)
	updated.Priority = defaultStr(in.Priority, existing.Priority)
	updated.Progress = in.Progress
	updated.Deadline = in.Deadline
	updated.AssignedTo = in.AssignedTo
	updated.Tags = in.Tags
	if err := s.store.UpdateProject(ctx, updated); err != nil {
		return store.Project{}, err
	}

	s.logActivity(ctx, updated.WorkspaceID, session, "project", id, "updated", updated.Name)
	for _, assignee := range diffAssignees(existing.AssignedTo, updated.AssignedTo) {
		if assignee != session.UserID {
			s.notify(ctx, updated.WorkspaceID, assignee, "Project assignment",
				session.UserName+" assigned you to "+updated.Name, "assignment")
		}
	}
	s.indexProject(updated)
	return s.store.GetProject(ctx, id)
}

func (s *Service) DeleteProject(ctx context.Context, session Session, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Project")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, p.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, p.CreatedBy, session.UserID) {
		return forbidden()
	}

	if err := s.store.DeleteProjectCascade(ctx, id); err != nil {
		return err
	}

	s.logActivity(ctx, p.WorkspaceID, session, "project", id, "deleted", p.Name)
	if s.search != nil {
		s.search.Delete(id)
	}
	return nil
}

func (s *Service) indexProject(p store.Project) {
	if s.search == nil {
		return
	}
	s.search.Index(search.Record{
		ID:          p.ID,
		Type:        search.ResultProject,
		WorkspaceID: p.WorkspaceID,
		Title:       p.Name,
		Body:        p.Description,
	})
}

func defaultStr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// diffAssignees returns entries in next that are not in prev.
func diffAssignees(prev, next []string) []string {
	seen := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		seen[id] = struct{}{}
	}
	var added []string
	for _, id := range next {
		if _, ok := seen[id]; !ok {
			added = append(added, id)
		}
	}
	return added
}
