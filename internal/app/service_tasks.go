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

var taskStatuses = map[string]struct{}{
	"todo":        {},
	"in_progress": {},
	"done":        {},
}

type TaskInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	ProjectID      string     `json:"project_id"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssignedTo     string     `json:"assigned_to"`
	Deadline       *time.Time `json:"deadline"`
	Tags           []string   `json:"tags"`
	EstimatedHours float64    `json:"estimated_hours"`
	ParentTaskID   *string    `json:"parent_task_id"`
}

func (in TaskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required")
	}
	if in.Status != "" {
		if _, ok := taskStatuses[in.Status]; !ok {
			return validationError("status must be todo, in_progress or done")
		}
	}
	if in.Priority != "" {
		if _, ok := priorities[in.Priority]; !ok {
			return validationError("priority must be low, medium or high")
		}
	}
	if in.EstimatedHours < 0 {
		return validationError("estimated_hours cannot be negative")
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, session Session, in TaskInput) (store.Task, error) {
	project, err := s.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, notFound("Project")
		}
		return store.Task{}, err
	}
	if _, _, err := s.requireAction(ctx, project.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Task{}, err
	}
	if err := in.validate(); err != nil {
		return store.Task{}, err
	}

	now := time.Now()
	t := store.Task{
		ID:             util.NewID("tsk"),
		ProjectID:      project.ID,
		WorkspaceID:    project.WorkspaceID,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         defaultStr(in.Status, "todo"),
		Priority:       defaultStr(in.Priority, "medium"),
		AssignedTo:     in.AssignedTo,
		Deadline:       in.Deadline,
		Tags:           in.Tags,
		EstimatedHours: in.EstimatedHours,
		ParentTaskID:   in.ParentTaskID,
		CreatedBy:      session.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return store.Task{}, err
	}

	s.logActivity(ctx, t.WorkspaceID, session, "task", t.ID, "created", t.Title)
	if t.AssignedTo != "" && t.AssignedTo != session.UserID {
		s.notify(ctx, t.WorkspaceID, t.AssignedTo, "Task assignment",
			session.UserName+" assigned you "+t.Title, "assignment")
	}
	s.indexTask(t)
	return t, nil
}

func (s *Service) GetTask(ctx context.Context, session Session, id string) (store.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, notFound("Task")
		}
		return store.Task{}, err
	}
	if _, _, err := s.memberRole(ctx, t.WorkspaceID, session.UserID); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// ListTasks requires either a project or workspace scope the caller belongs to.
func (s *Service) ListTasks(ctx context.Context, session Session, filter store.TaskFilter) ([]store.Task, error) {
	workspaceID := filter.WorkspaceID
	if workspaceID == "" {
		if filter.ProjectID == "" {
			return nil, validationError("project_id or workspace_id is required")
		}
		project, err := s.store.GetProject(ctx, filter.ProjectID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, notFound("Project")
			}
			return nil, err
		}
		workspaceID = project.WorkspaceID
	}
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListTasks(ctx, filter)
}

func (s *Service) UpdateTask(ctx context.Context, session Session, id string, in TaskInput) (store.Task, error) {
	existing, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, notFound("Task")
		}
		return store.Task{}, err
	}
	_, role, err := s.memberRole(ctx, existing.WorkspaceID, session.UserID)
	if err != nil {
		return store.Task{}, err
	}
	// Assignees may update their own tasks too.
	if !canManageEntity(role, existing.CreatedBy, session.UserID) && existing.AssignedTo != session.UserID {
		return store.Task{}, forbidden()
	}
	if err := in.validate(); err != nil {
		return store.Task{}, err
	}

	updated := existing
	updated.Title = strings.TrimSpace(in.Title)
	updated.Description = in.Description
	updated.Status = defaultStr(in.Status, existing.Status)
	updated.Priority = defaultStr(in.Priority, existing.Priority)
	updated.AssignedTo = in.AssignedTo
	updated.Deadline = in.Deadline
	updated.Tags = in.Tags
	updated.EstimatedHours = in.EstimatedHours
	updated.ParentTaskID = in.ParentTaskID
	if err := s.store.UpdateTask(ctx, updated); err != nil {
		return store.Task{}, err
	}

	s.logActivity(ctx, updated.WorkspaceID, session, "task", id, "updated", updated.Title)
	if updated.AssignedTo != "" && updated.AssignedTo != existing.AssignedTo && updated.AssignedTo != session.UserID {
		s.notify(ctx, updated.WorkspaceID, updated.AssignedTo, "Task assignment",
			session.UserName+" assigned you "+updated.Title, "assignment")
	}
	s.indexTask(updated)
	return s.store.GetTask(ctx, id)
}

// UpdateTaskStatus is the status-only transition endpoint.
func (s *Service) UpdateTaskStatus(ctx context.Context, session Session, id, status string) (store.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, notFound("Task")
		}
		return store.Task{}, err
	}
	if _, _, err := s.memberRole(ctx, t.WorkspaceID, session.UserID); err != nil {
		return store.Task{}, err
	}
	if _, ok := taskStatuses[status]; !ok {
		return store.Task{}, validationError("status must be todo, in_progress or done")
	}

	if err := s.store.UpdateTaskStatus(ctx, id, status); err != nil {
		return store.Task{}, err
	}

	s.logActivity(ctx, t.WorkspaceID, session, "task", id, "status_changed", status)
	return s.store.GetTask(ctx, id)
}

func (s *Service) DeleteTask(ctx context.Context, session Session, id string) error {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Task")
		}
		return err
	}
	_, role, err := s.memberRole(ctx, t.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, t.CreatedBy, session.UserID) {
		return forbidden()
	}

	if err := s.store.DeleteTaskCascade(ctx, id); err != nil {
		return err
	}

	s.logActivity(ctx, t.WorkspaceID, session, "task", id, "deleted", t.Title)
	if s.search != nil {
		s.search.Delete(id)
	}
	return nil
}

func (s *Service) indexTask(t store.Task) {
	if s.search == nil {
		return
	}
	s.search.Index(search.Record{
		ID:          t.ID,
		Type:        search.ResultTask,
		WorkspaceID: t.WorkspaceID,
		Title:       t.Title,
		Body:        t.Description,
	})
}

type SubtaskInput struct {
	TaskID    string `json:"task_id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func (s *Service) CreateSubtask(ctx context.Context, session Session, in SubtaskInput) (store.Subtask, error) {
	task, err := s.store.GetTask(ctx, in.TaskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Subtask{}, notFound("Task")
		}
		return store.Subtask{}, err
	}
	if _, _, err := s.requireAction(ctx, task.WorkspaceID, session.UserID, rbac.ActionCreate); err != nil {
		return store.Subtask{}, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return store.Subtask{}, validationError("title is required")
	}

	now := time.Now()
	st := store.Subtask{
		ID:        util.NewID("sub"),
		TaskID:    task.ID,
		Title:     strings.TrimSpace(in.Title),
		CreatedBy: session.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSubtask(ctx, st); err != nil {
		return store.Subtask{}, err
	}
	return st, nil
}

func (s *Service) ListSubtasks(ctx context.Context, session Session, taskID string) ([]store.Subtask, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Task")
		}
		return nil, err
	}
	if _, _, err := s.memberRole(ctx, task.WorkspaceID, session.UserID); err != nil {
		return nil, err
	}
	return s.store.ListSubtasks(ctx, taskID)
}

func (s *Service) UpdateSubtask(ctx context.Context, session Session, id string, in SubtaskInput) (store.Subtask, error) {
	st, err := s.store.GetSubtask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Subtask{}, notFound("Subtask")
		}
		return store.Subtask{}, err
	}
	task, err := s.store.GetTask(ctx, st.TaskID)
	if err != nil {
		return store.Subtask{}, err
	}
	if _, _, err := s.memberRole(ctx, task.WorkspaceID, session.UserID); err != nil {
		return store.Subtask{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = st.Title
	}
	if err := s.store.UpdateSubtask(ctx, id, title, in.Completed); err != nil {
		return store.Subtask{}, err
	}
	return s.store.GetSubtask(ctx, id)
}

func (s *Service) DeleteSubtask(ctx context.Context, session Session, id string) error {
	st, err := s.store.GetSubtask(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("Subtask")
		}
		return err
	}
	task, err := s.store.GetTask(ctx, st.TaskID)
	if err != nil {
		return err
	}
	_, role, err := s.memberRole(ctx, task.WorkspaceID, session.UserID)
	if err != nil {
		return err
	}
	if !canManageEntity(role, st.CreatedBy, session.UserID) {
		return forbidden()
	}
	return s.store.DeleteSubtask(ctx, id)
}
