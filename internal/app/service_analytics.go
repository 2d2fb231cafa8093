package app

import (
	"context"
	"sort"
	"time"

	"planhub/api/internal/store"
)

// Dashboard holds the workspace aggregation. total_tasks always equals the
// sum of the tasks_by_status buckets.
type Dashboard struct {
	TotalProjects     int            `json:"total_projects"`
	ActiveProjects    int            `json:"active_projects"`
	CompletedProjects int            `json:"completed_projects"`
	TotalTasks        int            `json:"total_tasks"`
	PendingTasks      int            `json:"pending_tasks"`
	InProgressTasks   int            `json:"in_progress_tasks"`
	CompletedTasks    int            `json:"completed_tasks"`
	TotalMembers      int            `json:"total_members"`
	ProjectsByStatus  map[string]int `json:"projects_by_status"`
	TasksByPriority   map[string]int `json:"tasks_by_priority"`
}

func (s *Service) Dashboard(ctx context.Context, session Session, workspaceID string) (Dashboard, error) {
	ws, _, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return Dashboard{}, err
	}

	projects, err := s.store.ListProjects(ctx, workspaceID)
	if err != nil {
		return Dashboard{}, err
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{WorkspaceID: workspaceID})
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TotalProjects:    len(projects),
		TotalTasks:       len(tasks),
		TotalMembers:     len(ws.MemberIDs),
		ProjectsByStatus: map[string]int{},
		TasksByPriority:  map[string]int{},
	}
	for _, p := range projects {
		d.ProjectsByStatus[p.Status]++
		switch p.Status {
		case "completed":
			d.CompletedProjects++
		case "in_progress":
			d.ActiveProjects++
		}
	}
	for _, t := range tasks {
		d.TasksByPriority[t.Priority]++
		switch t.Status {
		case "done":
			d.CompletedTasks++
		case "in_progress":
			d.InProgressTasks++
		default:
			d.PendingTasks++
		}
	}
	return d, nil
}

type MemberProductivity struct {
	UserID         string  `json:"user_id"`
	FullName       string  `json:"full_name"`
	TasksCompleted int     `json:"tasks_completed"`
	HoursLogged    float64 `json:"hours_logged"`
}

func (s *Service) Productivity(ctx context.Context, session Session, workspaceID string, from, to *time.Time) ([]MemberProductivity, error) {
	ws, _, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeEntries(ctx, store.TimeEntryFilter{
		WorkspaceID: workspaceID,
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsersByIDs(ctx, ws.MemberIDs)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*MemberProductivity, len(users))
	for _, u := range users {
		byUser[u.ID] = &MemberProductivity{UserID: u.ID, FullName: u.FullName}
	}
	for _, t := range tasks {
		if t.Status != "done" || t.AssignedTo == "" {
			continue
		}
		if from != nil && t.UpdatedAt.Before(*from) {
			continue
		}
		if to != nil && t.UpdatedAt.After(*to) {
			continue
		}
		if m, ok := byUser[t.AssignedTo]; ok {
			m.TasksCompleted++
		}
	}
	for _, e := range entries {
		if m, ok := byUser[e.UserID]; ok {
			m.HoursLogged += float64(e.DurationSeconds) / 3600
		}
	}

	result := make([]MemberProductivity, 0, len(byUser))
	for _, m := range byUser {
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

type Reminders struct {
	DueSoon []store.Task `json:"due_soon"`
	Overdue []store.Task `json:"overdue"`
}

// Reminders lists the caller's tasks due within 48 hours and overdue ones.
func (s *Service) Reminders(ctx context.Context, session Session, workspaceID string) (Reminders, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return Reminders{}, err
	}

	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{
		WorkspaceID: workspaceID,
		AssignedTo:  session.UserID,
	})
	if err != nil {
		return Reminders{}, err
	}

	now := time.Now()
	horizon := now.Add(48 * time.Hour)
	r := Reminders{DueSoon: []store.Task{}, Overdue: []store.Task{}}
	for _, t := range tasks {
		if t.Status == "done" || t.Deadline == nil {
			continue
		}
		switch {
		case t.Deadline.Before(now):
			r.Overdue = append(r.Overdue, t)
		case t.Deadline.Before(horizon):
			r.DueSoon = append(r.DueSoon, t)
		}
	}
	return r, nil
}

type TeamMember struct {
	UserID        string `json:"user_id"`
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Title         string `json:"title,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Role          string `json:"role"`
	ProjectsCount int    `json:"projects_count"`
	TasksCount    int    `json:"tasks_count"`
}

// Team lists workspace members with per-member project and task counts.
func (s *Service) Team(ctx context.Context, session Session, workspaceID string) ([]TeamMember, error) {
	ws, _, err := s.memberRole(ctx, workspaceID, session.UserID)
	if err != nil {
		return nil, err
	}

	users, err := s.store.ListUsersByIDs(ctx, ws.MemberIDs)
	if err != nil {
		return nil, err
	}

	members := make([]TeamMember, 0, len(users))
	for _, u := range users {
		projects, err := s.store.CountProjectsAssigned(ctx, workspaceID, u.ID)
		if err != nil {
			return nil, err
		}
		tasks, err := s.store.CountTasksAssigned(ctx, workspaceID, u.ID)
		if err != nil {
			return nil, err
		}
		members = append(members, TeamMember{
			UserID:        u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			Title:         u.Title,
			AvatarURL:     u.AvatarURL,
			Role:          ws.Roles[u.ID],
			ProjectsCount: projects,
			TasksCount:    tasks,
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].FullName < members[j].FullName })
	return members, nil
}
