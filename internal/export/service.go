package export

import (
	"context"
	"fmt"
	"time"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetWorkspaceInfo(ctx context.Context, id string) (WorkspaceInfo, error)
	ListProjectInfos(ctx context.Context, workspaceID string) ([]ProjectInfo, error)
	ListTaskInfos(ctx context.Context, workspaceID string) ([]TaskInfo, error)
	TotalTrackedSeconds(ctx context.Context, workspaceID string) (int64, error)
}

// Service provides workspace report export
type Service struct {
	store DataStore
	now   func() time.Time
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store, now: time.Now}
}

// ExportReport renders a workspace status report and converts it to PDF.
func (s *Service) ExportReport(ctx context.Context, workspaceID string) (*Result, error) {
	data, err := s.buildReport(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	return exportPDF(html, data.WorkspaceName+" report")
}

func (s *Service) buildReport(ctx context.Context, workspaceID string) (TemplateData, error) {
	ws, err := s.store.GetWorkspaceInfo(ctx, workspaceID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("get workspace: %w", err)
	}

	projects, err := s.store.ListProjectInfos(ctx, workspaceID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list projects: %w", err)
	}

	tasks, err := s.store.ListTaskInfos(ctx, workspaceID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("list tasks: %w", err)
	}

	trackedSeconds, err := s.store.TotalTrackedSeconds(ctx, workspaceID)
	if err != nil {
		return TemplateData{}, fmt.Errorf("total tracked time: %w", err)
	}

	now := s.now()
	data := TemplateData{
		WorkspaceName:     ws.Name,
		Description:       ws.Description,
		GeneratedAt:       now,
		TotalProjects:     len(projects),
		TotalTasks:        len(tasks),
		TotalHoursTracked: float64(trackedSeconds) / 3600,
		Projects:          projects,
	}

	for _, p := range projects {
		if p.Status == "completed" {
			data.CompletedProjects++
		}
	}
	for _, t := range tasks {
		if t.Status == "done" {
			data.CompletedTasks++
			continue
		}
		if t.Deadline != nil && t.Deadline.Before(now) {
			data.OverdueTasks++
			data.Overdue = append(data.Overdue, t)
		}
	}

	return data, nil
}
