package app

import (
	"context"
	"errors"
	"net/http"

	"planhub/api/internal/export"
	"planhub/api/internal/store"
)

// ExportWorkspaceReport renders the workspace dashboard as a PDF. Any member
// may request it.
func (s *Service) ExportWorkspaceReport(ctx context.Context, session Session, workspaceID string) (*export.Result, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return nil, err
	}
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "Export is not configured", nil)
	}

	result, err := s.export.ExportReport(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "UNAVAILABLE", "PDF rendering is unavailable on this host", nil)
		}
		return nil, err
	}
	return result, nil
}

// exportAdapter exposes the slice of the data store the exporter reads.
type exportAdapter struct {
	store dataStore
}

// NewExportDataStore adapts the primary store to the exporter's interface.
func NewExportDataStore(ds dataStore) export.DataStore {
	return &exportAdapter{store: ds}
}

func (a *exportAdapter) GetWorkspaceInfo(ctx context.Context, id string) (export.WorkspaceInfo, error) {
	ws, err := a.store.GetWorkspace(ctx, id)
	if err != nil {
		return export.WorkspaceInfo{}, err
	}
	return export.WorkspaceInfo{ID: ws.ID, Name: ws.Name, Description: ws.Description}, nil
}

func (a *exportAdapter) ListProjectInfos(ctx context.Context, workspaceID string) ([]export.ProjectInfo, error) {
	projects, err := a.store.ListProjects(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	infos := make([]export.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		infos = append(infos, export.ProjectInfo{
			Name:     p.Name,
			Status:   p.Status,
			Priority: p.Priority,
			Progress: p.Progress,
			Deadline: p.Deadline,
		})
	}
	return infos, nil
}

func (a *exportAdapter) ListTaskInfos(ctx context.Context, workspaceID string) ([]export.TaskInfo, error) {
	tasks, err := a.store.ListTasks(ctx, store.TaskFilter{WorkspaceID: workspaceID})
	if err != nil {
		return nil, err
	}
	infos := make([]export.TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, export.TaskInfo{
			Title:      t.Title,
			Status:     t.Status,
			Priority:   t.Priority,
			AssignedTo: t.AssignedTo,
			Deadline:   t.Deadline,
		})
	}
	return infos, nil
}

func (a *exportAdapter) TotalTrackedSeconds(ctx context.Context, workspaceID string) (int64, error) {
	entries, err := a.store.ListTimeEntries(ctx, store.TimeEntryFilter{WorkspaceID: workspaceID})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.DurationSeconds
	}
	return total, nil
}
