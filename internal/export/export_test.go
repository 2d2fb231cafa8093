package export

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeDataStore struct {
	workspace WorkspaceInfo
	projects  []ProjectInfo
	tasks     []TaskInfo
	tracked   int64
}

func (f *fakeDataStore) GetWorkspaceInfo(ctx context.Context, id string) (WorkspaceInfo, error) {
	return f.workspace, nil
}

func (f *fakeDataStore) ListProjectInfos(ctx context.Context, workspaceID string) ([]ProjectInfo, error) {
	return f.projects, nil
}

func (f *fakeDataStore) ListTaskInfos(ctx context.Context, workspaceID string) ([]TaskInfo, error) {
	return f.tasks, nil
}

func (f *fakeDataStore) TotalTrackedSeconds(ctx context.Context, workspaceID string) (int64, error) {
	return f.tracked, nil
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	svc := NewService(&fakeDataStore{
		workspace: WorkspaceInfo{ID: "wks_1", Name: "Launch Team", Description: "Q2 launch"},
		projects: []ProjectInfo{
			{Name: "Website", Status: "completed", Progress: 100},
			{Name: "Mobile App", Status: "in_progress", Progress: 40},
		},
		tasks: []TaskInfo{
			{Title: "Ship homepage", Status: "done"},
			{Title: "Fix login", Status: "in_progress", Deadline: &past},
			{Title: "Write docs", Status: "todo", Deadline: &future},
			{Title: "No deadline", Status: "todo"},
		},
		tracked: 5400,
	})
	svc.now = func() time.Time { return now }

	data, err := svc.buildReport(context.Background(), "wks_1")
	if err != nil {
		t.Fatalf("buildReport failed: %v", err)
	}

	if data.TotalProjects != 2 || data.CompletedProjects != 1 {
		t.Errorf("project counts = %d/%d, want 1/2", data.CompletedProjects, data.TotalProjects)
	}
	if data.TotalTasks != 4 || data.CompletedTasks != 1 {
		t.Errorf("task counts = %d/%d, want 1/4", data.CompletedTasks, data.TotalTasks)
	}
	if data.OverdueTasks != 1 {
		t.Errorf("overdue = %d, want 1", data.OverdueTasks)
	}
	if len(data.Overdue) != 1 || data.Overdue[0].Title != "Fix login" {
		t.Errorf("overdue list = %+v, want Fix login", data.Overdue)
	}
	if data.TotalHoursTracked != 1.5 {
		t.Errorf("hours tracked = %v, want 1.5", data.TotalHoursTracked)
	}
}

func TestRenderReportHTML(t *testing.T) {
	deadline := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	html, err := RenderReportHTML(TemplateData{
		WorkspaceName:     "Launch Team",
		Description:       "Q2 launch",
		GeneratedAt:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		TotalProjects:     2,
		CompletedProjects: 1,
		TotalTasks:        4,
		CompletedTasks:    1,
		OverdueTasks:      1,
		TotalHoursTracked: 1.5,
		Projects: []ProjectInfo{
			{Name: "Website", Status: "completed", Priority: "high", Progress: 100, Deadline: &deadline},
		},
		Overdue: []TaskInfo{
			{Title: "Fix login", Status: "in_progress", Priority: "high", AssignedTo: "Dana", Deadline: &deadline},
		},
	})
	if err != nil {
		t.Fatalf("RenderReportHTML failed: %v", err)
	}

	for _, want := range []string{"Launch Team", "Q2 launch", "Website", "Fix login", "1/2", "1/4", "1.5"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Launch Team report": "Launch-Team-report",
		"a/b\\c":             "abc",
		"":                   "report",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
