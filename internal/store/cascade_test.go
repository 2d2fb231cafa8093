package store

import (
	"regexp"
	"strings"
	"testing"
)

var deleteTargetRe = regexp.MustCompile(`DELETE FROM (\w+)`)

func deletedTables(statements []string) map[string]bool {
	tables := map[string]bool{}
	for _, stmt := range statements {
		if m := deleteTargetRe.FindStringSubmatch(stmt); m != nil {
			tables[m[1]] = true
		}
	}
	return tables
}

func assertCascadeCovers(t *testing.T, statements []string, tables ...string) {
	t.Helper()
	got := deletedTables(statements)
	for _, table := range tables {
		if !got[table] {
			t.Errorf("cascade never deletes from %s", table)
		}
	}
}

func TestWorkspaceCascadeCoversEveryDependent(t *testing.T) {
	assertCascadeCovers(t, workspaceCascadeStatements,
		"notifications", "activities", "files", "time_entries", "comments",
		"requests", "favorites", "notes", "tags", "subtasks", "tasks",
		"projects", "workspace_members", "workspaces")

	last := workspaceCascadeStatements[len(workspaceCascadeStatements)-1]
	if last != `DELETE FROM workspaces WHERE id = $1` {
		t.Fatalf("workspace row must be deleted last, got %q", last)
	}
	for _, stmt := range workspaceCascadeStatements {
		if !strings.Contains(stmt, "$1") {
			t.Errorf("statement not scoped to the workspace: %q", stmt)
		}
	}
}

func TestProjectCascadeCoversEveryDependent(t *testing.T) {
	assertCascadeCovers(t, projectCascadeStatements,
		"favorites", "time_entries", "comments", "files", "subtasks", "tasks")

	// Rows hanging off the project's tasks go through a task subquery.
	for _, table := range []string{"time_entries", "comments", "files", "subtasks"} {
		found := false
		for _, stmt := range projectCascadeStatements {
			if strings.Contains(stmt, "DELETE FROM "+table) &&
				strings.Contains(stmt, "SELECT id FROM tasks WHERE project_id = $1") {
				found = true
			}
		}
		if !found {
			t.Errorf("%s rows of the project's tasks are not removed", table)
		}
	}
}

func TestTaskCascadeCoversEveryDependent(t *testing.T) {
	assertCascadeCovers(t, taskCascadeStatements,
		"favorites", "time_entries", "comments", "files", "subtasks")
}
