// Package export renders workspace status reports as PDF.
package export

import (
	"errors"
	"time"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// WorkspaceInfo holds workspace metadata for the report header
type WorkspaceInfo struct {
	ID          string
	Name        string
	Description string
}

// ProjectInfo holds one project row of the report
type ProjectInfo struct {
	Name     string
	Status   string
	Priority string
	Progress int
	Deadline *time.Time
}

// TaskInfo holds one task row of the report
type TaskInfo struct {
	Title      string
	Status     string
	Priority   string
	AssignedTo string
	Deadline   *time.Time
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
