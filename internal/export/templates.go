package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplateHTML))
}

// TemplateData holds data for report template rendering
type TemplateData struct {
	WorkspaceName string
	Description   string
	GeneratedAt   time.Time

	TotalProjects     int
	CompletedProjects int
	TotalTasks        int
	CompletedTasks    int
	OverdueTasks      int
	TotalHoursTracked float64

	Projects []ProjectInfo
	Overdue  []TaskInfo
}

// RenderReportHTML renders the workspace report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.WorkspaceName}} Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; color: #222; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 1.5rem; }
    .stats { display: flex; gap: 1.5rem; margin: 1.5rem 0; }
    .stat { background: #f5f5f5; padding: 0.75rem 1rem; border-radius: 4px; }
    .stat .num { font-size: 1.4em; font-weight: bold; display: block; }
    table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; font-size: 0.9em; }
    th { background: #f0f0f0; }
    .status { text-transform: capitalize; }
    .overdue { color: #b00020; }
  </style>
</head>
<body>
  <h1>{{.WorkspaceName}}</h1>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <div class="meta">Generated {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}</div>

  <div class="stats">
    <div class="stat"><span class="num">{{.CompletedProjects}}/{{.TotalProjects}}</span> projects completed</div>
    <div class="stat"><span class="num">{{.CompletedTasks}}/{{.TotalTasks}}</span> tasks completed</div>
    <div class="stat"><span class="num">{{.OverdueTasks}}</span> overdue tasks</div>
    <div class="stat"><span class="num">{{printf "%.1f" .TotalHoursTracked}}</span> hours tracked</div>
  </div>

  <h2>Projects</h2>
  {{if .Projects}}
  <table>
    <tr><th>Name</th><th>Status</th><th>Priority</th><th>Progress</th><th>Deadline</th></tr>
    {{range .Projects}}
    <tr>
      <td>{{.Name}}</td>
      <td class="status">{{.Status}}</td>
      <td class="status">{{.Priority}}</td>
      <td>{{.Progress}}%</td>
      <td>{{if .Deadline}}{{formatDate .Deadline.Local "Jan 2, 2006"}}{{else}}&mdash;{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{else}}
  <p>No projects yet.</p>
  {{end}}

  {{if .Overdue}}
  <h2 class="overdue">Overdue Tasks</h2>
  <table>
    <tr><th>Title</th><th>Status</th><th>Priority</th><th>Assignee</th><th>Deadline</th></tr>
    {{range .Overdue}}
    <tr>
      <td>{{.Title}}</td>
      <td class="status">{{.Status}}</td>
      <td class="status">{{.Priority}}</td>
      <td>{{.AssignedTo}}</td>
      <td class="overdue">{{if .Deadline}}{{formatDate .Deadline.Local "Jan 2, 2006"}}{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</body>
</html>`
