// Package search finds workspace entities by substring match. Meilisearch
// serves queries when configured and healthy; the SQL backend is always
// available as a fallback.
package search

// Result types mirror the entity collections that carry searchable text.
const (
	ResultProject = "project"
	ResultTask    = "task"
	ResultNote    = "note"
	ResultComment = "comment"
)

type Query struct {
	Text        string
	WorkspaceID string
	Types       []string
	Limit       int
}

type Result struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet,omitempty"`
	WorkspaceID string `json:"workspace_id"`
}

// Response groups results by entity type, per the API contract.
type Response struct {
	Query   string              `json:"query"`
	Results map[string][]Result `json:"results"`
	Total   int                 `json:"total"`
}

func wantsType(q Query, resultType string) bool {
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if t == resultType {
			return true
		}
	}
	return false
}

func groupByType(results []Result) map[string][]Result {
	grouped := map[string][]Result{
		ResultProject: {},
		ResultTask:    {},
		ResultNote:    {},
		ResultComment: {},
	}
	for _, r := range results {
		grouped[r.Type] = append(grouped[r.Type], r)
	}
	return grouped
}

// Record is the indexable form of an entity pushed to Meilisearch.
type Record struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}
