package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLSearch implements substring search with ILIKE over the primary store.
// No ranking: results come back in recency order per entity type.
type SQLSearch struct {
	db *sql.DB
}

func NewSQLSearch(db *sql.DB) *SQLSearch {
	return &SQLSearch{db: db}
}

// Healthy always returns true; if Postgres is down the whole API is down.
func (s *SQLSearch) Healthy() bool {
	return true
}

func (s *SQLSearch) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return []Result{}, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(q.Text) + "%"

	var subQueries []string
	if wantsType(q, ResultProject) {
		subQueries = append(subQueries, `
			SELECT 'project'::text AS type, id, name AS title, LEFT(description, 200) AS snippet, workspace_id, created_at
			FROM projects
			WHERE workspace_id = $1 AND (name ILIKE $2 OR description ILIKE $2)`)
	}
	if wantsType(q, ResultTask) {
		subQueries = append(subQueries, `
			SELECT 'task'::text AS type, id, title, LEFT(description, 200) AS snippet, workspace_id, created_at
			FROM tasks
			WHERE workspace_id = $1 AND (title ILIKE $2 OR description ILIKE $2)`)
	}
	if wantsType(q, ResultNote) {
		subQueries = append(subQueries, `
			SELECT 'note'::text AS type, id, title, LEFT(content, 200) AS snippet, workspace_id, created_at
			FROM notes
			WHERE workspace_id = $1 AND (title ILIKE $2 OR content ILIKE $2)`)
	}
	if wantsType(q, ResultComment) {
		subQueries = append(subQueries, `
			SELECT 'comment'::text AS type, id, LEFT(content, 80) AS title, LEFT(content, 200) AS snippet, workspace_id, created_at
			FROM comments
			WHERE workspace_id = $1 AND content ILIKE $2`)
	}
	if len(subQueries) == 0 {
		return []Result{}, nil
	}

	query := strings.Join(subQueries, "\nUNION ALL\n") + fmt.Sprintf("\nORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.db.QueryContext(ctx, query, q.WorkspaceID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		var createdAt any
		if err := rows.Scan(&r.Type, &r.ID, &r.Title, &r.Snippet, &r.WorkspaceID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters so user input stays a literal
// substring.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
