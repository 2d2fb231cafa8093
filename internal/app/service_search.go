package app

import (
	"context"
	"strings"

	"planhub/api/internal/search"
)

// Search runs a workspace-scoped substring query. types is the raw comma
// separated filter from the query string.
func (s *Service) Search(ctx context.Context, session Session, q, workspaceID, types string, limit int) (search.Response, error) {
	if _, _, err := s.memberRole(ctx, workspaceID, session.UserID); err != nil {
		return search.Response{}, err
	}
	if s.search == nil {
		return search.Response{}, domainError(503, "UNAVAILABLE", "Search is not configured", nil)
	}

	var typeFilter []string
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			typeFilter = append(typeFilter, t)
		}
	}

	return s.search.Search(ctx, search.Query{
		Text:        q,
		WorkspaceID: workspaceID,
		Types:       typeFilter,
		Limit:       limit,
	}), nil
}
