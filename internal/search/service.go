package search

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili *Meili
	sql   *SQLSearch
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, sql *SQLSearch) *Service {
	return &Service{meili: meili, sql: sql}
}

// Search tries Meilisearch if healthy, otherwise falls back to the SQL
// backend. Either way the results come back grouped by entity type.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.Search(q)
		if err == nil {
			return Response{Query: q.Text, Results: groupByType(results), Total: len(results)}
		}
		log.Warn().Err(err).Msg("search: meilisearch error, falling back to sql")
	}

	results, err := s.sql.Search(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("search: sql backend error")
		return Response{Query: q.Text, Results: groupByType(nil), Total: 0}
	}
	return Response{Query: q.Text, Results: groupByType(results), Total: len(results)}
}

// Index pushes an entity record to Meilisearch, fire-and-forget. The SQL
// backend reads the primary store directly so it needs no updates.
func (s *Service) Index(rec Record) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexRecord(rec); err != nil {
			log.Warn().Err(err).Str("id", rec.ID).Msg("search: index record")
		}
	}()
}

// Delete removes an entity from Meilisearch, fire-and-forget.
func (s *Service) Delete(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteRecord(id); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("search: delete record")
		}
	}()
}

// Close releases the Meilisearch health monitor if one is running.
func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}
