package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"
)

const idxEntities = "planhub_entities"

// Meili serves search queries and receives index updates via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the entity index.
// The client starts unhealthy if the initial connection fails; the health
// loop keeps probing and reconfigures on recovery.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxEntities,
		PrimaryKey: "id",
	}); err != nil {
		log.Warn().Err(err).Str("index", idxEntities).Msg("search: create index (may already exist)")
	}

	index := m.client.Index(idxEntities)
	filterable := []interface{}{"workspaceId", "type"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Warn().Err(err).Msg("search: update filterable attrs")
	}
	searchable := []string{"title", "body"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Warn().Err(err).Msg("search: update searchable attrs")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info().Msg("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the entity index scoped to one workspace.
func (m *Meili) Search(q Query) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	filters := []string{fmt.Sprintf("workspaceId = %q", q.WorkspaceID)}
	if len(q.Types) > 0 {
		var typeFilters []string
		for _, t := range q.Types {
			typeFilters = append(typeFilters, fmt.Sprintf("type = %q", t))
		}
		filters = append(filters, "("+strings.Join(typeFilters, " OR ")+")")
	}

	resp, err := m.client.Index(idxEntities).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Filter: filters,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		Type:        decodeString(hit, "type"),
		ID:          decodeString(hit, "id"),
		Title:       decodeString(hit, "title"),
		WorkspaceID: decodeString(hit, "workspaceId"),
	}
	if body := decodeString(hit, "body"); body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		r.Snippet = body
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexRecord adds or updates an entity in the search index.
func (m *Meili) IndexRecord(rec Record) error {
	_, err := m.client.Index(idxEntities).AddDocuments([]Record{rec}, nil)
	return err
}

// DeleteRecord removes an entity from the search index.
func (m *Meili) DeleteRecord(id string) error {
	_, err := m.client.Index(idxEntities).DeleteDocument(id, nil)
	return err
}
