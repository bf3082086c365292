package search

import (
	"log/slog"

	"coachcatalog/api/internal/catalog"
)

// Backend is a search index that can also be written to.
type Backend interface {
	Searcher
	Indexer
}

// Service is the facade that tries the index first and falls back to
// matching over the caller's current item list.
type Service struct {
	index  Backend
	logger *slog.Logger
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(index Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger.With("component", "search")}
	// a typed nil *Meili must not count as configured
	if m, ok := index.(*Meili); !ok || m != nil {
		s.index = index
	}
	return s
}

func (s *Service) available() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the index if healthy, otherwise searches snapshot locally.
// The local path also covers rows that were never persisted.
func (s *Service) Search(q Query, snapshot []catalog.Item) Response {
	if s.available() && q.CoachID != "" {
		results, total, err := s.index.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "index"}
		}
		s.logger.Warn("index search failed, falling back to local", "error", err)
	}
	results, total := Local(snapshot, q)
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "local"}
}

// Index pushes the persisted rows of items to the index (fire-and-forget).
func (s *Service) Index(coachID string, items []catalog.Item) {
	if !s.available() {
		return
	}
	go s.sync(coachID, items, nil)
}

// Remove deletes items from the index (fire-and-forget).
func (s *Service) Remove(ids []int64) {
	if !s.available() || len(ids) == 0 {
		return
	}
	go s.sync("", nil, ids)
}

func (s *Service) sync(coachID string, items []catalog.Item, removed []int64) {
	records := make([]ItemRecord, 0, len(items))
	for _, it := range items {
		if rec, ok := RecordOf(coachID, it); ok {
			records = append(records, rec)
		}
	}
	if err := s.index.IndexItems(records); err != nil {
		s.logger.Warn("index items", "count", len(records), "error", err)
	}
	if len(removed) > 0 {
		if err := s.index.DeleteItems(removed); err != nil {
			s.logger.Warn("delete items from index", "count", len(removed), "error", err)
		}
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
