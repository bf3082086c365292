package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"coachcatalog/api/internal/catalog"
)

// MemoryDraftStore keeps drafts in process. Used when no Redis is configured
// and in tests. Rows are stored encoded so callers never share memory.
type MemoryDraftStore struct {
	mu     sync.RWMutex
	drafts map[string][]byte
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{drafts: make(map[string][]byte)}
}

func (s *MemoryDraftStore) Save(_ context.Context, draftKey string, items []catalog.Item) error {
	if items == nil {
		items = []catalog.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	s.mu.Lock()
	s.drafts[draftKey] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryDraftStore) Load(_ context.Context, draftKey string) ([]catalog.Item, bool, error) {
	s.mu.RLock()
	data, ok := s.drafts[draftKey]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var items []catalog.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("unmarshal draft: %w", err)
	}
	return items, true, nil
}

func (s *MemoryDraftStore) Reset(_ context.Context, draftKey string) error {
	s.mu.Lock()
	delete(s.drafts, draftKey)
	s.mu.Unlock()
	return nil
}
