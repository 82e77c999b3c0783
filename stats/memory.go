package stats

import (
	"context"
	"sort"
	"sync"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a thread-safe in-memory document store for tests and
// development.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[int]*TenantStats
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[int]*TenantStats)}
}

// Get returns one tenant's document, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, tenantID int) (*TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

// GetAll returns every document in tenant order.
func (s *MemoryStore) GetAll(_ context.Context) ([]*TenantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*TenantStats, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, copyDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// Put writes or replaces one tenant's document.
func (s *MemoryStore) Put(_ context.Context, doc *TenantStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.TenantID] = copyDoc(doc)
	return nil
}

func copyDoc(doc *TenantStats) *TenantStats {
	c := *doc
	c.Booths = make([]BoothStats, len(doc.Booths))
	copy(c.Booths, doc.Booths)
	return &c
}
