package audit

import (
	"context"
	"maps"
	"sync"

	"hostelhub.org/internal/apperr"
)

// MemoryStore is an in-process append-only Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Append(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return apperr.Infra(err)
	}
	cp := *r
	cp.Details = maps.Clone(r.Details)
	m.mu.Lock()
	m.records = append(m.records, cp)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0)
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if !q.Filter.Matches(r.TenantID) {
			continue
		}
		if (q.ActorID != "" && r.ActorID != q.ActorID) || (q.Action != "" && r.Action != q.Action) {
			continue
		}
		r.Details = maps.Clone(r.Details)
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
