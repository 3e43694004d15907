package tenancy

import (
	"context"
	"sort"
	"sync"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/ids"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu          sync.Mutex
	tenants     map[string]Tenant
	assignments map[string]map[string]time.Time
	sessions    map[string][]Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:     make(map[string]Tenant),
		assignments: make(map[string]map[string]time.Time),
		sessions:    make(map[string][]Session),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreateTenant(_ context.Context, t *Tenant) error {
	if t.Name == "" {
		return apperr.Invalid("tenant name is required")
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return apperr.ErrConflict
	}
	m.tenants[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, apperr.NotFound("tenant")
	}
	return t, nil
}

func (m *MemoryStore) ListTenants(_ context.Context) ([]Tenant, error) {
	m.mu.Lock()
	out := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	m.mu.Unlock()
	sortTenants(out)
	return out, nil
}

func (m *MemoryStore) ListTenantsByID(_ context.Context, tenantIDs []string) ([]Tenant, error) {
	m.mu.Lock()
	out := make([]Tenant, 0, len(tenantIDs))
	seen := make(map[string]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := m.tenants[id]; ok {
			out = append(out, t)
		}
	}
	m.mu.Unlock()
	sortTenants(out)
	return out, nil
}

func (m *MemoryStore) SetTenantActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return apperr.NotFound("tenant")
	}
	t.Active = active
	m.tenants[id] = t
	return nil
}

func (m *MemoryStore) Assign(_ context.Context, principalID, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[tenantID]; !ok {
		return apperr.NotFound("tenant")
	}
	set, ok := m.assignments[principalID]
	if !ok {
		set = make(map[string]time.Time)
		m.assignments[principalID] = set
	}
	if _, ok := set[tenantID]; !ok {
		set[tenantID] = time.Now().UTC()
	}
	return nil
}

func (m *MemoryStore) Unassign(_ context.Context, principalID, tenantID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.assignments[principalID]
	if _, ok := set[tenantID]; !ok {
		return false, nil
	}
	delete(set, tenantID)
	return true, nil
}

func (m *MemoryStore) TenantIDsFor(_ context.Context, principalID string) ([]string, error) {
	m.mu.Lock()
	set := m.assignments[principalID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ActiveSession(_ context.Context, principalID string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions[principalID] {
		if s.Active {
			return s, true, nil
		}
	}
	return Session{}, false, nil
}

func (m *MemoryStore) Activate(_ context.Context, principalID, tenantID string, at time.Time) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sessions[principalID]
	idx := -1
	for i := range list {
		if list[i].TenantID == tenantID {
			idx = i
			continue
		}
		if list[i].Active {
			list[i].Active = false
			list[i].UpdatedAt = at
		}
	}
	if idx < 0 {
		list = append(list, Session{ID: ids.New(), PrincipalID: principalID, TenantID: tenantID})
		idx = len(list) - 1
	}
	if !list[idx].Active {
		list[idx].Active = true
		list[idx].UpdatedAt = at
	}
	m.sessions[principalID] = list
	return list[idx], nil
}

func (m *MemoryStore) Deactivate(_ context.Context, principalID, sessionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sessions[principalID]
	for i := range list {
		if !list[i].Active || (sessionID != "" && list[i].ID != sessionID) {
			continue
		}
		list[i].Active = false
		list[i].UpdatedAt = at
		return true, nil
	}
	return false, nil
}

func sortTenants(ts []Tenant) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })
}
