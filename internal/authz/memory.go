package authz

import (
	"context"
	"sort"
	"sync"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/ids"
	"hostelhub.org/internal/tenancy"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]Request
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Request)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(_ context.Context, r *Request) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[r.ID]; ok {
		return apperr.ErrConflict
	}
	m.byID[r.ID] = *r
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return Request{}, apperr.NotFound("approval request")
	}
	return r, nil
}

func (m *MemoryStore) Transition(_ context.Context, id string, to Status, actorID, notes string, at time.Time) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return Request{}, apperr.NotFound("approval request")
	}
	if r.Status != StatusPending {
		return Request{}, apperr.Precondition("request is %s", r.Status)
	}
	r.Status = to
	r.ApproverID = actorID
	r.Notes = notes
	r.DecidedAt = &at
	m.byID[id] = r
	return r, nil
}

func (m *MemoryStore) ConsumeApproved(_ context.Context, requesterID, action, resourceType, resourceID string, at time.Time) (Request, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		best  Request
		found bool
	)
	for _, r := range m.byID {
		if r.RequesterID != requesterID || r.Action != action || r.ResourceType != resourceType ||
			r.ResourceID != resourceID || r.Status != StatusApproved || r.ConsumedAt != nil {
			continue
		}
		if !found || r.CreatedAt.Before(best.CreatedAt) {
			best, found = r, true
		}
	}
	if !found {
		return Request{}, false, nil
	}
	best.ConsumedAt = &at
	m.byID[best.ID] = best
	return best, true, nil
}

func (m *MemoryStore) ListPending(_ context.Context, maxThreshold int, f tenancy.Filter) ([]Request, error) {
	m.mu.Lock()
	var out []Request
	for _, r := range m.byID {
		if r.Status != StatusPending || r.ThresholdLevel > maxThreshold {
			continue
		}
		if r.TenantID != "" && !f.Matches(r.TenantID) {
			continue
		}
		out = append(out, r)
	}
	m.mu.Unlock()
	sortRequests(out)
	return out, nil
}

func (m *MemoryStore) ListByRequester(_ context.Context, requesterID string, status Status) ([]Request, error) {
	m.mu.Lock()
	var out []Request
	for _, r := range m.byID {
		if r.RequesterID == requesterID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	m.mu.Unlock()
	sortRequests(out)
	return out, nil
}

func sortRequests(rs []Request) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
