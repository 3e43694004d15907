package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"hostelhub.org/internal/apperr"
	"hostelhub.org/internal/ids"
)

// MemoryPrincipalStore is an in-process PrincipalStore.
type MemoryPrincipalStore struct {
	mu   sync.RWMutex
	byID map[string]Principal
	now  func() time.Time
}

// NewMemoryPrincipalStore returns an empty store.
func NewMemoryPrincipalStore() *MemoryPrincipalStore {
	return &MemoryPrincipalStore{byID: make(map[string]Principal), now: time.Now}
}

var _ PrincipalStore = (*MemoryPrincipalStore)(nil)

func (s *MemoryPrincipalStore) Create(_ context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	p.Email = NormalizeEmail(p.Email)
	p.Phone = NormalizePhone(p.Phone)
	if p.Email == "" && p.Phone == "" {
		return apperr.Invalid("principal needs an email or phone")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; ok {
		return apperr.ErrConflict
	}
	for _, other := range s.byID {
		if (p.Email != "" && other.Email == p.Email) || (p.Phone != "" && other.Phone == p.Phone) {
			return apperr.ErrConflict
		}
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.byID[p.ID] = *p
	return nil
}

func (s *MemoryPrincipalStore) Get(_ context.Context, id string) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return Principal{}, apperr.NotFound("principal")
	}
	return p, nil
}

func (s *MemoryPrincipalStore) FindByIdentifier(_ context.Context, identifier string) (Principal, error) {
	kind, value := ParseIdentifier(identifier)
	if value == "" {
		return Principal{}, apperr.NotFound("principal")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if p.Deleted() {
			continue
		}
		if (kind == IdentifierEmail && p.Email == value) || (kind == IdentifierPhone && p.Phone == value) {
			return p, nil
		}
	}
	return Principal{}, apperr.NotFound("principal")
}

func (s *MemoryPrincipalStore) ListByHomeTenant(_ context.Context, tenantIDs []string) ([]Principal, error) {
	want := make(map[string]struct{}, len(tenantIDs))
	for _, id := range tenantIDs {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	out := make([]Principal, 0, len(s.byID))
	for _, p := range s.byID {
		if len(want) > 0 {
			if _, ok := want[p.HomeTenantID]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryPrincipalStore) Anonymize(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.Deleted() {
		return apperr.NotFound("principal")
	}
	at = at.UTC()
	p.Email = anonymizedEmail(id)
	p.Phone = ""
	p.DisplayName = "deleted principal"
	p.PasswordHash = ""
	p.Active = false
	p.DeletedAt = &at
	p.UpdatedAt = at
	s.byID[id] = p
	return nil
}

// MemoryRefreshTokenStore is an in-process RefreshTokenStore.
type MemoryRefreshTokenStore struct {
	mu      sync.Mutex
	byToken map[string]RefreshToken
}

// NewMemoryRefreshTokenStore returns an empty store.
func NewMemoryRefreshTokenStore() *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{byToken: make(map[string]RefreshToken)}
}

var _ RefreshTokenStore = (*MemoryRefreshTokenStore)(nil)

func (s *MemoryRefreshTokenStore) Create(_ context.Context, rec RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[rec.Token]; ok {
		return apperr.ErrConflict
	}
	s.byToken[rec.Token] = rec
	return nil
}

func (s *MemoryRefreshTokenStore) Find(_ context.Context, token string) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byToken[token]
	if !ok {
		return RefreshToken{}, apperr.NotFound("refresh token")
	}
	return rec, nil
}

func (s *MemoryRefreshTokenStore) Consume(_ context.Context, token string, now time.Time) (RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byToken[token]
	if !ok || !rec.Usable(now) {
		return RefreshToken{}, apperr.ErrInvalidCredential
	}
	rec.Revoked = true
	s.byToken[token] = rec
	return rec, nil
}

func (s *MemoryRefreshTokenStore) Revoke(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byToken[token]
	if !ok {
		return false, nil
	}
	rec.Revoked = true
	s.byToken[token] = rec
	return true, nil
}

func (s *MemoryRefreshTokenStore) RevokeAll(_ context.Context, principalID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, rec := range s.byToken {
		if rec.PrincipalID == principalID && !rec.Revoked {
			rec.Revoked = true
			s.byToken[tok] = rec
			n++
		}
	}
	return n, nil
}

func (s *MemoryRefreshTokenStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for tok, rec := range s.byToken {
		if !now.Before(rec.ExpiresAt) {
			delete(s.byToken, tok)
			n++
		}
	}
	return n, nil
}
