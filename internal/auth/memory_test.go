package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostelhub.org/internal/apperr"
)

func TestMemoryPrincipalUniqueness(t *testing.T) {
	store := NewMemoryPrincipalStore()
	ctx := context.Background()

	a := Principal{Email: "a@example.com", Phone: "+1 (555) 010-0000", Role: RoleMember, Active: true}
	require.NoError(t, store.Create(ctx, &a))
	assert.Equal(t, "+15550100000", a.Phone)

	dupEmail := Principal{Email: "A@example.com", Role: RoleMember}
	require.ErrorIs(t, store.Create(ctx, &dupEmail), apperr.ErrConflict)

	dupPhone := Principal{Phone: "+15550100000", Role: RoleMember}
	require.ErrorIs(t, store.Create(ctx, &dupPhone), apperr.ErrConflict)

	require.ErrorIs(t, store.Create(ctx, &Principal{Role: RoleMember}), apperr.ErrInvalidRequest)

	found, err := store.FindByIdentifier(ctx, "+1 555 010 0000")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
}

func TestMemoryFindByIdentifierKeepsEmailAndPhoneApart(t *testing.T) {
	store := NewMemoryPrincipalStore()
	ctx := context.Background()

	byEmail := Principal{Email: "15551234567@sms.example", Role: RoleMember, Active: true}
	require.NoError(t, store.Create(ctx, &byEmail))
	byPhone := Principal{Phone: "15551234567", Role: RoleMember, Active: true}
	require.NoError(t, store.Create(ctx, &byPhone))

	for i := 0; i < 50; i++ {
		found, err := store.FindByIdentifier(ctx, "15551234567@sms.example")
		require.NoError(t, err)
		require.Equal(t, byEmail.ID, found.ID)

		found, err = store.FindByIdentifier(ctx, "1-555-123-4567")
		require.NoError(t, err)
		require.Equal(t, byPhone.ID, found.ID)
	}
}

func TestParseIdentifier(t *testing.T) {
	kind, value := ParseIdentifier(" Warden@Hostel.TEST ")
	assert.Equal(t, IdentifierEmail, kind)
	assert.Equal(t, "warden@hostel.test", value)

	kind, value = ParseIdentifier("+1 (555) 010-0000")
	assert.Equal(t, IdentifierPhone, kind)
	assert.Equal(t, "+15550100000", value)
}

func TestMemoryPrincipalAnonymizeFreesIdentifiers(t *testing.T) {
	store := NewMemoryPrincipalStore()
	ctx := context.Background()

	a := Principal{Email: "gone@example.com", Role: RoleGuest, Active: true, PasswordHash: "x"}
	require.NoError(t, store.Create(ctx, &a))
	require.NoError(t, store.Anonymize(ctx, a.ID, time.Now()))

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.False(t, got.Active)
	assert.Empty(t, got.PasswordHash)
	assert.NotEqual(t, "gone@example.com", got.Email)

	_, err = store.FindByIdentifier(ctx, "gone@example.com")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	again := Principal{Email: "gone@example.com", Role: RoleGuest}
	require.NoError(t, store.Create(ctx, &again))
	require.ErrorIs(t, store.Anonymize(ctx, a.ID, time.Now()), apperr.ErrNotFound)
}

func TestMemoryListByHomeTenant(t *testing.T) {
	store := NewMemoryPrincipalStore()
	ctx := context.Background()
	for i, tenant := range []string{"t1", "t2", "t1", ""} {
		p := Principal{Email: string(rune('a'+i)) + "@example.com", Role: RoleMember, HomeTenantID: tenant}
		require.NoError(t, store.Create(ctx, &p))
	}
	all, err := store.ListByHomeTenant(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	t1, err := store.ListByHomeTenant(ctx, []string{"t1"})
	require.NoError(t, err)
	assert.Len(t, t1, 2)
}
