package ids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	require.Len(t, prev, 26)
	for i := 0; i < 1000; i++ {
		next := New()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestNewJTIIsUUID(t *testing.T) {
	a, b := NewJTI(), NewJTI()
	require.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}
