package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidCredentialIsUnauthenticated(t *testing.T) {
	require.ErrorIs(t, ErrInvalidCredential, ErrUnauthenticated)
	require.False(t, errors.Is(ErrUnauthenticated, ErrInvalidCredential))
}

func TestInfraKeepsVocabularyErrors(t *testing.T) {
	denied := Denied("tenant %s", "7")
	require.Same(t, denied, Infra(denied))
	require.NoError(t, Infra(nil))

	wrapped := Infra(errors.New("connection reset"))
	require.ErrorIs(t, wrapped, ErrInfrastructure)
	require.NotErrorIs(t, wrapped, ErrAccessDenied)
	require.False(t, Retryable(wrapped))
}

func TestInfraDeadlineIsRetryable(t *testing.T) {
	err := Infra(fmt.Errorf("query: %w", context.DeadlineExceeded))
	require.ErrorIs(t, err, ErrInfrastructure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, Retryable(err))
}

func TestApprovalRequiredIsKnown(t *testing.T) {
	err := fmt.Errorf("delete: %w", &ApprovalRequiredError{RequestID: "r1", Action: "delete_principal", Threshold: 4})
	var target *ApprovalRequiredError
	require.ErrorAs(t, err, &target)
	require.Equal(t, "r1", target.RequestID)
	require.True(t, IsKnown(err))
}
