package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/foundry-sub005/internal/apperrors"
	"github.com/iota-uz/foundry-sub005/internal/token"
)

func TestIssueAndVerify(t *testing.T) {
	signer := token.NewSigner([]byte("test-secret"))

	raw, expiresAt, err := signer.Issue("exec-a", "wf-1", time.Minute)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)

	claims, err := signer.Verify(raw, "exec-a")
	require.NoError(t, err)
	require.Equal(t, "exec-a", claims.ExecutionID)
	require.Equal(t, "wf-1", claims.WorkflowID)
}

func TestVerifyRejectsScopeMismatch(t *testing.T) {
	signer := token.NewSigner([]byte("test-secret"))
	raw, _, err := signer.Issue("exec-a", "wf-1", time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(raw, "exec-b")
	require.Error(t, err)
	require.Equal(t, apperrors.KindUnauthorizedWebhook, apperrors.KindOf(err))
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := token.NewSigner([]byte("test-secret"))
	other := token.NewSigner([]byte("other-secret"))
	raw, _, err := signer.Issue("exec-a", "wf-1", time.Minute)
	require.NoError(t, err)

	_, err = other.Verify(raw, "exec-a")
	require.Error(t, err)
	require.Equal(t, apperrors.KindUnauthorizedWebhook, apperrors.KindOf(err))
}

func TestIssueClampsLifetime(t *testing.T) {
	signer := token.NewSigner([]byte("test-secret"))
	_, expiresAt, err := signer.Issue("exec-a", "wf-1", 10*time.Hour)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(token.MaxLifetime), expiresAt, 2*time.Second)
}

func TestRevocations(t *testing.T) {
	r := token.NewRevocations()
	require.False(t, r.IsRevoked("exec-a"))
	r.Revoke("exec-a")
	require.True(t, r.IsRevoked("exec-a"))
	require.False(t, r.IsRevoked("exec-b"))
}
