package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviegen/forge/internal/schemas"
)

func TestPrincipalManager_IssueThenVerifyRoundTrips(t *testing.T) {
	m := NewPrincipalManager("test-secret", time.Hour)

	token, err := m.Issue("user-1", "user@example.com", "editor")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	p, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, "user@example.com", p.Email)
	assert.Equal(t, "editor", p.Role)
}

func TestPrincipalManager_VerifyExpiredTokenFails(t *testing.T) {
	m := NewPrincipalManager("test-secret", time.Millisecond)

	token, err := m.Issue("user-1", "user@example.com", "editor")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
}

func TestPrincipalManager_VerifyWrongSecretFails(t *testing.T) {
	m := NewPrincipalManager("test-secret", time.Hour)
	other := NewPrincipalManager("other-secret", time.Hour)

	token, err := other.Issue("user-1", "user@example.com", "editor")
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
}

func TestPrincipalManager_VerifyMalformedTokenFails(t *testing.T) {
	m := NewPrincipalManager("test-secret", time.Hour)

	_, err := m.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
}

func TestPrincipal_EditSourceMapsWorkflowRole(t *testing.T) {
	p := &Principal{UserID: "bot-1", Role: "workflow"}
	assert.Equal(t, schemas.EditedByWorkflow, p.EditSource())
}

func TestPrincipal_EditSourceDefaultsOtherRolesToUser(t *testing.T) {
	p := &Principal{UserID: "user-1", Role: "editor"}
	assert.Equal(t, schemas.EditedByUser, p.EditSource())
}

func TestPrincipalManager_Refresh(t *testing.T) {
	m := NewPrincipalManager("test-secret", time.Hour)

	token, err := m.Issue("user-1", "user@example.com", "editor")
	require.NoError(t, err)

	refreshed, err := m.Refresh(token)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed)

	p, err := m.Verify(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.UserID)
}
