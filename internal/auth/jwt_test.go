package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundtrip(t *testing.T) {
	m := NewManager("secret", time.Hour, 24*time.Hour, time.Hour)

	access, err := m.IssueAccess("user-1", "app-1", "sess-1")
	require.NoError(t, err)
	claims, err := m.Verify(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Equal(t, "app-1", claims.AppID)
	assert.Equal(t, "sess-1", claims.SessionID)

	refresh, err := m.IssueRefresh("user-1", "app-1", "sess-1")
	require.NoError(t, err)
	claims, err = m.Verify(refresh)
	require.NoError(t, err)
	assert.Equal(t, KindRefresh, claims.Kind)

	admin, err := m.IssueAdmin("admin-1")
	require.NoError(t, err)
	claims, err = m.Verify(admin)
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, claims.Kind)
	assert.Equal(t, "admin-1", claims.Subject)
	assert.Empty(t, claims.SessionID)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := NewManager("secret", time.Hour, time.Hour, time.Hour)
	other := NewManager("different", time.Hour, time.Hour, time.Hour)

	token, err := m.IssueAccess("user-1", "app-1", "sess-1")
	require.NoError(t, err)
	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewManager("secret", -time.Minute, time.Hour, time.Hour)
	token, err := m.IssueAccess("user-1", "app-1", "sess-1")
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	m := NewManager("secret", time.Hour, time.Hour, time.Hour)
	token, err := m.IssueAccess("user-1", "app-1", "sess-1")
	require.NoError(t, err)
	_, err = m.Verify(token[:len(token)-2] + "xx")
	assert.Error(t, err)
	_, err = m.Verify("not.a.token")
	assert.Error(t, err)
}
