package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gouauth/internal/apperr"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

func TestAdmitBelowCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Create(ctx, "user-1", "app-1", "", "")
	require.NoError(t, err)
	require.NoError(t, f.sessions.Admit(ctx, "user-1", 3))

	count, err := f.st.Sessions().CountActive(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestAdmitEvictsOldest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sessions.Create(ctx, "user-1", "app-1", "", "")
	require.NoError(t, err)
	second, err := f.sessions.Create(ctx, "user-1", "app-1", "", "")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Admit(ctx, "user-1", 2))

	_, err = f.st.Sessions().ByID(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.st.Sessions().ByID(ctx, second.ID)
	assert.NoError(t, err)
}

func TestAdmitTreatsZeroCeilingAsOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.sessions.Create(ctx, "user-1", "app-1", "", "")
	require.NoError(t, err)
	require.NoError(t, f.sessions.Admit(ctx, "user-1", 0))

	_, err = f.st.Sessions().ByID(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateExpiredSessionIsRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.st.Sessions().Create(ctx, &models.Session{
		ID:        "sess-1",
		UserID:    "user-1",
		AppID:     "app-1",
		Token:     "tok",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := f.sessions.Validate(ctx, "sess-1")
	assert.True(t, apperr.IsCode(err, CodeSessionExpired))

	_, err = f.st.Sessions().ByID(ctx, "sess-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestValidateUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.sessions.Validate(context.Background(), "nope")
	assert.True(t, apperr.IsCode(err, CodeSessionNotFound))
}

func TestCreateIssuesDistinctTokens(t *testing.T) {
	f := newFixture(t)
	bundle, err := f.sessions.Create(context.Background(), "user-1", "app-1", "hwid-hash", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, bundle.AccessToken)
	assert.NotEmpty(t, bundle.RefreshToken)
	assert.NotEqual(t, bundle.AccessToken, bundle.RefreshToken)

	claims, err := f.tokens.Verify(bundle.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, bundle.ID, claims.SessionID)
}
