package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gouauth/internal/apperr"
	"gouauth/internal/crypto"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

func TestCheckAndBindFirstUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, nil)

	err := f.hwid.CheckAndBind(ctx, user, "machine-a", true, "first login")
	require.NoError(t, err)
	assert.Equal(t, crypto.HashHwid("machine-a"), user.Hwid)

	stored, err := f.st.Users().ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, crypto.HashHwid("machine-a"), stored.Hwid)

	logs, err := f.st.Logs().Hwids(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "first login", logs[0].Reason)
	assert.Nil(t, logs[0].OldHwid)
}

func TestCheckAndBindMatchAndMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, func(u *models.User) { u.Hwid = crypto.HashHwid("machine-a") })

	assert.NoError(t, f.hwid.CheckAndBind(ctx, user, "machine-a", true, "login"))

	err := f.hwid.CheckAndBind(ctx, user, "machine-b", true, "login")
	assert.True(t, apperr.IsCode(err, CodeHwidMismatch))
}

func TestCheckAndBindSkips(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, func(u *models.User) { u.Hwid = crypto.HashHwid("machine-a") })

	// Lock disabled, or no hwid presented: nothing happens.
	assert.NoError(t, f.hwid.CheckAndBind(ctx, user, "machine-b", false, "login"))
	assert.NoError(t, f.hwid.CheckAndBind(ctx, user, "", true, "login"))
}

func TestAdminReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, func(u *models.User) { u.Hwid = crypto.HashHwid("machine-a") })

	bundle, err := f.sessions.Create(ctx, user.ID, app.ID, user.Hwid, "")
	require.NoError(t, err)

	old, err := f.hwid.AdminReset(ctx, user.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, crypto.HashHwid("machine-a"), old)

	stored, err := f.st.Users().ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Hwid)

	// Losing the binding also loses the session.
	_, err = f.st.Sessions().ByID(ctx, bundle.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	logs, err := f.st.Logs().Hwids(ctx, user.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "RESET", logs[0].NewHwid)
	require.NotNil(t, logs[0].ResetBy)
	assert.Equal(t, "admin-1", *logs[0].ResetBy)
	require.NotNil(t, logs[0].OldHwid)
	assert.Equal(t, old, *logs[0].OldHwid)
}

func TestAdminResetUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.hwid.AdminReset(context.Background(), "missing", "admin-1")
	assert.True(t, apperr.IsCode(err, CodeUserNotFound))
}
