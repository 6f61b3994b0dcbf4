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

func TestBanDestroysSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, nil)
	bundle, err := f.sessions.Create(ctx, user.ID, app.ID, "", "")
	require.NoError(t, err)

	require.NoError(t, f.users.Ban(ctx, user.ID, ""))

	got, err := f.st.Users().ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBanned)
	assert.Equal(t, "Banned by admin", got.BanReason)

	_, err = f.st.Sessions().ByID(ctx, bundle.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnban(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	user := f.createUser(t, app.ID, func(u *models.User) {
		u.IsBanned = true
		u.BanReason = "cheating"
	})

	require.NoError(t, f.users.Unban(ctx, user.ID))
	got, err := f.st.Users().ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBanned)
	assert.Empty(t, got.BanReason)
}

func TestExtendSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)

	// Never-activated account: extension counts from now.
	fresh := f.createUser(t, app.ID, func(u *models.User) { u.ExpiresAt = nil })
	next, err := f.users.ExtendSubscription(ctx, fresh.ID, 7)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *next, time.Minute)

	// Active subscription: extension stacks on the current expiry.
	current := time.Now().Add(10 * 24 * time.Hour)
	active := f.createUser(t, app.ID, func(u *models.User) {
		u.Username = "active"
		u.ExpiresAt = &current
	})
	next, err = f.users.ExtendSubscription(ctx, active.ID, 7)
	require.NoError(t, err)
	assert.WithinDuration(t, current.Add(7*24*time.Hour), *next, time.Second)

	// Lapsed subscription: extension counts from now, not the old expiry.
	lapsed := f.createUser(t, app.ID, func(u *models.User) {
		u.Username = "lapsed"
		u.ExpiresAt = timep(time.Now().Add(-30 * 24 * time.Hour))
	})
	next, err = f.users.ExtendSubscription(ctx, lapsed.ID, 7)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), *next, time.Minute)
}

func TestUserDetailIncludesAuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, func(a *models.App) { a.HwidLock = true })
	user := f.createUser(t, app.ID, nil)

	_, err := f.auth.Login(ctx, LoginInput{Username: "alice", Password: "password123", AppID: app.ID, Hwid: "machine-a"})
	require.NoError(t, err)
	_, err = f.auth.Login(ctx, LoginInput{Username: "alice", Password: "wrong", AppID: app.ID})
	require.Error(t, err)

	detail, err := f.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, detail.User.ID)
	assert.Len(t, detail.HwidLogs, 1)
	assert.Len(t, detail.LoginLogs, 2)
}

func TestDeleteUserUnbindsKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	value := f.generateOne(t, app.ID, GenerateInput{KeyType: models.KeyLifetime})
	res, err := f.auth.KeyLogin(ctx, KeyLoginInput{Key: value, AppID: app.ID})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, res.User.ID))

	key, err := f.st.Keys().ByValue(ctx, app.ID, value)
	require.NoError(t, err)
	assert.Nil(t, key.UserID)
}

func TestDeleteUnknownUser(t *testing.T) {
	f := newFixture(t)
	err := f.users.Delete(context.Background(), "missing")
	assert.True(t, apperr.IsCode(err, CodeUserNotFound))
}

func TestListUsersFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApp(t, nil)
	f.createUser(t, app.ID, nil)
	f.createUser(t, app.ID, func(u *models.User) {
		u.Username = "mallory"
		u.IsBanned = true
	})

	users, total, err := f.users.List(ctx, store.UserFilter{AppID: app.ID, IsBanned: boolp(true)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "mallory", users[0].Username)

	users, _, err = f.users.List(ctx, store.UserFilter{AppID: app.ID, Search: "ALICE"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
}
