package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gouauth/internal/models"
	"gouauth/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return New(db)
}

func seedApp(t *testing.T, s *Store) *models.App {
	t.Helper()
	app := &models.App{AdminID: "admin-1", Name: "app", SecretKey: "secret"}
	require.NoError(t, s.Apps().Create(context.Background(), app))
	return app
}

func seedUser(t *testing.T, s *Store, appID, username string) *models.User {
	t.Helper()
	u := &models.User{AppID: appID, Username: username}
	require.NoError(t, s.Users().Create(context.Background(), u))
	return u
}

func seedKey(t *testing.T, s *Store, appID string, mutate func(*models.Key)) *models.Key {
	t.Helper()
	k := models.Key{
		AppID:          appID,
		KeyValue:       "GOU-" + appID[:8] + "-TEST-" + time.Now().Format("150405.000000000"),
		KeyType:        models.KeyLifetime,
		MaxActivations: 1,
		IsActive:       true,
	}
	if mutate != nil {
		mutate(&k)
	}
	require.NoError(t, s.Keys().CreateBatch(context.Background(), []models.Key{k}))
	got, err := s.Keys().ByValue(context.Background(), appID, k.KeyValue)
	require.NoError(t, err)
	return got
}

func TestBindIsSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	key := seedKey(t, s, app.ID, nil)

	now := time.Now()
	won, err := s.Keys().Bind(ctx, key.ID, "user-1", now, nil)
	require.NoError(t, err)
	assert.True(t, won)

	// Second bind must lose: user_id is no longer null.
	won, err = s.Keys().Bind(ctx, key.ID, "user-2", now, nil)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.Keys().ByID(ctx, key.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "user-1", *got.UserID)
	assert.Equal(t, 1, got.CurrentActivations)
	require.NotNil(t, got.ActivatedAt)
}

func TestBindRespectsActivationCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	key := seedKey(t, s, app.ID, func(k *models.Key) {
		k.CurrentActivations = 1
		k.MaxActivations = 1
	})

	won, err := s.Keys().Bind(ctx, key.ID, "user-1", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestBindSetsExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	key := seedKey(t, s, app.ID, nil)

	expiry := time.Now().Add(30 * 24 * time.Hour).UTC()
	won, err := s.Keys().Bind(ctx, key.ID, "user-1", time.Now(), &expiry)
	require.NoError(t, err)
	require.True(t, won)

	got, err := s.Keys().ByID(ctx, key.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expiry, *got.ExpiresAt, time.Second)
}

func TestCountByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	user := seedUser(t, s, app.ID, "alice")

	n, err := s.Keys().CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	key := seedKey(t, s, app.ID, nil)
	won, err := s.Keys().Bind(ctx, key.ID, user.ID, time.Now(), nil)
	require.NoError(t, err)
	require.True(t, won)

	n, err = s.Keys().CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUsernameUniquePerApp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app1 := seedApp(t, s)
	app2 := seedApp(t, s)
	seedUser(t, s, app1.ID, "alice")

	err := s.Users().Create(ctx, &models.User{AppID: app1.ID, Username: "alice"})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Same username under a different app is fine.
	err = s.Users().Create(ctx, &models.User{AppID: app2.ID, Username: "alice"})
	assert.NoError(t, err)
}

func TestOldestSessionOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"sess-b", "sess-a", "sess-c"} {
		require.NoError(t, s.Sessions().Create(ctx, &models.Session{
			ID:        id,
			UserID:    "user-1",
			AppID:     "app-1",
			Token:     "tok",
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	oldest, err := s.Sessions().Oldest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-b", oldest.ID)

	require.NoError(t, s.Sessions().Delete(ctx, "sess-b"))
	oldest, err = s.Sessions().Oldest(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-a", oldest.ID)
}

func TestSessionDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	assert.NoError(t, s.Sessions().Delete(ctx, "never-existed"))
}

func TestCountActiveIgnoresExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Sessions().Create(ctx, &models.Session{
		ID: "live", UserID: "user-1", AppID: "app-1", Token: "t", ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, s.Sessions().Create(ctx, &models.Session{
		ID: "dead", UserID: "user-1", AppID: "app-1", Token: "t", ExpiresAt: now.Add(-time.Hour),
	}))

	n, err := s.Sessions().CountActive(ctx, "user-1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserDeleteUnbindsKeysAndDropsSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	user := seedUser(t, s, app.ID, "alice")
	key := seedKey(t, s, app.ID, nil)
	won, err := s.Keys().Bind(ctx, key.ID, user.ID, time.Now(), nil)
	require.NoError(t, err)
	require.True(t, won)
	require.NoError(t, s.Sessions().Create(ctx, &models.Session{
		ID: "sess-1", UserID: user.ID, AppID: app.ID, Token: "t", ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.Users().Delete(ctx, user.ID))

	_, err = s.Users().ByID(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Sessions().ByID(ctx, "sess-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := s.Keys().ByID(ctx, key.ID)
	require.NoError(t, err)
	assert.Nil(t, got.UserID)
}

func TestAppDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	user := seedUser(t, s, app.ID, "alice")
	key := seedKey(t, s, app.ID, nil)
	require.NoError(t, s.Sessions().Create(ctx, &models.Session{
		ID: "sess-1", UserID: user.ID, AppID: app.ID, Token: "t", ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, s.Apps().Delete(ctx, app.ID))

	_, err := s.Apps().ByID(ctx, app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().ByID(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Keys().ByID(ctx, key.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Sessions().ByID(ctx, "sess-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserListSearchIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	seedUser(t, s, app.ID, "Alice")
	seedUser(t, s, app.ID, "bob")

	users, total, err := s.Users().List(ctx, store.UserFilter{AppID: app.ID, Search: "ALI"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Username)
}

func TestLoginLogFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	uid := "user-1"
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Logs().AddLogin(ctx, &models.LoginLog{
			AppID: "app-1", UserID: &uid, Success: i%2 == 0,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.Logs().AddLogin(ctx, &models.LoginLog{AppID: "app-2", Success: true}))

	logs, err := s.Logs().Logins(ctx, store.LoginLogFilter{AppID: "app-1"})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = s.Logs().Logins(ctx, store.LoginLogFilter{UserID: uid, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestAppStatsCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app := seedApp(t, s)
	now := time.Now()

	seedUser(t, s, app.ID, "active")
	banned := seedUser(t, s, app.ID, "banned")
	require.NoError(t, s.Users().SetBan(ctx, banned.ID, true, "abuse"))
	expired := seedUser(t, s, app.ID, "expired")
	past := now.Add(-time.Hour)
	require.NoError(t, s.Users().SetExpiry(ctx, expired.ID, &past))

	key := seedKey(t, s, app.ID, nil)
	_, err := s.Keys().Bind(ctx, key.ID, "user-x", now, nil)
	require.NoError(t, err)
	seedKey(t, s, app.ID, func(k *models.Key) { k.KeyValue = "GOU-UNUSED-KEY" })

	require.NoError(t, s.Logs().AddLogin(ctx, &models.LoginLog{AppID: app.ID, Success: true}))
	require.NoError(t, s.Logs().AddLogin(ctx, &models.LoginLog{AppID: app.ID, Success: false}))

	stats, err := s.Stats().App(ctx, app.ID, now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalUsers)
	assert.EqualValues(t, 1, stats.BannedUsers)
	assert.EqualValues(t, 1, stats.ExpiredUsers)
	assert.EqualValues(t, 2, stats.TotalKeys)
	assert.EqualValues(t, 1, stats.UsedKeys)
	assert.EqualValues(t, 1, stats.LoginsToday)
	assert.EqualValues(t, 1, stats.LoginsWeek)
}

func TestAdminUniqueUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Admins().Create(ctx, &models.Admin{
		Username: "root", Email: "root@example.com", PasswordHash: "x",
	}))
	err := s.Admins().Create(ctx, &models.Admin{
		Username: "root", Email: "other@example.com", PasswordHash: "x",
	})
	assert.ErrorIs(t, err, store.ErrConflict)
}
