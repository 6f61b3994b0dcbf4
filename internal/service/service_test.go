package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/metrics"
	"gouauth/internal/models"
	"gouauth/internal/store"
	"gouauth/internal/store/memstore"
)

// fixture wires the full service graph onto an in-memory store. Password
// verification is plaintext comparison so tests can seed PasswordHash
// directly without paying for argon2.
type fixture struct {
	st       *memstore.Mem
	auth     *Auth
	keys     *Keys
	sessions *Sessions
	hwid     *HwidBinder
	apps     *Apps
	users    *Users
	admins   *Admins
	tokens   *auth.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	m := metrics.New(prometheus.NewRegistry())
	lg := zap.NewNop().Sugar()
	tokens := auth.NewManager("test-secret", time.Hour, 24*time.Hour, time.Hour)
	hwid := NewHwidBinder(st)
	sessions := NewSessions(st, tokens, 24*time.Hour, m)
	keys := NewKeys(st, hwid, m, lg)
	plaintext := func(password, digest string) bool { return password == digest }
	return &fixture{
		st:       st,
		auth:     NewAuth(st, keys, sessions, hwid, plaintext, m, lg),
		keys:     keys,
		sessions: sessions,
		hwid:     hwid,
		apps:     NewApps(st),
		users:    NewUsers(st, hwid),
		admins:   NewAdmins(st, tokens, lg),
		tokens:   tokens,
	}
}

func (f *fixture) createApp(t *testing.T, mutate func(*models.App)) *models.App {
	t.Helper()
	app := &models.App{
		AdminID:     "admin-1",
		Name:        "test app",
		SecretKey:   "secret",
		Status:      models.AppOnline,
		HwidLock:    false,
		MaxSessions: 3,
	}
	if mutate != nil {
		mutate(app)
	}
	require.NoError(t, f.st.Apps().Create(context.Background(), app))
	return app
}

func (f *fixture) createUser(t *testing.T, appID string, mutate func(*models.User)) *models.User {
	t.Helper()
	future := time.Now().Add(30 * 24 * time.Hour)
	user := &models.User{
		AppID:        appID,
		Username:     "alice",
		PasswordHash: "password123",
		ExpiresAt:    &future,
	}
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, f.st.Users().Create(context.Background(), user))
	return user
}

func (f *fixture) generateOne(t *testing.T, appID string, in GenerateInput) string {
	t.Helper()
	in.AppID = appID
	in.Count = 1
	res, err := f.keys.Generate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Keys, 1)
	return res.Keys[0]
}

func (f *fixture) loginLogs(t *testing.T, appID string) []models.LoginLog {
	t.Helper()
	logs, err := f.st.Logs().Logins(context.Background(), store.LoginLogFilter{AppID: appID, Limit: 100})
	require.NoError(t, err)
	return logs
}

func intp(v int) *int              { return &v }
func boolp(v bool) *bool           { return &v }
func strp(v string) *string        { return &v }
func timep(v time.Time) *time.Time { return &v }
