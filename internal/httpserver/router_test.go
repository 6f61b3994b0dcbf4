package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/metrics"
	"gouauth/internal/models"
	"gouauth/internal/service"
	"gouauth/internal/store/memstore"
)

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Mem) {
	t.Helper()
	st := memstore.New()
	m := metrics.New(prometheus.NewRegistry())
	lg := zap.NewNop().Sugar()
	tokens := auth.NewManager("test-secret", time.Hour, 24*time.Hour, time.Hour)
	hwid := service.NewHwidBinder(st)
	sessions := service.NewSessions(st, tokens, 24*time.Hour, m)
	keys := service.NewKeys(st, hwid, m, lg)
	router := NewRouter(Services{
		Auth:   service.NewAuth(st, keys, sessions, hwid, auth.VerifyPassword, m, lg),
		Admins: service.NewAdmins(st, tokens, lg),
		Apps:   service.NewApps(st),
		Keys:   keys,
		Users:  service.NewUsers(st, hwid),
		Logs:   service.NewLogs(st),
		Tokens: tokens,
		Store:  st,
	}, lg)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestFullKeyLoginFlow(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	// Operator side: bootstrap an admin out of band, log in over HTTP.
	hash, err := auth.HashPassword("admin password")
	require.NoError(t, err)
	require.NoError(t, st.Admins().Create(ctx, &models.Admin{
		Username: "root", Email: "root@example.com", PasswordHash: hash,
	}))

	res, body := doJSON(t, http.MethodPost, srv.URL+"/v1/admin/login", "", map[string]any{
		"username": "root", "password": "admin password",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	adminToken, _ := body["token"].(string)
	require.NotEmpty(t, adminToken)

	res, body = doJSON(t, http.MethodPost, srv.URL+"/v1/admin/apps", adminToken, map[string]any{
		"name": "launcher", "hwid_lock": false,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	app := body["app"].(map[string]any)
	appID := app["id"].(string)

	res, body = doJSON(t, http.MethodPost, srv.URL+"/v1/admin/keys/generate", adminToken, map[string]any{
		"app_id": appID, "count": 1, "key_type": "LIFETIME",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	keyValue := body["keys"].([]any)[0].(string)

	// Client side: redeem the key, validate the session, log out.
	res, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/key-login", "", map[string]any{
		"key": keyValue, "app_id": appID,
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	clientToken, _ := body["token"].(string)
	require.NotEmpty(t, clientToken)
	assert.Equal(t, "LIFETIME", body["key_type"])

	res, body = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/session", clientToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["valid"])

	res, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/logout", clientToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	// The token's session is gone, so the guard rejects it.
	res, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/auth/session", clientToken, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegisterThenLoginRequiresKey(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	app := &models.App{AdminID: "admin-1", Name: "launcher", SecretKey: "s", HwidLock: false}
	require.NoError(t, st.Apps().Create(ctx, app))

	res, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/register", "", map[string]any{
		"username": "alice", "password": "password123", "app_id": app.ID,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "alice", body["username"])

	res, body = doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "password123", "app_id": app.ID,
	})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "SUBSCRIPTION_EXPIRED", body["code"])
}

func TestValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	res, body := doJSON(t, http.MethodPost, srv.URL+"/v1/auth/login", "", map[string]any{
		"username": "alice", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", body["code"])
}

func TestAdminGuard(t *testing.T) {
	srv, _ := newTestServer(t)

	res, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/admin/apps", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/admin/apps", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAppValidateEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	app := &models.App{AdminID: "admin-1", Name: "launcher", SecretKey: "super secret"}
	require.NoError(t, st.Apps().Create(context.Background(), app))

	res, body := doJSON(t, http.MethodPost, srv.URL+"/v1/app/validate", "", map[string]any{
		"app_id": app.ID, "secret_key": "super secret",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["valid"])

	res, body = doJSON(t, http.MethodPost, srv.URL+"/v1/app/validate", "", map[string]any{
		"app_id": app.ID, "secret_key": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "INVALID_APP_CREDENTIALS", body["code"])
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
