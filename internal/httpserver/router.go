package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/httpserver/handlers"
	"gouauth/internal/service"
	"gouauth/internal/store"
)

// Services bundles everything the router hands to handlers.
type Services struct {
	Auth   *service.Auth
	Admins *service.Admins
	Apps   *service.Apps
	Keys   *service.Keys
	Users  *service.Users
	Logs   *service.Logs
	Tokens *auth.Manager
	Store  store.Store
}

func NewRouter(s Services, lg *zap.SugaredLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/v1/auth/login", handlers.Login(s.Auth, lg))
	r.Post("/v1/auth/key-login", handlers.KeyLogin(s.Auth, lg))
	r.Post("/v1/auth/register", handlers.Register(s.Auth, lg))
	r.Post("/v1/app/validate", handlers.ValidateApp(s.Apps, lg))

	r.Group(func(client chi.Router) {
		client.Use(auth.ClientAuth(s.Tokens, s.Store))
		client.Post("/v1/auth/activate", handlers.ActivateKey(s.Auth, lg))
		client.Post("/v1/auth/logout", handlers.Logout(s.Auth, lg))
		client.Get("/v1/auth/session", handlers.ValidateSession(s.Auth, lg))
	})

	r.Post("/v1/admin/login", handlers.AdminLogin(s.Admins, lg))
	r.Group(func(admin chi.Router) {
		admin.Use(auth.AdminAuth(s.Tokens, s.Store))
		admin.Post("/v1/admin/password", handlers.AdminChangePassword(s.Admins, lg))

		admin.Post("/v1/admin/apps", handlers.CreateApp(s.Apps, lg))
		admin.Get("/v1/admin/apps", handlers.ListApps(s.Apps, lg))
		admin.Get("/v1/admin/apps/{id}", handlers.GetApp(s.Apps, lg))
		admin.Patch("/v1/admin/apps/{id}", handlers.UpdateApp(s.Apps, lg))
		admin.Post("/v1/admin/apps/{id}/regenerate-secret", handlers.RegenerateAppSecret(s.Apps, lg))
		admin.Delete("/v1/admin/apps/{id}", handlers.DeleteApp(s.Apps, lg))
		admin.Get("/v1/admin/apps/{id}/stats", handlers.AppStats(s.Apps, lg))

		admin.Post("/v1/admin/keys/generate", handlers.GenerateKeys(s.Keys, lg))
		admin.Get("/v1/admin/keys", handlers.ListKeys(s.Keys, lg))
		admin.Get("/v1/admin/keys/{id}", handlers.GetKey(s.Keys, lg))
		admin.Post("/v1/admin/keys/{id}/toggle", handlers.ToggleKey(s.Keys, lg))
		admin.Post("/v1/admin/keys/{id}/reset-hwid", handlers.ResetKeyHwid(s.Keys, lg))
		admin.Delete("/v1/admin/keys/{id}", handlers.DeleteKey(s.Keys, lg))
		admin.Post("/v1/admin/keys/bulk-delete", handlers.BulkDeleteKeys(s.Keys, lg))

		admin.Get("/v1/admin/users", handlers.ListUsers(s.Users, lg))
		admin.Get("/v1/admin/users/{id}", handlers.GetUser(s.Users, lg))
		admin.Post("/v1/admin/users/{id}/ban", handlers.BanUser(s.Users, lg))
		admin.Post("/v1/admin/users/{id}/unban", handlers.UnbanUser(s.Users, lg))
		admin.Post("/v1/admin/users/{id}/reset-hwid", handlers.ResetUserHwid(s.Users, lg))
		admin.Post("/v1/admin/users/{id}/extend", handlers.ExtendSubscription(s.Users, lg))
		admin.Delete("/v1/admin/users/{id}", handlers.DeleteUser(s.Users, lg))

		admin.Get("/v1/admin/logs/logins", handlers.ListLoginLogs(s.Logs, lg))
		admin.Get("/v1/admin/logs/hwids", handlers.ListHwidLogs(s.Logs, lg))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	return r
}
