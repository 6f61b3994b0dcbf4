package auth

import (
	"net/http"
	"strings"
	"time"

	"gouauth/internal/store"
)

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}

// ClientAuth guards end-user endpoints. The access token must verify and
// its session must still exist and be unexpired.
func ClientAuth(m *Manager, st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := m.Verify(raw)
			if err != nil || claims.Kind != KindAccess || claims.SessionID == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			sess, err := st.Sessions().ByID(r.Context(), claims.SessionID)
			if err != nil {
				http.Error(w, "session not found", http.StatusUnauthorized)
				return
			}
			if time.Now().After(sess.ExpiresAt) {
				http.Error(w, "session expired", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// AdminAuth guards operator endpoints.
func AdminAuth(m *Manager, st store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := m.Verify(raw)
			if err != nil || claims.Kind != KindAdmin {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if _, err := st.Admins().ByID(r.Context(), claims.Subject); err != nil {
				http.Error(w, "unknown admin", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
