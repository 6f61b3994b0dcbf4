package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"gouauth/internal/service"
	"gouauth/internal/store"
)

func ListLoginLogs(svc *service.Logs, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		logs, err := svc.Logins(r.Context(), store.LoginLogFilter{
			AppID:  q.Get("app_id"),
			UserID: q.Get("user_id"),
			Limit:  queryInt(q.Get("limit"), 100),
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"logs": logs})
	}
}

func ListHwidLogs(svc *service.Logs, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		logs, err := svc.Hwids(r.Context(), q.Get("user_id"), queryInt(q.Get("limit"), 50))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"logs": logs})
	}
}
