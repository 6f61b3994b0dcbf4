package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/service"
	"gouauth/internal/store"
)

func ListUsers(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := store.UserFilter{
			AppID:    q.Get("app_id"),
			Search:   q.Get("search"),
			IsBanned: queryBool(q.Get("is_banned")),
			Page:     queryInt(q.Get("page"), 1),
			Limit:    queryInt(q.Get("limit"), 50),
		}
		users, total, err := svc.List(r.Context(), f)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"users": users,
			"total": total,
			"page":  f.Page,
			"limit": f.Limit,
		})
	}
}

func GetUser(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, detail)
	}
}

type banUserReq struct {
	Reason string `json:"reason,omitempty" validate:"max=256"`
}

func BanUser(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req banUserReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := svc.Ban(r.Context(), chi.URLParam(r, "id"), req.Reason); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"banned": true})
	}
}

func UnbanUser(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Unban(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"banned": false})
	}
}

func ResetUserHwid(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		old, err := svc.ResetHwid(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"reset": true, "previous_hwid": old})
	}
}

func DeleteUser(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}

type extendReq struct {
	Days int `json:"days" validate:"required,min=1,max=3650"`
}

func ExtendSubscription(svc *service.Users, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extendReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		next, err := svc.ExtendSubscription(r.Context(), chi.URLParam(r, "id"), req.Days)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"expires_at": next})
	}
}
