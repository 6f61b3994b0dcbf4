package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/service"
)

type adminLoginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func AdminLogin(svc *service.Admins, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adminLoginReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, res)
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

func AdminChangePassword(svc *service.Admins, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		if err := svc.ChangePassword(r.Context(), auth.Subject(r.Context()), req.CurrentPassword, req.NewPassword); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"updated": true})
	}
}
