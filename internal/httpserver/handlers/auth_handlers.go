package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/service"
)

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Hwid     string `json:"hwid,omitempty"`
	AppID    string `json:"app_id" validate:"required,uuid4"`
}

func Login(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.Login(r.Context(), service.LoginInput{
			Username:  req.Username,
			Password:  req.Password,
			Hwid:      req.Hwid,
			AppID:     req.AppID,
			IPAddress: clientIP(r),
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, res)
	}
}

type keyLoginReq struct {
	Key   string `json:"key" validate:"required"`
	Hwid  string `json:"hwid,omitempty"`
	AppID string `json:"app_id" validate:"required,uuid4"`
}

func KeyLogin(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyLoginReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.KeyLogin(r.Context(), service.KeyLoginInput{
			Key:       req.Key,
			Hwid:      req.Hwid,
			AppID:     req.AppID,
			IPAddress: clientIP(r),
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, res)
	}
}

type registerReq struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	AppID    string `json:"app_id" validate:"required,uuid4"`
}

func Register(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.Register(r.Context(), service.RegisterInput{
			Username: req.Username,
			Password: req.Password,
			Email:    req.Email,
			AppID:    req.AppID,
		}, auth.HashPassword)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, res)
	}
}

type activateReq struct {
	Key string `json:"key" validate:"required"`
}

// ActivateKey binds an unbound key to the user behind the access token.
func ActivateKey(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.ActivateKey(r.Context(), auth.Subject(r.Context()), req.Key)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"success":    true,
			"expires_at": res.ExpiresAt,
			"key_type":   res.KeyType,
		})
	}
}

func Logout(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), auth.SessionID(r.Context())); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"success": true})
	}
}

func ValidateSession(svc *service.Auth, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.ValidateSession(r.Context(), auth.SessionID(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"valid": true,
			"user": map[string]any{
				"id":         info.User.ID,
				"username":   info.User.Username,
				"expires_at": info.User.ExpiresAt,
			},
			"session_expires_at": info.SessionExpiresAt,
		})
	}
}
