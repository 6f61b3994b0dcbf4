package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/models"
	"gouauth/internal/service"
)

type createAppReq struct {
	Name        string `json:"name" validate:"required,min=1,max=64"`
	HwidLock    *bool  `json:"hwid_lock,omitempty"`
	MaxSessions *int   `json:"max_sessions,omitempty" validate:"omitempty,min=1"`
}

func CreateApp(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAppReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		app, err := svc.Create(r.Context(), service.CreateAppInput{
			AdminID:     auth.Subject(r.Context()),
			Name:        req.Name,
			HwidLock:    req.HwidLock,
			MaxSessions: req.MaxSessions,
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		// The secret is only revealed at creation and rotation.
		respondJSON(w, r, http.StatusCreated, map[string]any{
			"app":        app,
			"secret_key": app.SecretKey,
		})
	}
}

func ListApps(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := svc.List(r.Context(), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, apps)
	}
}

func GetApp(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := svc.Get(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, app)
	}
}

type updateAppReq struct {
	Name        *string           `json:"name,omitempty" validate:"omitempty,min=1,max=64"`
	Status      *models.AppStatus `json:"status,omitempty"`
	MinVersion  *string           `json:"min_version,omitempty"`
	HwidLock    *bool             `json:"hwid_lock,omitempty"`
	MaxSessions *int              `json:"max_sessions,omitempty" validate:"omitempty,min=1"`
}

func UpdateApp(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateAppReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		app, err := svc.Update(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()), service.UpdateAppInput{
			Name:        req.Name,
			Status:      req.Status,
			MinVersion:  req.MinVersion,
			HwidLock:    req.HwidLock,
			MaxSessions: req.MaxSessions,
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, app)
	}
}

func RegenerateAppSecret(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret, err := svc.RegenerateSecret(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"secret_key": secret})
	}
}

func DeleteApp(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context())); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}

func AppStats(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, stats)
	}
}

type validateAppReq struct {
	AppID     string `json:"app_id" validate:"required,uuid4"`
	SecretKey string `json:"secret_key" validate:"required"`
}

// ValidateApp is the unauthenticated SDK handshake.
func ValidateApp(svc *service.Apps, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateAppReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		app, err := svc.ValidateSecret(r.Context(), req.AppID, req.SecretKey)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"valid":  true,
			"app_id": app.ID,
			"name":   app.Name,
			"status": app.Status,
		})
	}
}
