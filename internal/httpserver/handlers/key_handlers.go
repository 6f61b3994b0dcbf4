package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"gouauth/internal/auth"
	"gouauth/internal/models"
	"gouauth/internal/service"
	"gouauth/internal/store"
)

type generateKeysReq struct {
	AppID          string         `json:"app_id" validate:"required,uuid4"`
	Count          int            `json:"count" validate:"required"`
	KeyType        models.KeyType `json:"key_type" validate:"required,oneof=TIME LIFETIME USES"`
	DurationDays   *int           `json:"duration_days,omitempty"`
	MaxUses        *int           `json:"max_uses,omitempty"`
	MaxActivations int            `json:"max_activations,omitempty"`
	Note           string         `json:"note,omitempty" validate:"max=256"`
}

func GenerateKeys(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateKeysReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		res, err := svc.Generate(r.Context(), service.GenerateInput{
			AppID:          req.AppID,
			Count:          req.Count,
			KeyType:        req.KeyType,
			DurationDays:   req.DurationDays,
			MaxUses:        req.MaxUses,
			MaxActivations: req.MaxActivations,
			Note:           req.Note,
		})
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusCreated, map[string]any{
			"count": res.Count,
			"keys":  res.Keys,
		})
	}
}

func ListKeys(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := store.KeyFilter{
			AppID:    q.Get("app_id"),
			KeyType:  models.KeyType(q.Get("key_type")),
			IsActive: queryBool(q.Get("is_active")),
			IsUsed:   queryBool(q.Get("is_used")),
			Page:     queryInt(q.Get("page"), 1),
			Limit:    queryInt(q.Get("limit"), 50),
		}
		keys, total, err := svc.List(r.Context(), f)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{
			"keys":  keys,
			"total": total,
			"page":  f.Page,
			"limit": f.Limit,
		})
	}
}

func GetKey(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, key)
	}
}

func ToggleKey(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, err := svc.Toggle(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"is_active": active})
	}
}

func DeleteKey(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}

type bulkDeleteReq struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid4"`
}

func BulkDeleteKeys(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkDeleteReq
		if err := decode(r, &req); err != nil {
			respondError(w, r, lg, err)
			return
		}
		n, err := svc.BulkDelete(r.Context(), req.IDs)
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"deleted": n})
	}
}

func ResetKeyHwid(svc *service.Keys, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		old, err := svc.ResetHwidByKey(r.Context(), chi.URLParam(r, "id"), auth.Subject(r.Context()))
		if err != nil {
			respondError(w, r, lg, err)
			return
		}
		respondJSON(w, r, http.StatusOK, map[string]any{"reset": true, "previous_hwid": old})
	}
}
