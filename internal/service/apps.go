package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"gouauth/internal/apperr"
	"gouauth/internal/crypto"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Apps manages tenant apps. Every operation is scoped to the owning admin;
// an app belonging to someone else is indistinguishable from a missing one.
type Apps struct {
	st store.Store
}

func NewApps(st store.Store) *Apps {
	return &Apps{st: st}
}

type CreateAppInput struct {
	AdminID     string
	Name        string
	HwidLock    *bool
	MaxSessions *int
}

func (a *Apps) Create(ctx context.Context, in CreateAppInput) (*models.App, error) {
	secret, err := crypto.GenerateAppSecret()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	app := &models.App{
		AdminID:     in.AdminID,
		Name:        in.Name,
		SecretKey:   secret,
		Status:      models.AppOnline,
		HwidLock:    true,
		MaxSessions: 1,
	}
	if in.HwidLock != nil {
		app.HwidLock = *in.HwidLock
	}
	if in.MaxSessions != nil && *in.MaxSessions >= 1 {
		app.MaxSessions = *in.MaxSessions
	}
	if err := a.st.Apps().Create(ctx, app); err != nil {
		return nil, apperr.Internal(err)
	}
	return app, nil
}

// AppSummary is an app row plus its headline counts.
type AppSummary struct {
	App       models.App `json:"app"`
	UserCount int64      `json:"user_count"`
	KeyCount  int64      `json:"key_count"`
}

func (a *Apps) List(ctx context.Context, adminID string) ([]AppSummary, error) {
	apps, err := a.st.Apps().ByAdmin(ctx, adminID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]AppSummary, 0, len(apps))
	for _, app := range apps {
		users, err := a.st.Stats().CountUsers(ctx, app.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		keys, err := a.st.Stats().CountKeys(ctx, app.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		out = append(out, AppSummary{App: app, UserCount: users, KeyCount: keys})
	}
	return out, nil
}

func (a *Apps) Get(ctx context.Context, appID, adminID string) (*models.App, error) {
	return a.owned(ctx, appID, adminID)
}

type UpdateAppInput struct {
	Name        *string
	Status      *models.AppStatus
	MinVersion  *string
	HwidLock    *bool
	MaxSessions *int
}

func (a *Apps) Update(ctx context.Context, appID, adminID string, in UpdateAppInput) (*models.App, error) {
	app, err := a.owned(ctx, appID, adminID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		app.Name = *in.Name
	}
	if in.Status != nil {
		switch *in.Status {
		case models.AppOnline, models.AppOffline, models.AppMaintenance:
			app.Status = *in.Status
		default:
			return nil, apperr.Invalid(CodeInvalidParams, "unknown app status")
		}
	}
	if in.MinVersion != nil {
		app.MinVersion = *in.MinVersion
	}
	if in.HwidLock != nil {
		app.HwidLock = *in.HwidLock
	}
	if in.MaxSessions != nil {
		if *in.MaxSessions < 1 {
			return nil, apperr.Invalid(CodeInvalidParams, "maxSessions must be at least 1")
		}
		app.MaxSessions = *in.MaxSessions
	}
	if err := a.st.Apps().Update(ctx, app); err != nil {
		return nil, apperr.Internal(err)
	}
	return app, nil
}

// RegenerateSecret rotates the app secret and returns the new value.
func (a *Apps) RegenerateSecret(ctx context.Context, appID, adminID string) (string, error) {
	app, err := a.owned(ctx, appID, adminID)
	if err != nil {
		return "", err
	}
	secret, err := crypto.GenerateAppSecret()
	if err != nil {
		return "", apperr.Internal(err)
	}
	app.SecretKey = secret
	if err := a.st.Apps().Update(ctx, app); err != nil {
		return "", apperr.Internal(err)
	}
	return secret, nil
}

// Delete removes the app and cascades to its users, keys and sessions.
func (a *Apps) Delete(ctx context.Context, appID, adminID string) error {
	if _, err := a.owned(ctx, appID, adminID); err != nil {
		return err
	}
	if err := a.st.Apps().Delete(ctx, appID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (a *Apps) Stats(ctx context.Context, appID, adminID string) (*store.AppStats, error) {
	if _, err := a.owned(ctx, appID, adminID); err != nil {
		return nil, err
	}
	stats, err := a.st.Stats().App(ctx, appID, time.Now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}

// ValidateSecret is the SDK handshake: the app id plus its secret.
func (a *Apps) ValidateSecret(ctx context.Context, appID, secretKey string) (*models.App, error) {
	app, err := a.st.Apps().ByID(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(CodeInvalidAppCreds, "invalid app credentials")
		}
		return nil, apperr.Internal(err)
	}
	if subtle.ConstantTimeCompare([]byte(app.SecretKey), []byte(secretKey)) != 1 {
		return nil, apperr.Unauthorized(CodeInvalidAppCreds, "invalid app credentials")
	}
	return app, nil
}

func (a *Apps) owned(ctx context.Context, appID, adminID string) (*models.App, error) {
	app, err := a.st.Apps().ByID(ctx, appID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeAppNotFound, "app not found")
		}
		return nil, apperr.Internal(err)
	}
	if app.AdminID != adminID {
		return nil, apperr.NotFound(CodeAppNotFound, "app not found")
	}
	return app, nil
}
