package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gouauth/internal/apperr"
	"gouauth/internal/auth"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Admins handles operator accounts: login, password change, and the
// explicit first-run bootstrap.
type Admins struct {
	st     store.Store
	tokens *auth.Manager
	lg     *zap.SugaredLogger
}

func NewAdmins(st store.Store, tokens *auth.Manager, lg *zap.SugaredLogger) *Admins {
	return &Admins{st: st, tokens: tokens, lg: lg}
}

type AdminLoginResult struct {
	Token string        `json:"token"`
	Admin *models.Admin `json:"admin"`
}

func (a *Admins) Login(ctx context.Context, username, password string) (*AdminLoginResult, error) {
	admin, err := a.st.Admins().ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(CodeInvalidCreds, "invalid username or password")
		}
		return nil, apperr.Internal(err)
	}
	if !auth.VerifyPassword(password, admin.PasswordHash) {
		return nil, apperr.Unauthorized(CodeInvalidCreds, "invalid username or password")
	}
	token, err := a.tokens.IssueAdmin(admin.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &AdminLoginResult{Token: token, Admin: admin}, nil
}

// Bootstrap provisions the first operator account. Idempotent: an existing
// account with the same username is left untouched. Credentials must be
// supplied explicitly; there are no defaults.
func (a *Admins) Bootstrap(ctx context.Context, username, email, password string) error {
	if username == "" || password == "" {
		return apperr.Invalid(CodeInvalidParams, "bootstrap requires admin username and password")
	}
	if _, err := a.st.Admins().ByUsername(ctx, username); err == nil {
		a.lg.Infow("bootstrap admin already exists", "username", username)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Internal(err)
	}
	admin := &models.Admin{Username: username, Email: email, PasswordHash: hash}
	if err := a.st.Admins().Create(ctx, admin); err != nil {
		return apperr.Internal(err)
	}
	a.lg.Infow("bootstrapped admin account", "username", username)
	return nil
}

func (a *Admins) ChangePassword(ctx context.Context, adminID, current, next string) error {
	admin, err := a.st.Admins().ByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(CodeAdminNotFound, "admin not found")
		}
		return apperr.Internal(err)
	}
	if !auth.VerifyPassword(current, admin.PasswordHash) {
		return apperr.Unauthorized(CodeInvalidCreds, "current password is incorrect")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return apperr.Internal(err)
	}
	admin.PasswordHash = hash
	if err := a.st.Admins().Update(ctx, admin); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
