package service

import (
	"context"
	"errors"
	"time"

	"gouauth/internal/apperr"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Users is the operator-facing user administration service.
type Users struct {
	st   store.Store
	hwid *HwidBinder
}

func NewUsers(st store.Store, hwid *HwidBinder) *Users {
	return &Users{st: st, hwid: hwid}
}

func (u *Users) List(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	users, total, err := u.st.Users().List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return users, total, nil
}

// UserDetail bundles a user with their recent audit trail.
type UserDetail struct {
	User      *models.User      `json:"user"`
	HwidLogs  []models.HwidLog  `json:"hwid_logs"`
	LoginLogs []models.LoginLog `json:"login_logs"`
}

func (u *Users) Get(ctx context.Context, userID string) (*UserDetail, error) {
	user, err := u.byID(ctx, userID)
	if err != nil {
		return nil, err
	}
	hwids, err := u.st.Logs().Hwids(ctx, userID, 10)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	logins, err := u.st.Logs().Logins(ctx, store.LoginLogFilter{UserID: userID, Limit: 20})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &UserDetail{User: user, HwidLogs: hwids, LoginLogs: logins}, nil
}

// Ban marks the account banned and destroys its active sessions.
func (u *Users) Ban(ctx context.Context, userID, reason string) error {
	if _, err := u.byID(ctx, userID); err != nil {
		return err
	}
	if reason == "" {
		reason = "Banned by admin"
	}
	if err := u.st.Sessions().DeleteByUser(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	if err := u.st.Users().SetBan(ctx, userID, true, reason); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (u *Users) Unban(ctx context.Context, userID string) error {
	if _, err := u.byID(ctx, userID); err != nil {
		return err
	}
	if err := u.st.Users().SetBan(ctx, userID, false, ""); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// ResetHwid clears the user's hardware binding via the binder, which also
// drops their sessions.
func (u *Users) ResetHwid(ctx context.Context, userID, adminID string) (string, error) {
	return u.hwid.AdminReset(ctx, userID, adminID)
}

func (u *Users) Delete(ctx context.Context, userID string) error {
	if err := u.st.Users().Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(CodeUserNotFound, "user not found")
		}
		return apperr.Internal(err)
	}
	return nil
}

// ExtendSubscription pushes the expiry out by the given number of days,
// counting from the current expiry or from now, whichever is later.
func (u *Users) ExtendSubscription(ctx context.Context, userID string, days int) (*time.Time, error) {
	user, err := u.byID(ctx, userID)
	if err != nil {
		return nil, err
	}
	base := time.Now()
	if user.ExpiresAt != nil && user.ExpiresAt.After(base) {
		base = *user.ExpiresAt
	}
	next := base.Add(time.Duration(days) * 24 * time.Hour)
	if err := u.st.Users().SetExpiry(ctx, userID, &next); err != nil {
		return nil, apperr.Internal(err)
	}
	return &next, nil
}

func (u *Users) byID(ctx context.Context, userID string) (*models.User, error) {
	user, err := u.st.Users().ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeUserNotFound, "user not found")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}
