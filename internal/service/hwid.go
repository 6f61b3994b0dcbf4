package service

import (
	"context"

	"gouauth/internal/apperr"
	"gouauth/internal/crypto"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// HwidBinder enforces one bound hardware id per account, set on first
// successful use. It only ever sees and stores the one-way hashed form.
type HwidBinder struct {
	st store.Store
}

func NewHwidBinder(st store.Store) *HwidBinder {
	return &HwidBinder{st: st}
}

// CheckAndBind validates a presented hardware id against the user's bound
// one, binding it on first use. The user's Hwid field is updated in place
// when a bind happens. A mismatch must surface before any session exists.
func (b *HwidBinder) CheckAndBind(ctx context.Context, user *models.User, presentedHwid string, appRequiresLock bool, reason string) error {
	if !appRequiresLock || presentedHwid == "" {
		return nil
	}
	hashed := crypto.HashHwid(presentedHwid)
	if user.Hwid == "" {
		if err := b.st.Users().SetHwid(ctx, user.ID, hashed); err != nil {
			return apperr.Internal(err)
		}
		if err := b.st.Logs().AddHwid(ctx, &models.HwidLog{
			UserID:  user.ID,
			NewHwid: hashed,
			Reason:  reason,
		}); err != nil {
			return apperr.Internal(err)
		}
		user.Hwid = hashed
		return nil
	}
	if user.Hwid == hashed {
		return nil
	}
	return apperr.Forbidden(CodeHwidMismatch, "hardware id mismatch, contact support for a reset")
}

// AdminReset clears the user's bound hardware id and destroys their active
// sessions: a machine losing its binding also loses its access. Returns the
// previous hashed hwid.
func (b *HwidBinder) AdminReset(ctx context.Context, userID, adminID string) (string, error) {
	user, err := b.st.Users().ByID(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return "", apperr.NotFound(CodeUserNotFound, "user not found")
		}
		return "", apperr.Internal(err)
	}
	old := user.Hwid
	if err := b.st.Users().SetHwid(ctx, userID, ""); err != nil {
		return "", apperr.Internal(err)
	}
	var oldPtr *string
	if old != "" {
		oldPtr = &old
	}
	if err := b.st.Logs().AddHwid(ctx, &models.HwidLog{
		UserID:  userID,
		OldHwid: oldPtr,
		NewHwid: "RESET",
		ResetBy: &adminID,
		Reason:  "Admin HWID reset",
	}); err != nil {
		return "", apperr.Internal(err)
	}
	if err := b.st.Sessions().DeleteByUser(ctx, userID); err != nil {
		return "", apperr.Internal(err)
	}
	return old, nil
}
