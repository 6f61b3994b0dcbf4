package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"gouauth/internal/apperr"
	"gouauth/internal/crypto"
	"gouauth/internal/metrics"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

const (
	// MaxBatchSize caps a single generate call.
	MaxBatchSize = 100
	// maxKeyAttempts bounds the per-value collision retry loop. Exhaustion
	// is an error; the unique index on key_value is the real backstop.
	maxKeyAttempts = 10
)

// Keys is the key lifecycle manager: generation, activation (first bind),
// consumption and admin controls.
type Keys struct {
	st      store.Store
	hwid    *HwidBinder
	metrics *metrics.Metrics
	lg      *zap.SugaredLogger
}

func NewKeys(st store.Store, hwid *HwidBinder, m *metrics.Metrics, lg *zap.SugaredLogger) *Keys {
	return &Keys{st: st, hwid: hwid, metrics: m, lg: lg}
}

type GenerateInput struct {
	AppID          string
	Count          int
	KeyType        models.KeyType
	DurationDays   *int
	MaxUses        *int
	MaxActivations int
	Note           string
}

type GenerateResult struct {
	Count int
	Keys  []string
}

// Generate creates a batch of random license keys. Batches above
// MaxBatchSize are rejected, not clamped.
func (k *Keys) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if _, err := k.st.Apps().ByID(ctx, in.AppID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeAppNotFound, "app not found")
		}
		return nil, apperr.Internal(err)
	}
	if in.Count < 1 || in.Count > MaxBatchSize {
		return nil, apperr.Invalid(CodeInvalidCount, fmt.Sprintf("count must be between 1 and %d", MaxBatchSize))
	}
	switch in.KeyType {
	case models.KeyTime:
		if in.DurationDays == nil || *in.DurationDays < 1 {
			return nil, apperr.Invalid(CodeInvalidParams, "durationDays is required for TIME keys")
		}
	case models.KeyUses:
		if in.MaxUses == nil || *in.MaxUses < 1 {
			return nil, apperr.Invalid(CodeInvalidParams, "maxUses is required for USES keys")
		}
	case models.KeyLifetime:
	default:
		return nil, apperr.Invalid(CodeInvalidParams, "unknown key type")
	}
	maxActivations := in.MaxActivations
	if maxActivations < 1 {
		maxActivations = 1
	}

	seen := make(map[string]bool, in.Count)
	values := make([]string, 0, in.Count)
	batch := make([]models.Key, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		var value string
		ok := false
		for attempt := 0; attempt < maxKeyAttempts; attempt++ {
			v, err := crypto.GenerateKeyValue()
			if err != nil {
				return nil, apperr.Internal(err)
			}
			if !seen[v] {
				value, ok = v, true
				break
			}
		}
		if !ok {
			return nil, apperr.Internal(errors.New("key generation: collision retries exhausted"))
		}
		seen[value] = true
		values = append(values, value)
		key := models.Key{
			AppID:          in.AppID,
			KeyValue:       value,
			KeyType:        in.KeyType,
			MaxActivations: maxActivations,
			IsActive:       true,
			Note:           in.Note,
		}
		if in.KeyType == models.KeyTime {
			d := *in.DurationDays
			key.DurationDays = &d
		}
		if in.KeyType == models.KeyUses {
			u := *in.MaxUses
			key.MaxUses = &u
		}
		batch = append(batch, key)
	}
	if err := k.st.Keys().CreateBatch(ctx, batch); err != nil {
		return nil, apperr.Internal(err)
	}
	k.metrics.KeysGenerated(len(batch))
	return &GenerateResult{Count: len(batch), Keys: values}, nil
}

// Redeem runs the key-login state machine. On the first redemption it
// creates a user and atomically binds the key to them; afterwards it is a
// re-login for the bound user. The returned key is non-nil for every
// failure past the lookup so callers can audit against the bound user.
//
// The first-activation bind is a store-level compare-and-set: of N
// concurrent redemptions of a fresh key, exactly one creates a user; the
// losers either re-login as that user or fail MAX_ACTIVATIONS.
func (k *Keys) Redeem(ctx context.Context, app *models.App, keyValue, presentedHwid string) (*models.User, *models.Key, error) {
	key, err := k.st.Keys().ByValue(ctx, app.ID, keyValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.Unauthorized(CodeInvalidKey, "invalid license key")
		}
		return nil, nil, apperr.Internal(err)
	}
	if !key.IsActive {
		return nil, key, apperr.Forbidden(CodeKeyDisabled, "this license key has been disabled")
	}
	now := time.Now()
	if key.KeyType == models.KeyTime && key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, key, apperr.Forbidden(CodeKeyExpired, "this license key has expired")
	}
	if key.KeyType == models.KeyUses && key.MaxUses != nil && key.CurrentUses >= *key.MaxUses {
		return nil, key, apperr.Forbidden(CodeKeyNoUses, "this license key has no remaining uses")
	}

	var user *models.User
	if key.UserID == nil {
		user, err = k.activate(ctx, app, key, presentedHwid, now)
		if err != nil {
			return nil, key, err
		}
	} else {
		user, err = k.st.Users().ByID(ctx, *key.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, key, apperr.Unauthorized(CodeInvalidKey, "invalid license key")
			}
			return nil, key, apperr.Internal(err)
		}
		if err := k.hwid.CheckAndBind(ctx, user, presentedHwid, app.HwidLock, "Key login HWID registration"); err != nil {
			return user, key, err
		}
	}

	if key.KeyType == models.KeyUses {
		if err := k.st.Keys().IncrementUses(ctx, key.ID); err != nil {
			return user, key, apperr.Internal(err)
		}
		key.CurrentUses++
	}
	return user, key, nil
}

// activate handles the never-bound branch: create the user, then try to win
// the atomic bind. The loser tears its provisional user down and resumes as
// a re-login against whoever won.
func (k *Keys) activate(ctx context.Context, app *models.App, key *models.Key, presentedHwid string, now time.Time) (*models.User, error) {
	if key.CurrentActivations >= key.MaxActivations {
		return nil, apperr.Forbidden(CodeMaxActivations, "this key has reached maximum activations")
	}

	var expiresAt *time.Time
	if key.KeyType == models.KeyTime && key.DurationDays != nil {
		t := now.Add(time.Duration(*key.DurationDays) * 24 * time.Hour)
		expiresAt = &t
	}

	user := &models.User{
		AppID:     app.ID,
		Username:  usernameFromKey(key.KeyValue),
		ExpiresAt: expiresAt,
	}
	if presentedHwid != "" {
		user.Hwid = crypto.HashHwid(presentedHwid)
	}
	if err := k.st.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// A concurrent redemption of the same key created this username
			// first; fall through to the race-loss path.
			return k.resumeAfterLoss(ctx, app, key, presentedHwid)
		}
		return nil, apperr.Internal(err)
	}

	won, err := k.st.Keys().Bind(ctx, key.ID, user.ID, now, expiresAt)
	if err != nil {
		_ = k.st.Users().Delete(ctx, user.ID)
		return nil, apperr.Internal(err)
	}
	if !won {
		// Lost the race. Remove the provisional user and re-read the key to
		// find out whether someone else bound it or activations ran out.
		if err := k.st.Users().Delete(ctx, user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			k.lg.Warnw("provisional user cleanup failed", "user_id", user.ID, "error", err)
		}
		return k.resumeAfterLoss(ctx, app, key, presentedHwid)
	}

	key.UserID = &user.ID
	key.ActivatedAt = &now
	key.CurrentActivations++
	key.ExpiresAt = copyTime(expiresAt)
	if user.Hwid != "" {
		if err := k.st.Logs().AddHwid(ctx, &models.HwidLog{
			UserID:  user.ID,
			NewHwid: user.Hwid,
			Reason:  "Key activation HWID registration",
		}); err != nil {
			return nil, apperr.Internal(err)
		}
	}
	return user, nil
}

// resumeAfterLoss resolves a lost first-activation race as a re-login
// against whoever won, or MAX_ACTIVATIONS when nobody could bind. key is
// refreshed in place so the caller sees the winner's state.
func (k *Keys) resumeAfterLoss(ctx context.Context, app *models.App, key *models.Key, presentedHwid string) (*models.User, error) {
	fresh, err := k.st.Keys().ByID(ctx, key.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if fresh.UserID == nil {
		return nil, apperr.Forbidden(CodeMaxActivations, "this key has reached maximum activations")
	}
	bound, err := k.st.Users().ByID(ctx, *fresh.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := k.hwid.CheckAndBind(ctx, bound, presentedHwid, app.HwidLock, "Key login HWID registration"); err != nil {
		return nil, err
	}
	*key = *fresh
	return bound, nil
}

// ActivationResult is returned by ActivateForUser.
type ActivationResult struct {
	ExpiresAt *time.Time
	KeyType   models.KeyType
}

// ActivateForUser binds a still-unbound key to an already-authenticated
// user, extending their subscription under the same TIME/LIFETIME rules.
// The bind shares the atomicity guarantee of Redeem.
func (k *Keys) ActivateForUser(ctx context.Context, userID, keyValue string) (*ActivationResult, error) {
	user, err := k.st.Users().ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeUserNotFound, "user not found")
		}
		return nil, apperr.Internal(err)
	}
	key, err := k.st.Keys().ByValue(ctx, user.AppID, keyValue)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeInvalidKey, "invalid or already used key")
		}
		return nil, apperr.Internal(err)
	}
	if key.UserID != nil {
		return nil, apperr.NotFound(CodeInvalidKey, "invalid or already used key")
	}
	if !key.IsActive {
		return nil, apperr.Forbidden(CodeKeyDisabled, "key is disabled")
	}
	if key.CurrentActivations >= key.MaxActivations {
		return nil, apperr.Forbidden(CodeMaxActivations, "key has reached maximum activations")
	}

	now := time.Now()
	var expiresAt *time.Time
	switch key.KeyType {
	case models.KeyTime:
		if key.DurationDays != nil {
			t := now.Add(time.Duration(*key.DurationDays) * 24 * time.Hour)
			expiresAt = &t
		}
	case models.KeyLifetime:
		expiresAt = nil
	default:
		expiresAt = user.ExpiresAt
	}

	won, err := k.st.Keys().Bind(ctx, key.ID, userID, now, expiresAt)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !won {
		return nil, apperr.NotFound(CodeInvalidKey, "invalid or already used key")
	}
	if err := k.st.Users().SetExpiry(ctx, userID, expiresAt); err != nil {
		return nil, apperr.Internal(err)
	}
	return &ActivationResult{ExpiresAt: copyTime(expiresAt), KeyType: key.KeyType}, nil
}

// Toggle flips the admin kill-switch and reports the new state.
func (k *Keys) Toggle(ctx context.Context, keyID string) (bool, error) {
	key, err := k.st.Keys().ByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, apperr.NotFound(CodeKeyNotFound, "key not found")
		}
		return false, apperr.Internal(err)
	}
	next := !key.IsActive
	if err := k.st.Keys().SetActive(ctx, keyID, next); err != nil {
		return false, apperr.Internal(err)
	}
	return next, nil
}

// ResetHwidByKey resets the hardware binding of the key's bound user.
func (k *Keys) ResetHwidByKey(ctx context.Context, keyID, adminID string) (string, error) {
	key, err := k.st.Keys().ByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.NotFound(CodeKeyNotFound, "key not found")
		}
		return "", apperr.Internal(err)
	}
	if key.UserID == nil {
		return "", apperr.Invalid(CodeKeyNoUser, "key has no associated user")
	}
	return k.hwid.AdminReset(ctx, *key.UserID, adminID)
}

func (k *Keys) List(ctx context.Context, f store.KeyFilter) ([]models.Key, int64, error) {
	keys, total, err := k.st.Keys().List(ctx, f)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return keys, total, nil
}

func (k *Keys) Get(ctx context.Context, keyID string) (*models.Key, error) {
	key, err := k.st.Keys().ByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(CodeKeyNotFound, "key not found")
		}
		return nil, apperr.Internal(err)
	}
	return key, nil
}

func (k *Keys) Delete(ctx context.Context, keyID string) error {
	if err := k.st.Keys().Delete(ctx, keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(CodeKeyNotFound, "key not found")
		}
		return apperr.Internal(err)
	}
	return nil
}

func (k *Keys) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	n, err := k.st.Keys().DeleteMany(ctx, ids)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	return n, nil
}

// usernameFromKey synthesizes a stable username for implicitly created
// key users: "key_" plus the first two random segments of the key value.
func usernameFromKey(keyValue string) string {
	trimmed := strings.TrimPrefix(keyValue, crypto.KeyPrefix+"-")
	segs := strings.SplitN(trimmed, "-", 3)
	id := segs[0]
	if len(segs) > 1 {
		id += segs[1]
	}
	return "key_" + strings.ToLower(id)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
