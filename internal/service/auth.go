package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gouauth/internal/apperr"
	"gouauth/internal/crypto"
	"gouauth/internal/metrics"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Auth is the orchestrator for the three entry flows: password login, key
// redemption login and registration. Each flow is a fail-fast chain; every
// rejection on the login paths is audited before it is returned.
type Auth struct {
	st       store.Store
	keys     *Keys
	sessions *Sessions
	hwid     *HwidBinder
	verify   func(password, digest string) bool
	metrics  *metrics.Metrics
	lg       *zap.SugaredLogger
}

func NewAuth(st store.Store, keys *Keys, sessions *Sessions, hwid *HwidBinder, verify func(password, digest string) bool, m *metrics.Metrics, lg *zap.SugaredLogger) *Auth {
	return &Auth{st: st, keys: keys, sessions: sessions, hwid: hwid, verify: verify, metrics: m, lg: lg}
}

type LoginInput struct {
	Username  string
	Password  string
	Hwid      string
	AppID     string
	IPAddress string
}

type UserSummary struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               *string    `json:"email,omitempty"`
	SubscriptionExpires *time.Time `json:"subscription_expires,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

type LoginResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	SessionID    string      `json:"session_id"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         UserSummary `json:"user"`
}

type KeyLoginResult struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refresh_token"`
	SessionID    string         `json:"session_id"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         UserSummary    `json:"user"`
	KeyType      models.KeyType `json:"key_type"`
}

// Login authenticates a username/password pair against an app. OFFLINE and
// MAINTENANCE status are rejected with distinct codes; key login is
// stricter and requires exactly ONLINE.
func (a *Auth) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	hashedHwid := ""
	if in.Hwid != "" {
		hashedHwid = crypto.HashHwid(in.Hwid)
	}
	app, err := a.st.Apps().ByID(ctx, in.AppID)
	if err != nil {
		return nil, a.failLogin(metrics.FlowLogin, appLookupErr(err))
	}
	if app.Status == models.AppOffline {
		return nil, a.auditFail(ctx, metrics.FlowLogin, nil, in.AppID, in.IPAddress, hashedHwid, "App is currently offline",
			apperr.Forbidden(CodeAppOffline, "app is currently offline"))
	}
	if app.Status == models.AppMaintenance {
		return nil, a.auditFail(ctx, metrics.FlowLogin, nil, in.AppID, in.IPAddress, hashedHwid, "App is under maintenance",
			apperr.Forbidden(CodeAppMaintenance, "app is under maintenance"))
	}

	user, err := a.st.Users().ByUsername(ctx, in.AppID, in.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, a.auditFail(ctx, metrics.FlowLogin, nil, in.AppID, in.IPAddress, hashedHwid, "Invalid credentials",
			apperr.Unauthorized(CodeInvalidCreds, "invalid username or password"))
	}
	if user.IsBanned {
		reason := user.BanReason
		if reason == "" {
			reason = "No reason provided"
		}
		return nil, a.auditFail(ctx, metrics.FlowLogin, &user.ID, in.AppID, in.IPAddress, hashedHwid, "User banned",
			apperr.Forbidden(CodeUserBanned, fmt.Sprintf("account banned: %s", reason)))
	}
	if !a.verify(in.Password, user.PasswordHash) {
		return nil, a.auditFail(ctx, metrics.FlowLogin, &user.ID, in.AppID, in.IPAddress, hashedHwid, "Invalid password",
			apperr.Unauthorized(CodeInvalidCreds, "invalid username or password"))
	}
	expired := user.ExpiresAt != nil && user.ExpiresAt.Before(time.Now())
	if !expired && user.ExpiresAt == nil {
		// No expiry either means a lifetime key or an account that never
		// activated anything. Registration alone grants no access, so the
		// distinction is whether any key is bound to the account.
		bound, err := a.st.Keys().CountByUser(ctx, user.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		expired = bound == 0
	}
	if expired {
		return nil, a.auditFail(ctx, metrics.FlowLogin, &user.ID, in.AppID, in.IPAddress, hashedHwid, "Subscription expired",
			apperr.Forbidden(CodeSubExpired, "your subscription has expired"))
	}
	if err := a.hwid.CheckAndBind(ctx, user, in.Hwid, app.HwidLock, "First login HWID registration"); err != nil {
		e := apperr.From(err)
		if e != nil && e.Code == CodeHwidMismatch {
			return nil, a.auditFail(ctx, metrics.FlowLogin, &user.ID, in.AppID, in.IPAddress, hashedHwid, "HWID mismatch", e)
		}
		return nil, err
	}

	if err := a.sessions.Admit(ctx, user.ID, app.MaxSessions); err != nil {
		return nil, err
	}
	bundle, err := a.sessions.Create(ctx, user.ID, in.AppID, hashedHwid, in.IPAddress)
	if err != nil {
		return nil, err
	}
	if err := a.audit(ctx, &user.ID, in.AppID, in.IPAddress, hashedHwid, true, ""); err != nil {
		return nil, err
	}
	a.metrics.Attempt(metrics.FlowLogin, "")

	return &LoginResult{
		Token:        bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		SessionID:    bundle.ID,
		ExpiresAt:    bundle.ExpiresAt,
		User:         summarize(user),
	}, nil
}

type KeyLoginInput struct {
	Key       string
	Hwid      string
	AppID     string
	IPAddress string
}

// KeyLogin redeems a license key: first use activates the key and creates
// its user, later uses are re-logins for the bound user.
func (a *Auth) KeyLogin(ctx context.Context, in KeyLoginInput) (*KeyLoginResult, error) {
	hashedHwid := ""
	if in.Hwid != "" {
		hashedHwid = crypto.HashHwid(in.Hwid)
	}
	app, err := a.st.Apps().ByID(ctx, in.AppID)
	if err != nil {
		return nil, a.failLogin(metrics.FlowKeyLogin, appLookupErr(err))
	}
	if app.Status != models.AppOnline {
		return nil, a.auditFail(ctx, metrics.FlowKeyLogin, nil, in.AppID, in.IPAddress, hashedHwid, "App is not available",
			apperr.Forbidden(CodeAppUnavailable, "app is not available"))
	}

	user, key, err := a.keys.Redeem(ctx, app, in.Key, in.Hwid)
	if err != nil {
		e := apperr.From(err)
		if e == nil || e.Kind == apperr.KindInternal {
			return nil, err
		}
		var userID *string
		if user != nil {
			userID = &user.ID
		} else if key != nil && key.UserID != nil {
			userID = key.UserID
		}
		return nil, a.auditFail(ctx, metrics.FlowKeyLogin, userID, in.AppID, in.IPAddress, hashedHwid, e.Message, e)
	}

	if err := a.sessions.Admit(ctx, user.ID, app.MaxSessions); err != nil {
		return nil, err
	}
	bundle, err := a.sessions.Create(ctx, user.ID, in.AppID, hashedHwid, in.IPAddress)
	if err != nil {
		return nil, err
	}
	if err := a.audit(ctx, &user.ID, in.AppID, in.IPAddress, hashedHwid, true, ""); err != nil {
		return nil, err
	}
	a.metrics.Attempt(metrics.FlowKeyLogin, "")

	return &KeyLoginResult{
		Token:        bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		SessionID:    bundle.ID,
		ExpiresAt:    bundle.ExpiresAt,
		User:         summarize(user),
		KeyType:      key.KeyType,
	}, nil
}

type RegisterInput struct {
	Username string
	Password string
	Email    string
	AppID    string
}

type RegisterResult struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Register creates a password account with no subscription. It does not
// create a session: the user has to activate a key before logging in.
func (a *Auth) Register(ctx context.Context, in RegisterInput, hash func(string) (string, error)) (*RegisterResult, error) {
	if _, err := a.st.Apps().ByID(ctx, in.AppID); err != nil {
		return nil, appLookupErr(err)
	}
	if _, err := a.st.Users().ByUsername(ctx, in.AppID, in.Username); err == nil {
		return nil, apperr.Conflict(CodeUsernameExists, "username already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if in.Email != "" {
		if _, err := a.st.Users().ByEmail(ctx, in.AppID, in.Email); err == nil {
			return nil, apperr.Conflict(CodeEmailExists, "email already registered")
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Internal(err)
		}
	}
	digest, err := hash(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	user := &models.User{
		AppID:        in.AppID,
		Username:     in.Username,
		PasswordHash: digest,
	}
	if in.Email != "" {
		email := in.Email
		user.Email = &email
	}
	if err := a.st.Users().Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Conflict(CodeUsernameExists, "username already taken")
		}
		return nil, apperr.Internal(err)
	}
	a.metrics.Attempt(metrics.FlowRegister, "")
	return &RegisterResult{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}, nil
}

// ActivateKey binds an unbound key to the authenticated user.
func (a *Auth) ActivateKey(ctx context.Context, userID, keyValue string) (*ActivationResult, error) {
	return a.keys.ActivateForUser(ctx, userID, keyValue)
}

// Logout destroys the session. Idempotent.
func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	return a.sessions.Destroy(ctx, sessionID)
}

// ValidateSession resolves a session id to its user.
func (a *Auth) ValidateSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	return a.sessions.Validate(ctx, sessionID)
}

// audit writes the mandatory LoginLog row for an attempt.
func (a *Auth) audit(ctx context.Context, userID *string, appID, ip, hashedHwid string, success bool, failureReason string) error {
	if err := a.st.Logs().AddLogin(ctx, &models.LoginLog{
		UserID:        userID,
		AppID:         appID,
		IPAddress:     ip,
		Hwid:          hashedHwid,
		Success:       success,
		FailureReason: failureReason,
	}); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// auditFail records the failure, bumps the outcome counter and returns the
// domain error unchanged. Audit-before-reject: if the audit write itself
// fails, the infrastructure error wins.
func (a *Auth) auditFail(ctx context.Context, flow string, userID *string, appID, ip, hashedHwid, reason string, domainErr *apperr.Error) error {
	if err := a.audit(ctx, userID, appID, ip, hashedHwid, false, reason); err != nil {
		return err
	}
	a.metrics.Attempt(flow, domainErr.Code)
	return domainErr
}

// failLogin covers the pre-audit failures (unknown app) where no LoginLog
// row can reference the tenant.
func (a *Auth) failLogin(flow string, err error) error {
	if e := apperr.From(err); e != nil {
		a.metrics.Attempt(flow, e.Code)
	}
	return err
}

func appLookupErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(CodeAppNotFound, "app not found")
	}
	return apperr.Internal(err)
}

func summarize(u *models.User) UserSummary {
	return UserSummary{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		SubscriptionExpires: copyTime(u.ExpiresAt),
		CreatedAt:           u.CreatedAt,
	}
}
