package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gouauth/internal/apperr"
	"gouauth/internal/auth"
	"gouauth/internal/metrics"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Sessions is the admission controller for login grants. Logins never fail
// on session pressure; the oldest session is evicted to make room instead.
type Sessions struct {
	st      store.Store
	tokens  *auth.Manager
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewSessions(st store.Store, tokens *auth.Manager, ttl time.Duration, m *metrics.Metrics) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{st: st, tokens: tokens, ttl: ttl, metrics: m}
}

// SessionBundle is what a successful login hands back to the client.
type SessionBundle struct {
	ID           string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Admit makes room under the app's concurrent-session ceiling: when the
// user's non-expired session count has reached the ceiling, the single
// oldest session (by creation time) is evicted. Two concurrent logins both
// deciding to evict is a benign race; the delete is idempotent.
func (s *Sessions) Admit(ctx context.Context, userID string, appMaxSessions int) error {
	if appMaxSessions < 1 {
		appMaxSessions = 1
	}
	count, err := s.st.Sessions().CountActive(ctx, userID, time.Now())
	if err != nil {
		return apperr.Internal(err)
	}
	if count < int64(appMaxSessions) {
		return nil
	}
	oldest, err := s.st.Sessions().Oldest(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperr.Internal(err)
	}
	if err := s.st.Sessions().Delete(ctx, oldest.ID); err != nil {
		return apperr.Internal(err)
	}
	s.metrics.SessionEvicted()
	return nil
}

// Create allocates a session with a fixed expiry window and issues the
// access/refresh token pair bound to (user, app, session).
func (s *Sessions) Create(ctx context.Context, userID, appID, hashedHwid, ipAddress string) (*SessionBundle, error) {
	sessionID := uuid.NewString()
	expiresAt := time.Now().Add(s.ttl)

	access, err := s.tokens.IssueAccess(userID, appID, sessionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, err := s.tokens.IssueRefresh(userID, appID, sessionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.st.Sessions().Create(ctx, &models.Session{
		ID:        sessionID,
		UserID:    userID,
		AppID:     appID,
		Token:     access,
		Hwid:      hashedHwid,
		IPAddress: ipAddress,
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, apperr.Internal(err)
	}
	return &SessionBundle{
		ID:           sessionID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// Destroy removes a session. Absence is not an error.
func (s *Sessions) Destroy(ctx context.Context, sessionID string) error {
	if err := s.st.Sessions().Delete(ctx, sessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err)
	}
	return nil
}

// SessionInfo is the result of validating a session id.
type SessionInfo struct {
	User             *models.User
	SessionExpiresAt time.Time
}

// Validate resolves a session id to its user. Expired sessions are removed
// as a side effect.
func (s *Sessions) Validate(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.st.Sessions().ByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized(CodeSessionNotFound, "session not found")
		}
		return nil, apperr.Internal(err)
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.st.Sessions().Delete(ctx, sessionID)
		return nil, apperr.Unauthorized(CodeSessionExpired, "session expired")
	}
	user, err := s.st.Users().ByID(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &SessionInfo{User: user, SessionExpiresAt: sess.ExpiresAt}, nil
}
