package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
	KindAdmin   = "admin"
)

// Manager signs and verifies the HS256 tokens used for client sessions and
// admin logins. The secret is injected explicitly; there is no environment
// fallback and no default.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	adminTTL   time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL, adminTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		adminTTL:   adminTTL,
	}
}

// IssueAccess signs an access token bound to (user, app, session).
func (m *Manager) IssueAccess(userID, appID, sessionID string) (string, error) {
	return m.sign(KindAccess, userID, appID, sessionID, m.accessTTL)
}

// IssueRefresh signs a refresh token bound to the same triple.
func (m *Manager) IssueRefresh(userID, appID, sessionID string) (string, error) {
	return m.sign(KindRefresh, userID, appID, sessionID, m.refreshTTL)
}

// IssueAdmin signs an operator token.
func (m *Manager) IssueAdmin(adminID string) (string, error) {
	return m.sign(KindAdmin, adminID, "", "", m.adminTTL)
}

func (m *Manager) sign(kind, sub, appID, sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  sub,
		"kind": kind,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
	}
	if appID != "" {
		claims["app"] = appID
	}
	if sessionID != "" {
		claims["sid"] = sessionID
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenStr string) (Claims, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return Claims{}, errors.New("invalid token")
	}
	mapc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, _ := mapc["sub"].(string)
	kind, _ := mapc["kind"].(string)
	app, _ := mapc["app"].(string)
	sid, _ := mapc["sid"].(string)
	if sub == "" || kind == "" {
		return Claims{}, errors.New("invalid claims")
	}
	return Claims{Subject: sub, Kind: kind, AppID: app, SessionID: sid}, nil
}
