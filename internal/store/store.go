// Package store defines the persistence boundary of the licensing core.
// Services only ever see these interfaces; the gormstore implementation
// backs production on Postgres and memstore backs tests. The contract the
// core leans on is that KeyRepo.Bind is a single atomic conditional update:
// races on first activation of a key are closed here, not in process.
package store

import (
	"context"
	"errors"
	"time"

	"gouauth/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up entity does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned on uniqueness violations.
	ErrConflict = errors.New("store: conflict")
)

type Store interface {
	Apps() AppRepo
	Users() UserRepo
	Keys() KeyRepo
	Sessions() SessionRepo
	Logs() LogRepo
	Admins() AdminRepo
	Stats() StatsRepo
}

type AppRepo interface {
	Create(ctx context.Context, app *models.App) error
	ByID(ctx context.Context, id string) (*models.App, error)
	ByAdmin(ctx context.Context, adminID string) ([]models.App, error)
	Update(ctx context.Context, app *models.App) error
	Delete(ctx context.Context, id string) error
}

type UserFilter struct {
	AppID    string
	IsBanned *bool
	Search   string
	Page     int
	Limit    int
}

type UserRepo interface {
	Create(ctx context.Context, user *models.User) error
	ByID(ctx context.Context, id string) (*models.User, error)
	ByUsername(ctx context.Context, appID, username string) (*models.User, error)
	ByEmail(ctx context.Context, appID, email string) (*models.User, error)
	List(ctx context.Context, f UserFilter) ([]models.User, int64, error)
	SetHwid(ctx context.Context, id, hwid string) error
	SetBan(ctx context.Context, id string, banned bool, reason string) error
	SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type KeyFilter struct {
	AppID    string
	IsActive *bool
	KeyType  models.KeyType
	IsUsed   *bool
	Page     int
	Limit    int
}

type KeyRepo interface {
	CreateBatch(ctx context.Context, keys []models.Key) error
	ByID(ctx context.Context, id string) (*models.Key, error)
	ByValue(ctx context.Context, appID, keyValue string) (*models.Key, error)
	List(ctx context.Context, f KeyFilter) ([]models.Key, int64, error)
	// Bind performs the atomic first-activation write: it sets user_id,
	// activated_at and expires_at and increments current_activations, but
	// only while user_id is still null and current_activations is below
	// max_activations. It reports whether this caller won the bind.
	Bind(ctx context.Context, keyID, userID string, activatedAt time.Time, expiresAt *time.Time) (bool, error)
	IncrementUses(ctx context.Context, keyID string) error
	// CountByUser reports how many keys are bound to a user; zero means
	// the account has never activated a key.
	CountByUser(ctx context.Context, userID string) (int64, error)
	SetActive(ctx context.Context, keyID string, active bool) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type SessionRepo interface {
	Create(ctx context.Context, s *models.Session) error
	ByID(ctx context.Context, id string) (*models.Session, error)
	// Delete is idempotent; deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
	CountActive(ctx context.Context, userID string, now time.Time) (int64, error)
	Oldest(ctx context.Context, userID string) (*models.Session, error)
}

type LoginLogFilter struct {
	AppID  string
	UserID string
	Limit  int
}

type LogRepo interface {
	AddLogin(ctx context.Context, l *models.LoginLog) error
	AddHwid(ctx context.Context, l *models.HwidLog) error
	Logins(ctx context.Context, f LoginLogFilter) ([]models.LoginLog, error)
	Hwids(ctx context.Context, userID string, limit int) ([]models.HwidLog, error)
}

type AdminRepo interface {
	Create(ctx context.Context, a *models.Admin) error
	ByID(ctx context.Context, id string) (*models.Admin, error)
	ByUsername(ctx context.Context, username string) (*models.Admin, error)
	Update(ctx context.Context, a *models.Admin) error
}

type AppStats struct {
	TotalUsers     int64
	ActiveUsers    int64
	BannedUsers    int64
	ExpiredUsers   int64
	TotalKeys      int64
	UsedKeys       int64
	OnlineSessions int64
	LoginsToday    int64
	LoginsWeek     int64
	LoginsMonth    int64
}

type StatsRepo interface {
	App(ctx context.Context, appID string, now time.Time) (*AppStats, error)
	CountUsers(ctx context.Context, appID string) (int64, error)
	CountKeys(ctx context.Context, appID string) (int64, error)
}
