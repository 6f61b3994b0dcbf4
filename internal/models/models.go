package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppStatus string

const (
	AppOnline      AppStatus = "ONLINE"
	AppOffline     AppStatus = "OFFLINE"
	AppMaintenance AppStatus = "MAINTENANCE"
)

type KeyType string

const (
	KeyTime     KeyType = "TIME"
	KeyLifetime KeyType = "LIFETIME"
	KeyUses     KeyType = "USES"
)

// Admin is an operator account for the dashboard/API, not an end user.
type Admin struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// App is the tenant boundary. Users, keys and sessions belong to exactly
// one app and every query is scoped by app id.
type App struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	AdminID     string    `gorm:"type:uuid;index;not null" json:"admin_id"`
	Name        string    `gorm:"not null" json:"name"`
	SecretKey   string    `gorm:"not null" json:"-"`
	Status      AppStatus `gorm:"not null;default:ONLINE" json:"status"`
	MinVersion  string    `json:"min_version"`
	HwidLock    bool      `gorm:"not null;default:true" json:"hwid_lock"`
	MaxSessions int       `gorm:"not null;default:1" json:"max_sessions"`
	Users       []User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Keys        []Key     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (a *App) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AppOnline
	}
	if a.MaxSessions < 1 {
		a.MaxSessions = 1
	}
	return nil
}

// User is an end-user identity scoped to one app. PasswordHash is empty for
// users created implicitly by key redemption; Hwid holds the one-way hashed
// hardware fingerprint (empty = not bound). ExpiresAt nil means the user has
// never activated a subscription (or holds a lifetime one via a key).
type User struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	AppID        string     `gorm:"type:uuid;not null;index:idx_users_app_username,unique" json:"app_id"`
	Username     string     `gorm:"not null;index:idx_users_app_username,unique" json:"username"`
	Email        *string    `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Hwid         string     `json:"hwid,omitempty"`
	IsBanned     bool       `gorm:"not null;default:false" json:"is_banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Sessions     []Session  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Keys         []Key      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	HwidLogs     []HwidLog  `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	LoginLogs    []LoginLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Key is a redeemable license token. UserID is set once on first activation
// and never rebound except by admin intervention.
type Key struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	AppID              string     `gorm:"type:uuid;index;not null" json:"app_id"`
	KeyValue           string     `gorm:"uniqueIndex;not null" json:"key_value"`
	KeyType            KeyType    `gorm:"not null" json:"key_type"`
	DurationDays       *int       `json:"duration_days,omitempty"`
	MaxUses            *int       `json:"max_uses,omitempty"`
	CurrentUses        int        `gorm:"not null;default:0" json:"current_uses"`
	MaxActivations     int        `gorm:"not null;default:1" json:"max_activations"`
	CurrentActivations int        `gorm:"not null;default:0" json:"current_activations"`
	IsActive           bool       `gorm:"not null;default:true" json:"is_active"`
	UserID             *string    `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Note               string     `json:"note,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (k *Key) BeforeCreate(tx *gorm.DB) error {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	if k.MaxActivations < 1 {
		k.MaxActivations = 1
	}
	return nil
}

// Session is a time-boxed login grant. ExpiresAt is a fixed window from
// creation, not sliding.
type Session struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	AppID     string    `gorm:"type:uuid;index;not null" json:"app_id"`
	Token     string    `gorm:"not null" json:"-"`
	Hwid      string    `json:"hwid,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// HwidLog records every hardware-id transition. Append-only.
type HwidLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	OldHwid   *string   `json:"old_hwid,omitempty"`
	NewHwid   string    `gorm:"not null" json:"new_hwid"`
	Reason    string    `json:"reason"`
	ResetBy   *string   `gorm:"type:uuid" json:"reset_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginLog records every authentication attempt, success or failure.
// UserID is nil when the identity never resolved (unknown username or key).
// Append-only.
type LoginLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	AppID         string    `gorm:"type:uuid;index;not null" json:"app_id"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Hwid          string    `json:"hwid,omitempty"`
	Success       bool      `gorm:"not null" json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
