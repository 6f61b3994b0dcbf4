// Package gormstore implements store.Store on GORM. Production runs it on
// Postgres; the tests run the same code on sqlite. The first-activation
// race on keys is closed by a single conditional UPDATE whose affected-row
// count decides the winner.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"gouauth/internal/models"
	"gouauth/internal/store"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

// AutoMigrate creates/updates the schema for all licensing tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Admin{},
		&models.App{},
		&models.User{},
		&models.Key{},
		&models.Session{},
		&models.HwidLog{},
		&models.LoginLog{},
	)
}

func (s *Store) Apps() store.AppRepo         { return appRepo{s.db} }
func (s *Store) Users() store.UserRepo       { return userRepo{s.db} }
func (s *Store) Keys() store.KeyRepo         { return keyRepo{s.db} }
func (s *Store) Sessions() store.SessionRepo { return sessionRepo{s.db} }
func (s *Store) Logs() store.LogRepo         { return logRepo{s.db} }
func (s *Store) Admins() store.AdminRepo     { return adminRepo{s.db} }
func (s *Store) Stats() store.StatsRepo      { return statsRepo{s.db} }

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrConflict
	case strings.Contains(strings.ToLower(err.Error()), "unique"):
		return store.ErrConflict
	default:
		return err
	}
}

// ---- apps ----

type appRepo struct{ db *gorm.DB }

func (r appRepo) Create(ctx context.Context, app *models.App) error {
	return translate(r.db.WithContext(ctx).Create(app).Error)
}

func (r appRepo) ByID(ctx context.Context, id string) (*models.App, error) {
	var app models.App
	if err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

func (r appRepo) ByAdmin(ctx context.Context, adminID string) ([]models.App, error) {
	var apps []models.App
	err := r.db.WithContext(ctx).
		Where("admin_id = ?", adminID).
		Order("created_at desc").
		Find(&apps).Error
	return apps, translate(err)
}

func (r appRepo) Update(ctx context.Context, app *models.App) error {
	res := r.db.WithContext(ctx).Model(&models.App{}).Where("id = ?", app.ID).
		Updates(map[string]any{
			"name":         app.Name,
			"status":       app.Status,
			"min_version":  app.MinVersion,
			"hwid_lock":    app.HwidLock,
			"max_sessions": app.MaxSessions,
			"secret_key":   app.SecretKey,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r appRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var userIDs []string
		if err := tx.Model(&models.User{}).Where("app_id = ?", id).Pluck("id", &userIDs).Error; err != nil {
			return err
		}
		if len(userIDs) > 0 {
			if err := tx.Where("user_id IN ?", userIDs).Delete(&models.Session{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("app_id = ?", id).Delete(&models.Key{}).Error; err != nil {
			return err
		}
		if err := tx.Where("app_id = ?", id).Delete(&models.User{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.App{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ---- users ----

type userRepo struct{ db *gorm.DB }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r userRepo) ByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) ByUsername(ctx context.Context, appID, username string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "app_id = ? AND username = ?", appID, username).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) ByEmail(ctx context.Context, appID, email string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "app_id = ? AND email = ?", appID, email).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r userRepo) List(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{}).Where("app_id = ?", f.AppID)
	if f.IsBanned != nil {
		q = q.Where("is_banned = ?", *f.IsBanned)
	}
	if f.Search != "" {
		pat := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", pat, pat)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	var users []models.User
	err := q.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&users).Error
	return users, total, translate(err)
}

func (r userRepo) SetHwid(ctx context.Context, id, hwid string) error {
	return r.update(ctx, id, map[string]any{"hwid": hwid})
}

func (r userRepo) SetBan(ctx context.Context, id string, banned bool, reason string) error {
	return r.update(ctx, id, map[string]any{"is_banned": banned, "ban_reason": reason})
}

func (r userRepo) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	return r.update(ctx, id, map[string]any{"expires_at": expiresAt})
}

func (r userRepo) update(ctx context.Context, id string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r userRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Key{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ---- keys ----

type keyRepo struct{ db *gorm.DB }

func (r keyRepo) CreateBatch(ctx context.Context, keys []models.Key) error {
	return translate(r.db.WithContext(ctx).Create(&keys).Error)
}

func (r keyRepo) ByID(ctx context.Context, id string) (*models.Key, error) {
	var k models.Key
	if err := r.db.WithContext(ctx).First(&k, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &k, nil
}

func (r keyRepo) ByValue(ctx context.Context, appID, keyValue string) (*models.Key, error) {
	var k models.Key
	err := r.db.WithContext(ctx).First(&k, "app_id = ? AND key_value = ?", appID, keyValue).Error
	if err != nil {
		return nil, translate(err)
	}
	return &k, nil
}

func (r keyRepo) List(ctx context.Context, f store.KeyFilter) ([]models.Key, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Key{}).Where("app_id = ?", f.AppID)
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	if f.KeyType != "" {
		q = q.Where("key_type = ?", f.KeyType)
	}
	if f.IsUsed != nil {
		if *f.IsUsed {
			q = q.Where("user_id IS NOT NULL")
		} else {
			q = q.Where("user_id IS NULL")
		}
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	var keys []models.Key
	err := q.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&keys).Error
	return keys, total, translate(err)
}

// Bind is the compare-and-set at the heart of key activation. The WHERE
// clause carries the whole invariant; callers that see false lost the race
// or the key is already bound.
func (r keyRepo) Bind(ctx context.Context, keyID, userID string, activatedAt time.Time, expiresAt *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Key{}).
		Where("id = ? AND user_id IS NULL AND current_activations < max_activations", keyID).
		Updates(map[string]any{
			"user_id":             userID,
			"activated_at":        activatedAt,
			"current_activations": gorm.Expr("current_activations + 1"),
			"expires_at":          expiresAt,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r keyRepo) IncrementUses(ctx context.Context, keyID string) error {
	res := r.db.WithContext(ctx).Model(&models.Key{}).
		Where("id = ?", keyID).
		Update("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r keyRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Key{}).Where("user_id = ?", userID).Count(&n).Error
	return n, translate(err)
}

func (r keyRepo) SetActive(ctx context.Context, keyID string, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Key{}).Where("id = ?", keyID).Update("is_active", active)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r keyRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Key{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r keyRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Key{}, "id IN ?", ids)
	return res.RowsAffected, translate(res.Error)
}

// ---- sessions ----

type sessionRepo struct{ db *gorm.DB }

func (r sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r sessionRepo) ByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Session{}, "id = ?", id).Error)
}

func (r sessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Session{}, "user_id = ?", userID).Error)
}

func (r sessionRepo) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Count(&n).Error
	return n, translate(err)
}

func (r sessionRepo) Oldest(ctx context.Context, userID string) (*models.Session, error) {
	var s models.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at asc").
		First(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// ---- logs ----

type logRepo struct{ db *gorm.DB }

func (r logRepo) AddLogin(ctx context.Context, l *models.LoginLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return translate(r.db.WithContext(ctx).Create(l).Error)
}

func (r logRepo) AddHwid(ctx context.Context, l *models.HwidLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	return translate(r.db.WithContext(ctx).Create(l).Error)
}

func (r logRepo) Logins(ctx context.Context, f store.LoginLogFilter) ([]models.LoginLog, error) {
	q := r.db.WithContext(ctx).Model(&models.LoginLog{})
	if f.AppID != "" {
		q = q.Where("app_id = ?", f.AppID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	limit := f.Limit
	if limit < 1 {
		limit = 200
	}
	var logs []models.LoginLog
	err := q.Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, translate(err)
}

func (r logRepo) Hwids(ctx context.Context, userID string, limit int) ([]models.HwidLog, error) {
	if limit < 1 {
		limit = 200
	}
	var logs []models.HwidLog
	q := r.db.WithContext(ctx).Model(&models.HwidLog{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, translate(err)
}

// ---- admins ----

type adminRepo struct{ db *gorm.DB }

func (r adminRepo) Create(ctx context.Context, a *models.Admin) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r adminRepo) ByID(ctx context.Context, id string) (*models.Admin, error) {
	var a models.Admin
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r adminRepo) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	var a models.Admin
	if err := r.db.WithContext(ctx).First(&a, "username = ?", username).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r adminRepo) Update(ctx context.Context, a *models.Admin) error {
	a.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&models.Admin{}).Where("id = ?", a.ID).
		Updates(map[string]any{
			"email":         a.Email,
			"password_hash": a.PasswordHash,
			"updated_at":    a.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ---- stats ----

type statsRepo struct{ db *gorm.DB }

func (r statsRepo) App(ctx context.Context, appID string, now time.Time) (*store.AppStats, error) {
	st := &store.AppStats{}
	db := r.db.WithContext(ctx)
	counts := []struct {
		dst *int64
		q   *gorm.DB
	}{
		{&st.TotalUsers, db.Model(&models.User{}).Where("app_id = ?", appID)},
		{&st.ActiveUsers, db.Model(&models.User{}).Where("app_id = ? AND is_banned = ? AND (expires_at IS NULL OR expires_at > ?)", appID, false, now)},
		{&st.BannedUsers, db.Model(&models.User{}).Where("app_id = ? AND is_banned = ?", appID, true)},
		{&st.ExpiredUsers, db.Model(&models.User{}).Where("app_id = ? AND expires_at < ?", appID, now)},
		{&st.TotalKeys, db.Model(&models.Key{}).Where("app_id = ?", appID)},
		{&st.UsedKeys, db.Model(&models.Key{}).Where("app_id = ? AND user_id IS NOT NULL", appID)},
		{&st.OnlineSessions, db.Model(&models.Session{}).Where("app_id = ? AND expires_at > ?", appID, now)},
		{&st.LoginsToday, db.Model(&models.LoginLog{}).Where("app_id = ? AND success = ? AND created_at > ?", appID, true, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))},
		{&st.LoginsWeek, db.Model(&models.LoginLog{}).Where("app_id = ? AND success = ? AND created_at > ?", appID, true, now.AddDate(0, 0, -7))},
		{&st.LoginsMonth, db.Model(&models.LoginLog{}).Where("app_id = ? AND success = ? AND created_at > ?", appID, true, now.AddDate(0, 0, -30))},
	}
	for _, c := range counts {
		if err := c.q.Count(c.dst).Error; err != nil {
			return nil, translate(err)
		}
	}
	return st, nil
}

func (r statsRepo) CountUsers(ctx context.Context, appID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("app_id = ?", appID).Count(&n).Error
	return n, translate(err)
}

func (r statsRepo) CountKeys(ctx context.Context, appID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Key{}).Where("app_id = ?", appID).Count(&n).Error
	return n, translate(err)
}
