// Package memstore is an in-memory Store implementation. It backs the
// service tests and mirrors the atomicity contract of the SQL store: Bind
// is a single compare-and-set under the store mutex.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gouauth/internal/models"
	"gouauth/internal/store"
)

type Mem struct {
	mu       sync.Mutex
	apps     map[string]models.App
	users    map[string]models.User
	keys     map[string]models.Key
	sessions map[string]models.Session
	admins   map[string]models.Admin
	hwidLogs []models.HwidLog
	logins   []models.LoginLog

	seq        map[string]int64 // session id -> insertion order
	nextSeq    int64
	nextLogID  int64
	nextHwidID int64
}

func New() *Mem {
	return &Mem{
		apps:     map[string]models.App{},
		users:    map[string]models.User{},
		keys:     map[string]models.Key{},
		sessions: map[string]models.Session{},
		admins:   map[string]models.Admin{},
		seq:      map[string]int64{},
	}
}

func (m *Mem) Apps() store.AppRepo         { return appRepo{m} }
func (m *Mem) Users() store.UserRepo       { return userRepo{m} }
func (m *Mem) Keys() store.KeyRepo         { return keyRepo{m} }
func (m *Mem) Sessions() store.SessionRepo { return sessionRepo{m} }
func (m *Mem) Logs() store.LogRepo         { return logRepo{m} }
func (m *Mem) Admins() store.AdminRepo     { return adminRepo{m} }
func (m *Mem) Stats() store.StatsRepo      { return statsRepo{m} }

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func strPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyUser(u models.User) models.User {
	u.Email = strPtr(u.Email)
	u.ExpiresAt = timePtr(u.ExpiresAt)
	u.Sessions, u.Keys, u.HwidLogs, u.LoginLogs = nil, nil, nil, nil
	return u
}

func copyKey(k models.Key) models.Key {
	k.DurationDays = intPtr(k.DurationDays)
	k.MaxUses = intPtr(k.MaxUses)
	k.UserID = strPtr(k.UserID)
	k.ActivatedAt = timePtr(k.ActivatedAt)
	k.ExpiresAt = timePtr(k.ExpiresAt)
	return k
}

func intPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ---- apps ----

type appRepo struct{ m *Mem }

func (r appRepo) Create(ctx context.Context, app *models.App) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.AppOnline
	}
	if app.MaxSessions < 1 {
		app.MaxSessions = 1
	}
	now := time.Now()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now
	r.m.apps[app.ID] = *app
	return nil
}

func (r appRepo) ByID(ctx context.Context, id string) (*models.App, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	app, ok := r.m.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &app, nil
}

func (r appRepo) ByAdmin(ctx context.Context, adminID string) ([]models.App, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.App
	for _, a := range r.m.apps {
		if a.AdminID == adminID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r appRepo) Update(ctx context.Context, app *models.App) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.apps[app.ID]; !ok {
		return store.ErrNotFound
	}
	app.UpdatedAt = time.Now()
	r.m.apps[app.ID] = *app
	return nil
}

func (r appRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.apps[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.apps, id)
	for uid, u := range r.m.users {
		if u.AppID == id {
			delete(r.m.users, uid)
			for sid, s := range r.m.sessions {
				if s.UserID == uid {
					delete(r.m.sessions, sid)
				}
			}
		}
	}
	for kid, k := range r.m.keys {
		if k.AppID == id {
			delete(r.m.keys, kid)
		}
	}
	return nil
}

// ---- users ----

type userRepo struct{ m *Mem }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.AppID == user.AppID && u.Username == user.Username {
			return store.ErrConflict
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.m.users[user.ID] = copyUser(*user)
	return nil
}

func (r userRepo) ByID(ctx context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyUser(u)
	return &out, nil
}

func (r userRepo) ByUsername(ctx context.Context, appID, username string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.AppID == appID && u.Username == username {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r userRepo) ByEmail(ctx context.Context, appID, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.AppID == appID && u.Email != nil && *u.Email == email {
			out := copyUser(u)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r userRepo) List(ctx context.Context, f store.UserFilter) ([]models.User, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []models.User
	for _, u := range r.m.users {
		if u.AppID != f.AppID {
			continue
		}
		if f.IsBanned != nil && u.IsBanned != *f.IsBanned {
			continue
		}
		if f.Search != "" {
			s := strings.ToLower(f.Search)
			email := ""
			if u.Email != nil {
				email = *u.Email
			}
			if !strings.Contains(strings.ToLower(u.Username), s) && !strings.Contains(strings.ToLower(email), s) {
				continue
			}
		}
		all = append(all, copyUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r userRepo) SetHwid(ctx context.Context, id, hwid string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Hwid = hwid
	u.UpdatedAt = time.Now()
	r.m.users[id] = u
	return nil
}

func (r userRepo) SetBan(ctx context.Context, id string, banned bool, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsBanned = banned
	u.BanReason = reason
	u.UpdatedAt = time.Now()
	r.m.users[id] = u
	return nil
}

func (r userRepo) SetExpiry(ctx context.Context, id string, expiresAt *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ExpiresAt = timePtr(expiresAt)
	u.UpdatedAt = time.Now()
	r.m.users[id] = u
	return nil
}

func (r userRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.users, id)
	for sid, s := range r.m.sessions {
		if s.UserID == id {
			delete(r.m.sessions, sid)
		}
	}
	for kid, k := range r.m.keys {
		if k.UserID != nil && *k.UserID == id {
			k.UserID = nil
			r.m.keys[kid] = k
		}
	}
	return nil
}

// ---- keys ----

type keyRepo struct{ m *Mem }

func (r keyRepo) CreateBatch(ctx context.Context, keys []models.Key) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range keys {
		for _, existing := range r.m.keys {
			if existing.KeyValue == keys[i].KeyValue {
				return store.ErrConflict
			}
		}
	}
	now := time.Now()
	for i := range keys {
		if keys[i].ID == "" {
			keys[i].ID = uuid.NewString()
		}
		if keys[i].MaxActivations < 1 {
			keys[i].MaxActivations = 1
		}
		if keys[i].CreatedAt.IsZero() {
			keys[i].CreatedAt = now
		}
		r.m.keys[keys[i].ID] = copyKey(keys[i])
	}
	return nil
}

func (r keyRepo) ByID(ctx context.Context, id string) (*models.Key, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyKey(k)
	return &out, nil
}

func (r keyRepo) ByValue(ctx context.Context, appID, keyValue string) (*models.Key, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, k := range r.m.keys {
		if k.AppID == appID && k.KeyValue == keyValue {
			out := copyKey(k)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r keyRepo) List(ctx context.Context, f store.KeyFilter) ([]models.Key, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var all []models.Key
	for _, k := range r.m.keys {
		if k.AppID != f.AppID {
			continue
		}
		if f.IsActive != nil && k.IsActive != *f.IsActive {
			continue
		}
		if f.KeyType != "" && k.KeyType != f.KeyType {
			continue
		}
		if f.IsUsed != nil {
			used := k.UserID != nil
			if used != *f.IsUsed {
				continue
			}
		}
		all = append(all, copyKey(k))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r keyRepo) Bind(ctx context.Context, keyID, userID string, activatedAt time.Time, expiresAt *time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[keyID]
	if !ok {
		return false, store.ErrNotFound
	}
	if k.UserID != nil || k.CurrentActivations >= k.MaxActivations {
		return false, nil
	}
	k.UserID = &userID
	at := activatedAt
	k.ActivatedAt = &at
	k.CurrentActivations++
	k.ExpiresAt = timePtr(expiresAt)
	r.m.keys[keyID] = k
	return true, nil
}

func (r keyRepo) IncrementUses(ctx context.Context, keyID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[keyID]
	if !ok {
		return store.ErrNotFound
	}
	k.CurrentUses++
	r.m.keys[keyID] = k
	return nil
}

func (r keyRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, k := range r.m.keys {
		if k.UserID != nil && *k.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r keyRepo) SetActive(ctx context.Context, keyID string, active bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	k, ok := r.m.keys[keyID]
	if !ok {
		return store.ErrNotFound
	}
	k.IsActive = active
	r.m.keys[keyID] = k
	return nil
}

func (r keyRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.keys[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.m.keys, id)
	return nil
}

func (r keyRepo) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := r.m.keys[id]; ok {
			delete(r.m.keys, id)
			n++
		}
	}
	return n, nil
}

// ---- sessions ----

type sessionRepo struct{ m *Mem }

func (r sessionRepo) Create(ctx context.Context, s *models.Session) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.m.nextSeq++
	r.m.seq[s.ID] = r.m.nextSeq
	r.m.sessions[s.ID] = *s
	return nil
}

func (r sessionRepo) ByID(ctx context.Context, id string) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessions, id)
	delete(r.m.seq, id)
	return nil
}

func (r sessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, s := range r.m.sessions {
		if s.UserID == userID {
			delete(r.m.sessions, id)
			delete(r.m.seq, id)
		}
	}
	return nil
}

func (r sessionRepo) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.sessions {
		if s.UserID == userID && s.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) Oldest(ctx context.Context, userID string) (*models.Session, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var oldest *models.Session
	var oldestSeq int64
	for id, s := range r.m.sessions {
		if s.UserID != userID {
			continue
		}
		seq := r.m.seq[id]
		if oldest == nil || seq < oldestSeq {
			cp := s
			oldest = &cp
			oldestSeq = seq
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	return oldest, nil
}

// ---- logs ----

type logRepo struct{ m *Mem }

func (r logRepo) AddLogin(ctx context.Context, l *models.LoginLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextLogID++
	l.ID = r.m.nextLogID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	cp := *l
	cp.UserID = strPtr(l.UserID)
	r.m.logins = append(r.m.logins, cp)
	return nil
}

func (r logRepo) AddHwid(ctx context.Context, l *models.HwidLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextHwidID++
	l.ID = r.m.nextHwidID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	cp := *l
	cp.OldHwid = strPtr(l.OldHwid)
	cp.ResetBy = strPtr(l.ResetBy)
	r.m.hwidLogs = append(r.m.hwidLogs, cp)
	return nil
}

func (r logRepo) Logins(ctx context.Context, f store.LoginLogFilter) ([]models.LoginLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.LoginLog
	for i := len(r.m.logins) - 1; i >= 0; i-- {
		l := r.m.logins[i]
		if f.AppID != "" && l.AppID != f.AppID {
			continue
		}
		if f.UserID != "" && (l.UserID == nil || *l.UserID != f.UserID) {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (r logRepo) Hwids(ctx context.Context, userID string, limit int) ([]models.HwidLog, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.HwidLog
	for i := len(r.m.hwidLogs) - 1; i >= 0; i-- {
		l := r.m.hwidLogs[i]
		if userID != "" && l.UserID != userID {
			continue
		}
		out = append(out, l)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- admins ----

type adminRepo struct{ m *Mem }

func (r adminRepo) Create(ctx context.Context, a *models.Admin) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.admins {
		if existing.Username == a.Username || existing.Email == a.Email {
			return store.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.m.admins[a.ID] = *a
	return nil
}

func (r adminRepo) ByID(ctx context.Context, id string) (*models.Admin, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.admins[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (r adminRepo) ByUsername(ctx context.Context, username string) (*models.Admin, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.admins {
		if a.Username == username {
			cp := a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r adminRepo) Update(ctx context.Context, a *models.Admin) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.admins[a.ID]; !ok {
		return store.ErrNotFound
	}
	a.UpdatedAt = time.Now()
	r.m.admins[a.ID] = *a
	return nil
}

// ---- stats ----

type statsRepo struct{ m *Mem }

func (r statsRepo) App(ctx context.Context, appID string, now time.Time) (*store.AppStats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	st := &store.AppStats{}
	userIDs := map[string]bool{}
	for _, u := range r.m.users {
		if u.AppID != appID {
			continue
		}
		userIDs[u.ID] = true
		st.TotalUsers++
		if u.IsBanned {
			st.BannedUsers++
		}
		if u.ExpiresAt != nil && u.ExpiresAt.Before(now) {
			st.ExpiredUsers++
		} else if !u.IsBanned {
			st.ActiveUsers++
		}
	}
	for _, k := range r.m.keys {
		if k.AppID != appID {
			continue
		}
		st.TotalKeys++
		if k.UserID != nil {
			st.UsedKeys++
		}
	}
	for _, s := range r.m.sessions {
		if userIDs[s.UserID] && s.ExpiresAt.After(now) {
			st.OnlineSessions++
		}
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, 0, -30)
	for _, l := range r.m.logins {
		if l.AppID != appID || !l.Success {
			continue
		}
		if l.CreatedAt.After(dayStart) {
			st.LoginsToday++
		}
		if l.CreatedAt.After(weekAgo) {
			st.LoginsWeek++
		}
		if l.CreatedAt.After(monthAgo) {
			st.LoginsMonth++
		}
	}
	return st, nil
}

func (r statsRepo) CountUsers(ctx context.Context, appID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, u := range r.m.users {
		if u.AppID == appID {
			n++
		}
	}
	return n, nil
}

func (r statsRepo) CountKeys(ctx context.Context, appID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, k := range r.m.keys {
		if k.AppID == appID {
			n++
		}
	}
	return n, nil
}
