package service

import (
	"context"

	"gouauth/internal/apperr"
	"gouauth/internal/models"
	"gouauth/internal/store"
)

// Logs exposes the audit trails to the operator API.
type Logs struct {
	st store.Store
}

func NewLogs(st store.Store) *Logs {
	return &Logs{st: st}
}

func (l *Logs) Logins(ctx context.Context, f store.LoginLogFilter) ([]models.LoginLog, error) {
	if f.Limit < 1 || f.Limit > 500 {
		f.Limit = 100
	}
	logs, err := l.st.Logs().Logins(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return logs, nil
}

func (l *Logs) Hwids(ctx context.Context, userID string, limit int) ([]models.HwidLog, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	logs, err := l.st.Logs().Hwids(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return logs, nil
}
