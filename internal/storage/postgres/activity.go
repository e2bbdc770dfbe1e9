package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sale_inviter/internal/domain"
)

// ActivityLog keeps the newest entries up to a fixed capacity.
type ActivityLog struct {
	db   *sqlx.DB
	tm   *TransactionManager
	size int
}

func NewActivityLog(db *sqlx.DB, tm *TransactionManager, size int) *ActivityLog {
	if size <= 0 {
		size = domain.ActivityLogSize
	}
	return &ActivityLog{db: db, tm: tm, size: size}
}

func (l *ActivityLog) Append(ctx context.Context, severity domain.Severity, message string) error {
	return l.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, l.db)

		if _, err := exec.ExecContext(ctx, `
			INSERT INTO activity_log (id, created_at, message, severity)
			VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), time.Now().UTC(), message, string(severity),
		); err != nil {
			return fmt.Errorf("insert activity entry: %w", err)
		}

		if _, err := exec.ExecContext(ctx, `
			DELETE FROM activity_log
			WHERE seq NOT IN (
				SELECT seq FROM activity_log ORDER BY seq DESC LIMIT $1
			)`,
			l.size,
		); err != nil {
			return fmt.Errorf("trim activity log: %w", err)
		}
		return nil
	})
}

// List returns up to limit entries, newest first.
func (l *ActivityLog) List(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 || limit > l.size {
		limit = l.size
	}

	entries := []domain.LogEntry{}
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, l.db), &entries, `
		SELECT id, created_at, message, severity
		FROM activity_log
		ORDER BY seq DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select activity log: %w", err)
	}
	return entries, nil
}

func (l *ActivityLog) Clear(ctx context.Context) error {
	_, err := GetExecutor(ctx, l.db).ExecContext(ctx, `DELETE FROM activity_log`)
	return err
}
