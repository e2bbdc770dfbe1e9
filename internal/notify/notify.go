// Package notify delivers user-facing notifications for processed sales.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"sale_inviter/internal/domain"
)

// Notifier is implemented by every delivery channel.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Log writes notifications to the process log.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	level := slog.LevelInfo
	if n.Severity() == domain.SeverityError {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, n.Title,
		"body", n.Body,
		"sale_id", n.SaleID,
		"username", n.Username,
	)
	return nil
}

// Multi fans a notification out to every channel and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
