package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"sale_inviter/internal/domain"
)

type SalesSource interface {
	FetchSales(ctx context.Context, token string, since time.Time) ([]domain.Sale, error)
	VerifyToken(ctx context.Context, token string) domain.ConnectionCheck
}

type Inviter interface {
	Invite(ctx context.Context, token, owner, repo, username string) domain.InviteResult
	TestConnection(ctx context.Context, token, owner, repo string) domain.ConnectionCheck
}

// SettingsStore persists settings one key at a time. Reset clears the
// processed set and rewinds the last check time; no other cross-key
// atomicity is assumed.
type SettingsStore interface {
	Load(ctx context.Context) (*domain.Settings, error)
	Set(ctx context.Context, key, value string) error
	SetLastCheckTime(ctx context.Context, t time.Time) error
	Reset(ctx context.Context, at time.Time) error
}

type ProcessedStore interface {
	ProcessedIDs(ctx context.Context) (map[string]struct{}, error)
	MarkProcessed(ctx context.Context, saleID string, at time.Time) error
}

type ActivityLog interface {
	Append(ctx context.Context, severity domain.Severity, message string) error
	List(ctx context.Context, limit int) ([]domain.LogEntry, error)
	Clear(ctx context.Context) error
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
