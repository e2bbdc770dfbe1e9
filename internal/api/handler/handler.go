package handler

import (
	"context"
	"log/slog"
	"time"

	"sale_inviter/internal/domain"
)

// Service is the invite job's command surface.
type Service interface {
	Settings(ctx context.Context) (*domain.Settings, error)
	UpdateSetting(ctx context.Context, key, value string) (restart bool, err error)
	SetRepoMappings(ctx context.Context, mappings []domain.RepoMapping) error
	Logs(ctx context.Context, limit int) ([]domain.LogEntry, error)
	ClearLogs(ctx context.Context) error
	Reset(ctx context.Context) error
	TestGitHub(ctx context.Context, token, owner, repo string) domain.ConnectionCheck
	TestGumroad(ctx context.Context, token string) domain.ConnectionCheck
}

type Scheduler interface {
	Restart()
	RunOnce(ctx context.Context) (*domain.CycleResult, bool)
	Started() bool
	Running() bool
	Interval() time.Duration
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Service   Service
	Scheduler Scheduler
}

type Handler struct {
	logger    *slog.Logger
	service   Service
	scheduler Scheduler
}

func New(deps *Dependencies) *Handler {
	return &Handler{
		logger:    deps.Logger,
		service:   deps.Service,
		scheduler: deps.Scheduler,
	}
}
