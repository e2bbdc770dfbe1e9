package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sale_inviter/internal/domain"
)

type InviteService struct {
	source    SalesSource
	inviter   Inviter
	settings  SettingsStore
	processed ProcessedStore
	activity  ActivityLog
	notifier  Notifier
	extractor UsernameExtractor
	retry     RetryPolicy
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*InviteService)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *InviteService) {
		s.retry = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *InviteService) {
		s.now = now
	}
}

func NewInviteService(
	source SalesSource,
	inviter Inviter,
	settings SettingsStore,
	processed ProcessedStore,
	activity ActivityLog,
	notifier Notifier,
	extractor UsernameExtractor,
	logger *slog.Logger,
	opts ...Option,
) *InviteService {
	s := &InviteService{
		source:    source,
		inviter:   inviter,
		settings:  settings,
		processed: processed,
		activity:  activity,
		notifier:  notifier,
		extractor: extractor,
		retry:     UnlimitedRetry{},
		now:       time.Now,
		logger:    logger.With("component", "invite_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PollingInterval reads the configured interval, falling back to the default
// when settings cannot be loaded.
func (s *InviteService) PollingInterval(ctx context.Context) time.Duration {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		s.logger.Error("load settings for polling interval", "error", err)
		settings = domain.DefaultSettings()
	}
	return settings.PollingInterval()
}

// Sync runs one polling cycle. Missing settings yield a skipped result with no
// error. Any returned error aborted the cycle and has already been written to
// the activity log.
func (s *InviteService) Sync(ctx context.Context) (*domain.CycleResult, error) {
	result, err := s.guardedCycle(ctx)
	if err != nil {
		s.record(ctx, domain.SeverityError, fmt.Sprintf("Error in background job: %v", err))
		return result, err
	}
	return result, nil
}

// guardedCycle turns a panic inside the cycle into an error so it reaches the
// activity log like any other failure.
func (s *InviteService) guardedCycle(ctx context.Context) (result *domain.CycleResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.runCycle(ctx)
}

func (s *InviteService) runCycle(ctx context.Context) (*domain.CycleResult, error) {
	startedAt := s.now()

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if missing := settings.MissingRequired(); len(missing) > 0 {
		s.logger.Debug("cycle skipped", "missing", missing)
		return domain.Skipped("missing settings: " + strings.Join(missing, ", ")), nil
	}

	result := &domain.CycleResult{
		Status:    domain.CycleCompleted,
		StartedAt: startedAt,
	}

	s.record(ctx, domain.SeverityInfo, "Checking for new sales... Last check: "+describeCheck(settings.LastCheckTime))

	sales, err := s.source.FetchSales(ctx, settings.GumroadAccessToken, settings.LastCheckTime)
	if err != nil {
		return result, fmt.Errorf("fetch sales: %w", err)
	}
	result.Fetched = len(sales)
	s.record(ctx, domain.SeverityInfo, fmt.Sprintf("Gumroad API returned %d sales.", len(sales)))

	processed, err := s.processed.ProcessedIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("load processed sales: %w", err)
	}

	newSales := filterUnprocessed(sales, processed)
	result.New = len(newSales)

	if len(newSales) == 0 {
		s.record(ctx, domain.SeverityInfo, "No new unprocessed sales found.")
		if err := s.advanceLastCheck(ctx, result); err != nil {
			return result, err
		}
		return s.finish(result), nil
	}

	s.record(ctx, domain.SeverityInfo, fmt.Sprintf("Found %d new unprocessed sales. Processing...", len(newSales)))

	for i := range newSales {
		if err := s.processSale(ctx, settings, &newSales[i], result); err != nil {
			return result, err
		}
	}

	if result.Invited > 0 {
		s.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Batch complete: added %d new collaborators to GitHub.", result.Invited))
	}

	if err := s.advanceLastCheck(ctx, result); err != nil {
		return result, err
	}

	return s.finish(result), nil
}

func (s *InviteService) processSale(ctx context.Context, settings *domain.Settings, sale *domain.Sale, result *domain.CycleResult) error {
	s.record(ctx, domain.SeverityInfo, fmt.Sprintf("Processing sale %s for product: %s", sale.ID, sale.ProductName))

	username, err := s.extractor.Extract(sale.CustomFields)
	if err != nil {
		result.Unextracted++
		if errors.Is(err, domain.ErrEmptyUsername) {
			s.record(ctx, domain.SeverityWarning, fmt.Sprintf("Sale %s: Username was empty after cleanup.", sale.ID))
		} else {
			s.record(ctx, domain.SeverityWarning, fmt.Sprintf("Sale %s: No Git username found. Checked keys: %s",
				sale.ID, strings.Join(sale.FieldKeys(), ", ")))
		}
		return nil
	}

	owner, repo := settings.Target(*sale)
	s.record(ctx, domain.SeverityInfo, fmt.Sprintf("Inviting %s to %s/%s...", username, owner, repo))

	invite := s.inviter.Invite(ctx, settings.GitHubAccessToken, owner, repo, username)

	n := domain.Notification{
		SaleID:   sale.ID,
		Product:  sale.ProductName,
		Username: username,
		Owner:    owner,
		Repo:     repo,
		Status:   invite.Status,
	}

	if invite.Success {
		if err := s.processed.MarkProcessed(ctx, sale.ID, s.now()); err != nil {
			return fmt.Errorf("mark sale %s processed: %w", sale.ID, err)
		}
		result.Invited++
		s.record(ctx, domain.SeveritySuccess, fmt.Sprintf("Successfully invited %s.", username))

		n.Kind = domain.NotificationInvited
		n.Title = "New Sale Processed"
		n.Body = fmt.Sprintf("Added %s to GitHub collaborators.", username)
		s.notify(ctx, n)
		return nil
	}

	result.Failed++
	s.record(ctx, domain.SeverityError, fmt.Sprintf("Failed to invite %s. Status: %s. Error: %s",
		username, describeStatus(invite.Status), invite.Error))

	n.Kind = domain.NotificationInviteFailed
	n.Title = "Error Processing Sale"
	n.Body = fmt.Sprintf("Failed to add %s. Check logs.", username)
	n.Error = invite.Error
	s.notify(ctx, n)

	if s.retry.GiveUp(*sale, invite) {
		if err := s.processed.MarkProcessed(ctx, sale.ID, s.now()); err != nil {
			return fmt.Errorf("mark sale %s processed: %w", sale.ID, err)
		}
		result.GivenUp++
		s.record(ctx, domain.SeverityWarning, fmt.Sprintf("Sale %s will not be retried.", sale.ID))
	}

	return nil
}

// advanceLastCheck moves the watermark to now unless a reset rewound it to
// the epoch sentinel after this cycle started.
func (s *InviteService) advanceLastCheck(ctx context.Context, result *domain.CycleResult) error {
	current, err := s.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload settings: %w", err)
	}

	if domain.IsEpochSentinel(current.LastCheckTime) && !current.LastResetAt.IsZero() &&
		!current.LastResetAt.Before(result.StartedAt) {
		result.ResetDetected = true
		s.record(ctx, domain.SeverityWarning, "Reset detected during execution. Skipping timestamp update.")
		return nil
	}

	if err := s.settings.SetLastCheckTime(ctx, s.now()); err != nil {
		return fmt.Errorf("update last check time: %w", err)
	}
	return nil
}

func (s *InviteService) finish(result *domain.CycleResult) *domain.CycleResult {
	result.Duration = s.now().Sub(result.StartedAt)

	s.logger.Info("cycle completed",
		"fetched", result.Fetched,
		"new", result.New,
		"invited", result.Invited,
		"failed", result.Failed,
		"unextracted", result.Unextracted,
		"reset_detected", result.ResetDetected,
		"duration", result.Duration,
	)

	return result
}

// Reset clears the processed set and rewinds the last check time so the next
// cycle performs a full sync. Callers restart the scheduler afterwards.
func (s *InviteService) Reset(ctx context.Context) error {
	if err := s.settings.Reset(ctx, s.now()); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	s.record(ctx, domain.SeverityWarning, "Processed sales cleared. Next check performs a full sync.")
	return nil
}

// Settings returns the full settings snapshot.
func (s *InviteService) Settings(ctx context.Context) (*domain.Settings, error) {
	return s.settings.Load(ctx)
}

// UpdateSetting validates and stores one key. restart reports whether the
// scheduler must be restarted for the change to apply.
func (s *InviteService) UpdateSetting(ctx context.Context, key, value string) (restart bool, err error) {
	switch key {
	case domain.KeyLastCheckTime, domain.KeyLastResetAt:
		return false, fmt.Errorf("%w: %s is managed by the job", domain.ErrUnknownSetting, key)
	}
	if err := domain.ValidateSetting(key, value); err != nil {
		return false, err
	}
	if err := s.settings.Set(ctx, key, value); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return key == domain.KeyPollingIntervalMinutes, nil
}

// SetRepoMappings replaces the stored repo mapping rules.
func (s *InviteService) SetRepoMappings(ctx context.Context, mappings []domain.RepoMapping) error {
	encoded, err := domain.EncodeMappings(mappings)
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	if err := s.settings.Set(ctx, domain.KeyRepoMappings, encoded); err != nil {
		return fmt.Errorf("set mappings: %w", err)
	}
	return nil
}

func (s *InviteService) Logs(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	return s.activity.List(ctx, limit)
}

func (s *InviteService) ClearLogs(ctx context.Context) error {
	return s.activity.Clear(ctx)
}

func (s *InviteService) TestGitHub(ctx context.Context, token, owner, repo string) domain.ConnectionCheck {
	return s.inviter.TestConnection(ctx, token, owner, repo)
}

func (s *InviteService) TestGumroad(ctx context.Context, token string) domain.ConnectionCheck {
	return s.source.VerifyToken(ctx, token)
}

// record writes a user-visible activity entry and mirrors it to the process log.
func (s *InviteService) record(ctx context.Context, severity domain.Severity, message string) {
	switch severity {
	case domain.SeverityError:
		s.logger.Error(message)
	case domain.SeverityWarning:
		s.logger.Warn(message)
	default:
		s.logger.Info(message)
	}

	if err := s.activity.Append(ctx, severity, message); err != nil {
		s.logger.Error("append activity log", "error", err)
	}
}

func (s *InviteService) notify(ctx context.Context, n domain.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification failed", "sale_id", n.SaleID, "kind", n.Kind, "error", err)
	}
}

func filterUnprocessed(sales []domain.Sale, processed map[string]struct{}) []domain.Sale {
	var out []domain.Sale
	for _, sale := range sales {
		if _, done := processed[sale.ID]; !done {
			out = append(out, sale)
		}
	}
	return out
}

func describeCheck(t time.Time) string {
	if domain.IsEpochSentinel(t) {
		return "None"
	}
	return t.UTC().Format(time.RFC3339)
}

func describeStatus(status int) string {
	if status == 0 {
		return "Unknown"
	}
	return fmt.Sprint(status)
}
