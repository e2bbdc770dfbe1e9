package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"sale_inviter/internal/domain"
)

const upsertSetting = `
	INSERT INTO settings (key, value, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at`

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

type SettingsStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewSettingsStore(db *sqlx.DB, tm *TransactionManager) *SettingsStore {
	return &SettingsStore{db: db, tm: tm}
}

func (s *SettingsStore) Load(ctx context.Context) (*domain.Settings, error) {
	var rows []settingRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}

	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return domain.SettingsFromMap(values)
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	if err := domain.ValidateSetting(key, value); err != nil {
		return err
	}
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, upsertSetting, key, value)
	return err
}

func (s *SettingsStore) SetLastCheckTime(ctx context.Context, t time.Time) error {
	return s.Set(ctx, domain.KeyLastCheckTime, domain.FormatTime(t))
}

// Reset empties the processed set, rewinds the last check time to the epoch
// sentinel and records when the reset happened, all in one transaction.
func (s *SettingsStore) Reset(ctx context.Context, at time.Time) error {
	return s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)

		if _, err := exec.ExecContext(ctx, `DELETE FROM processed_sales`); err != nil {
			return fmt.Errorf("clear processed sales: %w", err)
		}
		if _, err := exec.ExecContext(ctx, upsertSetting, domain.KeyLastCheckTime, domain.FormatTime(domain.EpochSentinel)); err != nil {
			return fmt.Errorf("rewind last check time: %w", err)
		}
		if _, err := exec.ExecContext(ctx, upsertSetting, domain.KeyLastResetAt, domain.FormatTime(at)); err != nil {
			return fmt.Errorf("record reset time: %w", err)
		}
		return nil
	})
}

// Seed writes values for keys that have never been stored.
func (s *SettingsStore) Seed(ctx context.Context, values map[string]string) error {
	return s.tm.WithTransaction(ctx, func(ctx context.Context) error {
		exec := GetExecutor(ctx, s.db)
		for key, value := range values {
			if err := domain.ValidateSetting(key, value); err != nil {
				return err
			}
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
				key, value,
			); err != nil {
				return fmt.Errorf("seed %s: %w", key, err)
			}
		}
		return nil
	})
}
