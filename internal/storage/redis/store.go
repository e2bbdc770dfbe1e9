// Package redis keeps settings, processed sale ids and the activity log in
// Redis as an alternative to the PostgreSQL store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"sale_inviter/internal/domain"
)

const (
	settingsKey  = "settings"
	processedKey = "processed_sales"
	activityKey  = "activity_log"
)

type Store struct {
	client  *goredis.Client
	prefix  string
	logSize int
}

func New(client *goredis.Client, prefix string, logSize int) *Store {
	if logSize <= 0 {
		logSize = domain.ActivityLogSize
	}
	return &Store{client: client, prefix: prefix, logSize: logSize}
}

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) Load(ctx context.Context) (*domain.Settings, error) {
	values, err := s.client.HGetAll(ctx, s.key(settingsKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return domain.SettingsFromMap(values)
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := domain.ValidateSetting(key, value); err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key(settingsKey), key, value).Err()
}

func (s *Store) SetLastCheckTime(ctx context.Context, t time.Time) error {
	return s.Set(ctx, domain.KeyLastCheckTime, domain.FormatTime(t))
}

func (s *Store) Reset(ctx context.Context, at time.Time) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, s.key(processedKey))
		pipe.HSet(ctx, s.key(settingsKey),
			domain.KeyLastCheckTime, domain.FormatTime(domain.EpochSentinel),
			domain.KeyLastResetAt, domain.FormatTime(at),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// Seed writes values for keys that have never been stored.
func (s *Store) Seed(ctx context.Context, values map[string]string) error {
	for key, value := range values {
		if err := domain.ValidateSetting(key, value); err != nil {
			return err
		}
	}
	_, err := s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for key, value := range values {
			pipe.HSetNX(ctx, s.key(settingsKey), key, value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func (s *Store) ProcessedIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := s.client.SMembers(ctx, s.key(processedKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("load processed sales: %w", err)
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) MarkProcessed(ctx context.Context, saleID string, _ time.Time) error {
	return s.client.SAdd(ctx, s.key(processedKey), saleID).Err()
}

func (s *Store) Append(ctx context.Context, severity domain.Severity, message string) error {
	b, err := json.Marshal(domain.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Message:   message,
		Severity:  severity,
	})
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, s.key(activityKey), b)
		pipe.LTrim(ctx, s.key(activityKey), 0, int64(s.logSize-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("append activity entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 || limit > s.logSize {
		limit = s.logSize
	}

	raw, err := s.client.LRange(ctx, s.key(activityKey), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load activity log: %w", err)
	}

	entries := make([]domain.LogEntry, 0, len(raw))
	for _, r := range raw {
		var e domain.LogEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *Store) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key(activityKey)).Err()
}
