package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type ProcessedStore struct {
	db *sqlx.DB
}

func NewProcessedStore(db *sqlx.DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

func (s *ProcessedStore) ProcessedIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &ids, `SELECT sale_id FROM processed_sales`); err != nil {
		return nil, fmt.Errorf("select processed sales: %w", err)
	}

	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// MarkProcessed is idempotent.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, saleID string, at time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO processed_sales (sale_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (sale_id) DO NOTHING`,
		saleID, at,
	)
	return err
}
