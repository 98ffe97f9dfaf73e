package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Trade is one wallet trade as archived.
type Trade struct {
	ID         string    `json:"id"`
	Chain      string    `json:"chain"`
	Action     string    `json:"action"`
	Asset      string    `json:"asset"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	TxHash     string    `json:"tx_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
	DecisionID string    `json:"decision_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordTrade appends a trade, assigning an id and timestamp when missing.
func (s *Store) RecordTrade(ctx context.Context, t Trade) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO trades (id, chain, action, asset, amount, status, tx_hash, error, decision_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
		t.ID, t.Chain, t.Action, t.Asset, t.Amount, t.Status, t.TxHash, t.Error, t.DecisionID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// RecentTrades returns the newest trades first.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, chain, action, asset, amount, status, tx_hash, error,
		       COALESCE(decision_id, ''), created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	trades, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Trade])
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}
	return trades, nil
}
