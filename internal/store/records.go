package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
)

// SaveGoal upserts the goal's latest state.
func (s *Store) SaveGoal(ctx context.Context, g goal.Goal) error {
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshal goal: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO goals (id, type, description, priority, status, progress, created_at, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			doc = EXCLUDED.doc,
			updated_at = NOW()`,
		g.ID, string(g.Type), g.Description, g.Priority, string(g.Status), g.Progress, g.CreatedAt, doc,
	)
	if err != nil {
		return fmt.Errorf("save goal %s: %w", g.ID, err)
	}
	return nil
}

// SaveExperience appends a learning experience.
func (s *Store) SaveExperience(ctx context.Context, e learning.Experience) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal experience: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO experiences (id, type, action, success_score, importance, recorded_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Type, e.Action, e.SuccessScore, e.Importance, e.Timestamp, doc,
	)
	if err != nil {
		return fmt.Errorf("save experience %s: %w", e.ID, err)
	}
	return nil
}

// SaveDecision appends a reasoning decision.
func (s *Store) SaveDecision(ctx context.Context, d reasoning.Decision) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO decisions (id, type, action, confidence, decided_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, string(d.Type), d.Action, d.Confidence, d.Timestamp, doc,
	)
	if err != nil {
		return fmt.Errorf("save decision %s: %w", d.ID, err)
	}
	return nil
}
