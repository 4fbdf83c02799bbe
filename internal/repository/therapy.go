package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

// TherapyRepository reads the cbt_content reference steps and the
// ai_sessions results table that the external workflow backend writes into.
type TherapyRepository struct {
	pool *pgxpool.Pool
}

func NewTherapyRepository(pool *pgxpool.Pool) *TherapyRepository {
	return &TherapyRepository{pool: pool}
}

// GetStep returns the reference content for (flow, step).
func (r *TherapyRepository) GetStep(ctx context.Context, flow model.TherapyFlow, step int) (*model.TherapyStep, error) {
	defer logger.DeferLogDuration("therapy.GetStep", time.Now())()
	s := &model.TherapyStep{}
	err := r.pool.QueryRow(ctx,
		`SELECT flow, step, title, prompt, example FROM cbt_content WHERE flow = $1 AND step = $2`,
		flow, step,
	).Scan(&s.Flow, &s.Step, &s.Title, &s.Prompt, &s.Example)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("therapyRepo.GetStep: %w", err)
	}
	return s, nil
}

// LatestSessionSince returns the newest ai_sessions row for a user created at
// or after since, or nil when none exists yet. One row, newest first: the
// shape of the polling query in the asynchronous webhook flow.
func (r *TherapyRepository) LatestSessionSince(ctx context.Context, userID string, since time.Time) (*model.AISession, error) {
	defer logger.DeferLogDuration("therapy.LatestSessionSince", time.Now())()
	s := &model.AISession{}
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, step, user_message, created_at FROM ai_sessions
		 WHERE user_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, since,
	).Scan(&s.UserID, &s.Step, &s.UserMessage, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("therapyRepo.LatestSessionSince: %w", err)
	}
	return s, nil
}
