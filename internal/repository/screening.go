package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

type ScreeningRepository struct {
	pool *pgxpool.Pool
}

func NewScreeningRepository(pool *pgxpool.Pool) *ScreeningRepository {
	return &ScreeningRepository{pool: pool}
}

func (r *ScreeningRepository) Create(ctx context.Context, s *model.Screening) error {
	defer logger.DeferLogDuration("screening.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO screenings (id, user_id, instrument, answers, score, severity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.Instrument, s.Answers, s.Score, s.Severity, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("screeningRepo.Create: %w", err)
	}
	return nil
}

// ListByUser returns the user's screening history, newest first.
func (r *ScreeningRepository) ListByUser(ctx context.Context, userID string) ([]model.Screening, error) {
	defer logger.DeferLogDuration("screening.ListByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, instrument, answers, score, severity, created_at
		 FROM screenings WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("screeningRepo.ListByUser query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Screening, 0, 8)
	for rows.Next() {
		var s model.Screening
		if err := rows.Scan(&s.ID, &s.UserID, &s.Instrument, &s.Answers, &s.Score, &s.Severity, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("screeningRepo.ListByUser scan: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("screeningRepo.ListByUser rows: %w", err)
	}
	return list, nil
}
