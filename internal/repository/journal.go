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

type JournalRepository struct {
	pool *pgxpool.Pool
}

func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

func (r *JournalRepository) Create(ctx context.Context, j *model.Journal) error {
	defer logger.DeferLogDuration("journal.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO journals (id, user_id, title, content, mood, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		j.ID, j.UserID, j.Title, j.Content, j.Mood, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("journalRepo.Create: %w", err)
	}
	return nil
}

// ListByUser returns the user's journal entries, newest first.
func (r *JournalRepository) ListByUser(ctx context.Context, userID string) ([]model.Journal, error) {
	defer logger.DeferLogDuration("journal.ListByUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, content, mood, created_at
		 FROM journals WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("journalRepo.ListByUser query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Journal, 0, 16)
	for rows.Next() {
		var j model.Journal
		if err := rows.Scan(&j.ID, &j.UserID, &j.Title, &j.Content, &j.Mood, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("journalRepo.ListByUser scan: %w", err)
		}
		list = append(list, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journalRepo.ListByUser rows: %w", err)
	}
	return list, nil
}

// GetForUser fetches one entry owned by userID. Someone else's entry reads as
// not found.
func (r *JournalRepository) GetForUser(ctx context.Context, id, userID string) (*model.Journal, error) {
	defer logger.DeferLogDuration("journal.GetForUser", time.Now())()
	j := &model.Journal{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, content, mood, created_at
		 FROM journals WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&j.ID, &j.UserID, &j.Title, &j.Content, &j.Mood, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journalRepo.GetForUser: %w", err)
	}
	return j, nil
}

// DeleteForUser removes one entry owned by userID; reports whether a row was
// actually deleted.
func (r *JournalRepository) DeleteForUser(ctx context.Context, id, userID string) (bool, error) {
	defer logger.DeferLogDuration("journal.DeleteForUser", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM journals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("journalRepo.DeleteForUser: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
