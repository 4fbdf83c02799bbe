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

var ErrNotFound = errors.New("not found")

// userCols is the SELECT column list matching scanUser.
const userCols = `id, full_name, email, role, created_at, disabled_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// scanUser scans a row into model.User (column order follows userCols).
func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	return s.Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.CreatedAt, &u.DisabledAt)
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, full_name, email, role, created_at, disabled_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.FullName, u.Email, u.Role, u.CreatedAt, u.DisabledAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByEmail", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}
	return u, nil
}

// GetProfile loads the principal and, for professionals, the attribute row
// from the professionals table.
func (r *UserRepository) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	defer logger.DeferLogDuration("user.GetProfile", time.Now())()
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &model.Profile{User: *u}
	if u.Role != model.RoleProfessional {
		return p, nil
	}
	prof := &model.ProfessionalProfile{}
	err = r.pool.QueryRow(ctx,
		`SELECT user_id, specialty, rating, available FROM professionals WHERE user_id = $1`, id,
	).Scan(&prof.UserID, &prof.Specialty, &prof.Rating, &prof.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetProfile: %w", err)
	}
	p.Professional = prof
	return p, nil
}

// UpsertProfessional writes the professional attribute row.
func (r *UserRepository) UpsertProfessional(ctx context.Context, p *model.ProfessionalProfile) error {
	defer logger.DeferLogDuration("user.UpsertProfessional", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO professionals (user_id, specialty, rating, available)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   specialty = EXCLUDED.specialty,
		   rating = EXCLUDED.rating,
		   available = EXCLUDED.available`,
		p.UserID, p.Specialty, p.Rating, p.Available,
	)
	if err != nil {
		return fmt.Errorf("userRepo.UpsertProfessional: %w", err)
	}
	return nil
}

// SetDisabled disables or re-enables an account.
func (r *UserRepository) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	defer logger.DeferLogDuration("user.SetDisabled", time.Now())()
	if disabled {
		_, err := r.pool.Exec(ctx, `UPDATE users SET disabled_at = NOW() WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("userRepo.SetDisabled: %w", err)
		}
	} else {
		_, err := r.pool.Exec(ctx, `UPDATE users SET disabled_at = NULL WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("userRepo.SetDisabled: %w", err)
		}
	}
	return nil
}
