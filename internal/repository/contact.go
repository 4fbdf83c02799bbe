package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

// ContactRepository resolves the role-dependent contact directory: the list
// of professionals for a user, the list of users for a professional.
type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

// LoaderFor selects the directory query for a viewer role. The strategy is
// picked once when the identity is resolved; callers never re-branch on role.
func (r *ContactRepository) LoaderFor(role model.Role) func(context.Context) ([]model.Contact, error) {
	if role == model.RoleProfessional {
		return r.ListClients
	}
	return r.ListProfessionals
}

// ListProfessionals returns all professionals ordered by name ascending, with
// specialty as the subtitle.
func (r *ContactRepository) ListProfessionals(ctx context.Context) ([]model.Contact, error) {
	defer logger.DeferLogDuration("contact.ListProfessionals", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.full_name, p.specialty, p.rating, p.available
		 FROM users u
		 JOIN professionals p ON p.user_id = u.id
		 WHERE u.role = 'professional' AND u.disabled_at IS NULL
		 ORDER BY u.full_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("contactRepo.ListProfessionals query: %w", err)
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0, 16)
	for rows.Next() {
		c := model.Contact{Role: model.RoleProfessional}
		if err := rows.Scan(&c.ID, &c.FullName, &c.Subtitle, &c.Rating, &c.Available); err != nil {
			return nil, fmt.Errorf("contactRepo.ListProfessionals scan: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contactRepo.ListProfessionals rows: %w", err)
	}
	return contacts, nil
}

// ListClients returns all users with role=user ordered by name ascending,
// with email as the subtitle.
func (r *ContactRepository) ListClients(ctx context.Context) ([]model.Contact, error) {
	defer logger.DeferLogDuration("contact.ListClients", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, full_name, email
		 FROM users
		 WHERE role = 'user' AND disabled_at IS NULL
		 ORDER BY full_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("contactRepo.ListClients query: %w", err)
	}
	defer rows.Close()

	contacts := make([]model.Contact, 0, 16)
	for rows.Next() {
		c := model.Contact{Role: model.RoleUser}
		if err := rows.Scan(&c.ID, &c.FullName, &c.Subtitle); err != nil {
			return nil, fmt.Errorf("contactRepo.ListClients scan: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contactRepo.ListClients rows: %w", err)
	}
	return contacts, nil
}
