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

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingCols = `id, user_id, professional_id, scheduled_at, status, note, created_at`

func scanBooking(s interface{ Scan(dest ...any) error }, b *model.Booking) error {
	return s.Scan(&b.ID, &b.UserID, &b.ProfessionalID, &b.ScheduledAt, &b.Status, &b.Note, &b.CreatedAt)
}

func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	defer logger.DeferLogDuration("booking.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bookings (id, user_id, professional_id, scheduled_at, status, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.UserID, b.ProfessionalID, b.ScheduledAt, b.Status, b.Note, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("bookingRepo.Create: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	defer logger.DeferLogDuration("booking.GetByID", time.Now())()
	b := &model.Booking{}
	row := r.pool.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id)
	if err := scanBooking(row, b); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("bookingRepo.GetByID: %w", err)
	}
	return b, nil
}

// ListForViewer returns the viewer's side of the bookings table: the user_id
// column for users, the professional_id column for professionals. Upcoming
// first.
func (r *BookingRepository) ListForViewer(ctx context.Context, viewerID string, role model.Role) ([]model.Booking, error) {
	defer logger.DeferLogDuration("booking.ListForViewer", time.Now())()
	col := "user_id"
	if role == model.RoleProfessional {
		col = "professional_id"
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingCols+` FROM bookings WHERE `+col+` = $1 ORDER BY scheduled_at ASC`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("bookingRepo.ListForViewer query: %w", err)
	}
	defer rows.Close()

	list := make([]model.Booking, 0, 8)
	for rows.Next() {
		var b model.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, fmt.Errorf("bookingRepo.ListForViewer scan: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookingRepo.ListForViewer rows: %w", err)
	}
	return list, nil
}

// UpdateStatus moves a booking from its expected current status to next;
// reports whether the row matched (false means a concurrent transition won).
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (bool, error) {
	defer logger.DeferLogDuration("booking.UpdateStatus", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = $1 WHERE id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("bookingRepo.UpdateStatus: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
