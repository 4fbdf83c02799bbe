package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

type Booking struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	ProfessionalID string        `json:"professional_id"`
	ScheduledAt    time.Time     `json:"scheduled_at"`
	Status         BookingStatus `json:"status"`
	Note           string        `json:"note,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// CanTransition reports whether a booking may move from its current status to
// next. Pending bookings can be confirmed or cancelled; confirmed ones
// completed or cancelled; terminal states never change.
func (b *Booking) CanTransition(next BookingStatus) bool {
	switch b.Status {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusCancelled
	case BookingStatusConfirmed:
		return next == BookingStatusCompleted || next == BookingStatusCancelled
	default:
		return false
	}
}
