package model

import "time"

type Role string

const (
	RoleUser         Role = "user"
	RoleProfessional Role = "professional"
)

// Valid reports whether r is one of the two known principal roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleProfessional
}

// Counterpart returns the opposite role in a conversation pair.
func (r Role) Counterpart() Role {
	if r == RoleUser {
		return RoleProfessional
	}
	return RoleUser
}

type User struct {
	ID         string     `json:"id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Role       Role       `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	DisabledAt *time.Time `json:"-"` // non-null means the account can no longer sign in
}

// ProfessionalProfile holds the professional-only attributes, keyed by the
// same id as the users row.
type ProfessionalProfile struct {
	UserID    string  `json:"user_id"`
	Specialty string  `json:"specialty"`
	Rating    float64 `json:"rating"`
	Available bool    `json:"available"`
}

// Contact is one entry of the role-resolved directory: a professional seen by
// a user, or a user seen by a professional. Subtitle carries the specialty or
// the email depending on which direction the directory was resolved.
type Contact struct {
	ID        string  `json:"id"`
	FullName  string  `json:"full_name"`
	Subtitle  string  `json:"subtitle"`
	Role      Role    `json:"role"`
	Rating    float64 `json:"rating,omitempty"`
	Available bool    `json:"available,omitempty"`
}

// Profile is what GET /api/users/me returns: the principal plus the
// professional attributes when the principal is a professional.
type Profile struct {
	User         User                 `json:"user"`
	Professional *ProfessionalProfile `json:"professional,omitempty"`
}
