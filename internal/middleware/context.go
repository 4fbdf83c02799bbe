package middleware

import (
	"context"

	"github.com/mindcare/internal/model"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserRoleKey  contextKey = "user_role"
	SessionIDKey contextKey = "session_id"
)

// GetUserID returns the user_id from the context (set by AuthServiceValidate
// or SessionAuth).
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// GetUserRole returns the authenticated viewer's role from the context.
func GetUserRole(ctx context.Context) model.Role {
	v, _ := ctx.Value(UserRoleKey).(model.Role)
	return v
}

func GetSessionID(ctx context.Context) string {
	v, _ := ctx.Value(SessionIDKey).(string)
	return v
}
