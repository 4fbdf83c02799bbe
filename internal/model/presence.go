package model

import "time"

// Heartbeat is the ephemeral presence record broadcast when a principal
// connects. It is never persisted; the aggregate lives only in hub memory and
// entries vanish when the connection leaves.
type Heartbeat struct {
	UserID   string    `json:"user_id"`
	Role     Role      `json:"role"`
	OnlineAt time.Time `json:"online_at"`
}
