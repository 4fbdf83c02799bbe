package middleware

import "strings"

// MaskSessionID masks a session_id for log output (never log the full id).
func MaskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}
