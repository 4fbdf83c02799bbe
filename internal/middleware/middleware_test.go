package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMaskSessionIDMiddleware(t *testing.T) {
	assert.Equal(t, "abcd***", MaskSessionID("abcdef-123"))
	assert.Equal(t, "****", MaskSessionID("ab"))
	assert.Equal(t, "****", MaskSessionID("   "))
}

func TestSecureHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	SecureHeaders(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalOnly(t *testing.T) {
	t.Setenv("INTERNAL_VALIDATE_SECRET", "")
	h := InternalOnly(okHandler())

	// Loopback caller passes.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "127.0.0.1:4000"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Public caller is rejected.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Forwarded private address passes.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.Header.Set("X-Real-Ip", "10.0.0.5")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInternalOnlySecretHeader(t *testing.T) {
	t.Setenv("INTERNAL_VALIDATE_SECRET", "s3cret")
	h := InternalOnly(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.Header.Set("X-Internal-Secret", "s3cret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/internal/validate", nil)
	req.RemoteAddr = "203.0.113.7:4000"
	req.Header.Set("X-Internal-Secret", "wrong")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("k"))
	}
	assert.False(t, rl.allow("k"))
	assert.True(t, rl.allow("other"))

	// Expired entries free the budget.
	rl.mu.Lock()
	old := time.Now().Add(-2 * time.Minute)
	for i := range rl.times["k"] {
		rl.times["k"][i] = old
	}
	rl.mu.Unlock()
	assert.True(t, rl.allow("k"))
}
