package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPLifecycle(t *testing.T) {
	c := New()
	ctx := context.Background()

	code, err := c.GetOTP(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Empty(t, code)

	require.NoError(t, c.SetOTP(ctx, "a@b.id", "123456"))
	code, err = c.GetOTP(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	ttl, err := c.GetOTPTTL(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Greater(t, ttl, 290*time.Second)
	assert.LessOrEqual(t, ttl, 300*time.Second)

	require.NoError(t, c.DeleteOTP(ctx, "a@b.id"))
	code, err = c.GetOTP(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestOTPExpiry(t *testing.T) {
	c := New()
	ctx := context.Background()
	c.SetOTP(ctx, "a@b.id", "123456")

	// Force the entry past its deadline.
	c.mu.Lock()
	v := c.otp["a@b.id"]
	v.exp = time.Now().Add(-time.Second)
	c.otp["a@b.id"] = v
	c.mu.Unlock()

	code, err := c.GetOTP(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Empty(t, code)
	ttl, err := c.GetOTPTTL(ctx, "a@b.id")
	require.NoError(t, err)
	assert.Zero(t, ttl)
}

func TestRateLimitWindow(t *testing.T) {
	c := New()
	ctx := context.Background()

	for i := 0; i < otpRateLimitMax; i++ {
		ok, err := c.CheckRateLimit(ctx, "a@b.id")
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}
	ok, err := c.CheckRateLimit(ctx, "a@b.id")
	require.NoError(t, err)
	assert.False(t, ok)

	// Another address has its own budget.
	ok, err = c.CheckRateLimit(ctx, "other@b.id")
	require.NoError(t, err)
	assert.True(t, ok)

	// Entries older than the window fall out and free the budget.
	c.mu.Lock()
	old := time.Now().Add(-otpRateLimitWindow - time.Minute)
	for i := range c.limit["a@b.id"] {
		c.limit["a@b.id"][i] = old
	}
	c.mu.Unlock()
	ok, err = c.CheckRateLimit(ctx, "a@b.id")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionSecrets(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.SetSessionSecret(ctx, "s1", "secret-1"))
	got, err := c.GetSessionSecret(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "secret-1", got)

	require.NoError(t, c.DeleteSessionSecret(ctx, "s1"))
	got, err = c.GetSessionSecret(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
