package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTP TTL is 5 minutes (time to type the code); rate limit 10 requests per
// 10 minutes per email.
const (
	OTPTTL             = 300
	OTPRateLimitWindow = 600 // 10 minutes
	OTPRateLimitMax    = 10  // code requests per window
	SessionSecretTTL   = 30 * 24 * 3600
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetOTP stores a 6-digit code under otp:{email} with a 5 minute TTL. The
// code is stored as-is so verification compares exact values.
func (c *Client) SetOTP(ctx context.Context, email, code string) error {
	return c.cli.Set(ctx, "otp:"+email, code, OTPTTL*time.Second).Err()
}

// GetOTP returns the code for an email. The key is kept; it is deleted only
// after successful verification.
func (c *Client) GetOTP(ctx context.Context, email string) (string, error) {
	val, err := c.cli.Get(ctx, "otp:"+email).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// GetOTPTTL returns the remaining TTL of the OTP key, 0 when absent.
func (c *Client) GetOTPTTL(ctx context.Context, email string) (time.Duration, error) {
	d, err := c.cli.TTL(ctx, "otp:"+email).Result()
	if err != nil || d < 0 {
		return 0, err
	}
	return d, nil
}

// DeleteOTP removes the code after successful verification (single use).
func (c *Client) DeleteOTP(ctx context.Context, email string) error {
	return c.cli.Del(ctx, "otp:"+email).Err()
}

// CheckRateLimit enforces otp_limit:{email}: at most OTPRateLimitMax requests
// per window. Callers answer HTTP 429 on rejection.
func (c *Client) CheckRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "otp_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, OTPRateLimitWindow*time.Second)
	}
	return n <= int64(OTPRateLimitMax), nil
}

func (c *Client) SetSessionSecret(ctx context.Context, sessionID, secret string) error {
	return c.cli.Set(ctx, "session_secret:"+sessionID, secret, SessionSecretTTL*time.Second).Err()
}

func (c *Client) GetSessionSecret(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "session_secret:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSessionSecret(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session_secret:"+sessionID).Err()
}

// FlushDB clears the current Redis DB (reset of codes, limits and secrets for
// tests or a clean restart).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
