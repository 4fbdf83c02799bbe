package aichat

import (
	"context"
	"time"

	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
)

// SessionSource is the slice of the therapy repository the poller needs.
type SessionSource interface {
	LatestSessionSince(ctx context.Context, userID string, since time.Time) (*model.AISession, error)
}

// Poller waits for the workflow backend to write the user's result row after
// an asynchronous acknowledgement.
type Poller struct {
	source      SessionSource
	interval    time.Duration
	maxAttempts int
}

func NewPoller(source SessionSource, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 15
	}
	return &Poller{source: source, interval: interval, maxAttempts: maxAttempts}
}

// WaitForResult polls the results table until a row for userID appears whose
// user_message matches the sent message exactly, the attempt budget runs out,
// or ctx is cancelled. Returns nil with a nil error on budget exhaustion;
// cancellation surfaces as ctx.Err(). Polling stops on the first hit.
func (p *Poller) WaitForResult(ctx context.Context, userID, message string, since time.Time) (*model.AISession, error) {
	defer logger.DeferLogDuration("aichat.WaitForResult", time.Now())()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		session, err := p.source.LatestSessionSince(ctx, userID, since)
		if err != nil {
			logger.Errorf("aichat poll attempt=%d user=%s: %v", attempt+1, userID, err)
			continue
		}
		if session != nil && session.UserMessage == message {
			return session, nil
		}
	}
	return nil, nil
}
