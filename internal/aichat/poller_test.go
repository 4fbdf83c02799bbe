package aichat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/internal/model"
)

// fakeSource returns scripted responses, one per poll.
type fakeSource struct {
	calls    int
	sessions []*model.AISession
	errs     []error
}

func (f *fakeSource) LatestSessionSince(ctx context.Context, userID string, since time.Time) (*model.AISession, error) {
	i := f.calls
	f.calls++
	var s *model.AISession
	var err error
	if i < len(f.sessions) {
		s = f.sessions[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return s, err
}

func TestPollerBudgetExhausted(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, time.Millisecond, 5)

	session, err := p.WaitForResult(context.Background(), "u1", "msg", time.Now())
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, 5, src.calls)
}

func TestPollerStopsOnFirstHit(t *testing.T) {
	hit := &model.AISession{UserID: "u1", Step: 2, UserMessage: "msg"}
	src := &fakeSource{sessions: []*model.AISession{nil, nil, hit}}
	p := NewPoller(src, time.Millisecond, 15)

	session, err := p.WaitForResult(context.Background(), "u1", "msg", time.Now())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, 2, session.Step)
	assert.Equal(t, 3, src.calls)
}

func TestPollerIgnoresOtherMessages(t *testing.T) {
	// A row for a different message must not satisfy the wait.
	other := &model.AISession{UserID: "u1", Step: 1, UserMessage: "something else"}
	src := &fakeSource{sessions: []*model.AISession{other, other, other}}
	p := NewPoller(src, time.Millisecond, 3)

	session, err := p.WaitForResult(context.Background(), "u1", "msg", time.Now())
	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, 3, src.calls)
}

func TestPollerContinuesPastErrors(t *testing.T) {
	hit := &model.AISession{UserID: "u1", UserMessage: "msg"}
	src := &fakeSource{
		sessions: []*model.AISession{nil, hit},
		errs:     []error{errors.New("transient"), nil},
	}
	p := NewPoller(src, time.Millisecond, 15)

	session, err := p.WaitForResult(context.Background(), "u1", "msg", time.Now())
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestPollerCancellation(t *testing.T) {
	src := &fakeSource{}
	p := NewPoller(src, 50*time.Millisecond, 15)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := p.WaitForResult(ctx, "u1", "msg", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, session)
	assert.Zero(t, src.calls)
}
