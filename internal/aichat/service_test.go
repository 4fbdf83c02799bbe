package aichat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

type fakeSender struct {
	reply *Reply
	err   error
}

func (f *fakeSender) Send(ctx context.Context, userID, message string) (*Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakeSteps struct {
	steps map[int]*model.TherapyStep
}

func (f *fakeSteps) GetStep(ctx context.Context, flow model.TherapyFlow, step int) (*model.TherapyStep, error) {
	if s, ok := f.steps[step]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func newTestService(sender Sender, source SessionSource, steps StepSource) *Service {
	return NewService(sender, NewPoller(source, time.Millisecond, 3), steps)
}

func TestRespondSync(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplySync, Text: "balasan"}}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, "balasan", res.Text)
	assert.Nil(t, res.Step)
}

func TestRespondSyncWithStep(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplySync, Text: "lanjut", NextStep: 2, HasStep: true}}
	step2 := &model.TherapyStep{Flow: model.FlowCBT, Step: 2, Title: "Pikiran Otomatis", Prompt: "Apa yang muncul?"}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{steps: map[int]*model.TherapyStep{2: step2}})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, "lanjut", res.Text)
	require.NotNil(t, res.Step)
	assert.Equal(t, 2, res.Step.Step)
}

func TestRespondSyncUnknownStepDropsStep(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplySync, Text: "lanjut", NextStep: 99, HasStep: true}}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, "lanjut", res.Text)
	assert.Nil(t, res.Step)
}

func TestRespondAsyncPollsResult(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplyAsync}}
	hit := &model.AISession{UserID: "u1", Step: 3, UserMessage: "halo"}
	step3 := &model.TherapyStep{Flow: model.FlowSFBT, Step: 3, Title: "Skala", Prompt: "Dari 1 sampai 10?"}
	svc := newTestService(sender, &fakeSource{sessions: []*model.AISession{nil, hit}}, &fakeSteps{steps: map[int]*model.TherapyStep{3: step3}})

	res, err := svc.Respond(context.Background(), "u1", model.FlowSFBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, "Dari 1 sampai 10?", res.Text)
	require.NotNil(t, res.Step)
	assert.Equal(t, 3, res.Step.Step)
}

func TestRespondAsyncTimeout(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplyAsync}}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, timeoutText, res.Text)
	assert.Nil(t, res.Step)
}

func TestRespondAsyncStepMissFallsBack(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplyAsync}}
	hit := &model.AISession{UserID: "u1", Step: 42, UserMessage: "halo"}
	svc := newTestService(sender, &fakeSource{sessions: []*model.AISession{hit}}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, nextStepText, res.Text)
}

func TestRespondTransportErrorDegrades(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	assert.Equal(t, apologyText, res.Text)
}

func TestRespondUnrecognizedNamesExpectedFields(t *testing.T) {
	sender := &fakeSender{reply: &Reply{Kind: ReplyUnrecognized, Diagnostic: "keys: status"}}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	res, err := svc.Respond(context.Background(), "u1", model.FlowCBT, "halo")
	require.NoError(t, err)
	// Distinct from the transport apology, and names the reply fields.
	assert.Equal(t, unrecognizedText, res.Text)
	assert.NotEqual(t, apologyText, res.Text)
	assert.Contains(t, res.Text, "bot_response")
	assert.Contains(t, res.Text, "message")
}

func TestRespondCancelledSurfacesError(t *testing.T) {
	sender := &fakeSender{err: errors.New("context canceled")}
	svc := newTestService(sender, &fakeSource{}, &fakeSteps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Respond(ctx, "u1", model.FlowCBT, "halo")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}
