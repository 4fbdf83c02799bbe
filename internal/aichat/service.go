package aichat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
)

// User-facing fallback texts. The assistant speaks Indonesian.
const (
	apologyText  = "Maaf, sedang ada gangguan. Silakan coba beberapa saat lagi."
	timeoutText  = "Respons membutuhkan waktu lebih lama dari biasanya. Silakan coba lagi."
	nextStepText = "Terima kasih sudah berbagi. Mari lanjut ke langkah berikutnya."
)

// unrecognizedText names the reply fields the backend is expected to send,
// so an unknown response shape reads differently from a transport failure.
var unrecognizedText = "Balasan asisten tidak dikenali. Kolom yang diharapkan: " +
	strings.Join(replyFields, ", ") + "."

// Sender is the webhook client surface the service uses.
type Sender interface {
	Send(ctx context.Context, userID, message string) (*Reply, error)
}

// StepSource resolves guided therapy step content.
type StepSource interface {
	GetStep(ctx context.Context, flow model.TherapyFlow, step int) (*model.TherapyStep, error)
}

// Result is what the therapy chat endpoint returns to the client.
type Result struct {
	Text string             `json:"text"`
	Step *model.TherapyStep `json:"step,omitempty"`
}

// Service drives one assistant exchange: post the message, wait for the
// reply (synchronous or via polling), and attach guided step content when
// the backend advanced the flow.
type Service struct {
	sender Sender
	poller *Poller
	steps  StepSource
}

func NewService(sender Sender, poller *Poller, steps StepSource) *Service {
	return &Service{sender: sender, poller: poller, steps: steps}
}

// Respond sends the user's message and produces the assistant reply. It
// never returns a transport error to the caller: failures degrade to a
// fallback text so the conversation survives backend hiccups. Cancellation
// of ctx (client disconnect) is the only error surfaced.
func (s *Service) Respond(ctx context.Context, userID string, flow model.TherapyFlow, message string) (*Result, error) {
	defer logger.DeferLogDuration("aichat.Respond", time.Now())()

	sentAt := time.Now().UTC()
	reply, err := s.sender.Send(ctx, userID, message)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Errorf("aichat respond send user=%s: %v", userID, err)
		return &Result{Text: apologyText}, nil
	}

	switch reply.Kind {
	case ReplySync:
		res := &Result{Text: reply.Text}
		if reply.HasStep {
			res.Step = s.lookupStep(ctx, flow, reply.NextStep)
		}
		return res, nil

	case ReplyAsync:
		session, err := s.poller.WaitForResult(ctx, userID, message, sentAt)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return &Result{Text: timeoutText}, nil
		}
		step := s.lookupStep(ctx, flow, session.Step)
		if step == nil {
			return &Result{Text: nextStepText}, nil
		}
		return &Result{Text: step.Prompt, Step: step}, nil

	default:
		logger.Errorf("aichat respond unrecognized reply user=%s: %s", userID, reply.Diagnostic)
		return &Result{Text: unrecognizedText}, nil
	}
}

func (s *Service) lookupStep(ctx context.Context, flow model.TherapyFlow, step int) *model.TherapyStep {
	ts, err := s.steps.GetStep(ctx, flow, step)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Errorf("aichat lookup step flow=%s step=%d: %v", flow, step, err)
		}
		return nil
	}
	return ts
}
