package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ananth-NQI/intake-backend/internal/metrics"
	"github.com/Ananth-NQI/intake-backend/internal/models"
	"github.com/Ananth-NQI/intake-backend/internal/questions"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

const eightQuestionWelcome = "👋 Welcome! We'd love to learn about what you're building. " +
	"It takes 8 quick questions."

// EightQuestionFlow walks the user through the question bank one step per turn
type EightQuestionFlow struct {
	store    storage.SessionStore
	bank     *questions.Bank
	notifier CompletionNotifier
	leads    LeadEnqueuer
	metrics  *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewEightQuestionFlow creates the questionnaire handler. leads may be nil.
func NewEightQuestionFlow(store storage.SessionStore, bank *questions.Bank, notifier CompletionNotifier, leads LeadEnqueuer, rec *metrics.Recorder, logger *slog.Logger) *EightQuestionFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &EightQuestionFlow{
		store:    store,
		bank:     bank,
		notifier: notifier,
		leads:    leads,
		metrics:  rec,
		logger:   logger,
		now:      time.Now,
	}
}

func (f *EightQuestionFlow) Flow() models.FlowType { return models.FlowEightQuestion }

func (f *EightQuestionFlow) Handle(ctx context.Context, turn Turn) (*Reply, error) {
	s := turn.Session
	total := f.bank.Len()

	if s.CurrentStep >= total {
		return f.complete(ctx, s)
	}

	q, _ := f.bank.At(s.CurrentStep)
	if turn.Entered {
		return &Reply{Body: eightQuestionWelcome + "\n\n" + questions.Render(q, total), Session: s}, nil
	}

	answer, err := questions.Validate(q, turn.Text)
	if err != nil {
		var verr *questions.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		f.metrics.ValidationFailed(q.ID)
		f.logger.Debug("answer rejected", "session_id", s.ID, "question_id", q.ID, "reason", verr.Message)
		return &Reply{Body: questions.RenderRetry(q, total, verr), Session: s}, nil
	}

	s, err = f.store.RecordAnswer(ctx, s.ID, s.Version, q.ID, answer)
	if err != nil {
		return nil, err
	}
	s, err = f.store.AdvanceStep(ctx, s.ID, s.Version)
	if err != nil {
		return nil, err
	}

	if s.CurrentStep >= total {
		return f.complete(ctx, s)
	}

	next, _ := f.bank.At(s.CurrentStep)
	return &Reply{Body: "✅ Got it.\n\n" + questions.Render(next, total), Session: s}, nil
}

// complete marks the session completed and hands the lead to the notifier.
// A notifier failure never undoes completion; the lead is queued instead.
func (f *EightQuestionFlow) complete(ctx context.Context, s *models.Session) (*Reply, error) {
	s, err := f.store.MarkCompleted(ctx, s.ID, s.Version)
	if err != nil {
		return nil, err
	}
	f.metrics.Completed()

	lead := models.Lead{
		SessionID:   s.ID,
		UserPhone:   s.UserPhone,
		Answers:     s.Answers.Clone(),
		QualifiedAt: f.now(),
	}
	if err := f.notifier.OnLeadQualified(ctx, lead); err != nil {
		f.metrics.NotifyFailed()
		f.logger.Error("❌ lead notification failed", "session_id", s.ID, "error", err)
		if f.leads != nil {
			if qerr := f.leads.Enqueue(ctx, lead, err); qerr != nil {
				f.logger.Error("❌ failed to queue lead for reconciliation", "session_id", s.ID, "error", qerr)
			}
		}
	}

	f.logger.Info("🎉 questionnaire completed", "session_id", s.ID, "phone", s.UserPhone)
	return &Reply{Body: f.closingMessage(s), Session: s}, nil
}

func (f *EightQuestionFlow) closingMessage(s *models.Session) string {
	greeting := "🎉 Thank you!"
	for _, a := range s.Answers {
		if a.Kind == models.QuestionContactExtract && a.Contact != nil && a.Contact.Name != "" {
			greeting = fmt.Sprintf("🎉 Thank you, %s!", a.Contact.Name)
			break
		}
	}
	return greeting + " Your application is complete. Here's what we received:\n\n" +
		questions.Summary(f.bank, s.Answers) +
		"\n\nOur team will review it and get back to you soon."
}
