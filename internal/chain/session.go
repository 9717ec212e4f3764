package chain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/conversation"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/prompt"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// State is a session's lifecycle state.
type State int32

const (
	Idle State = iota
	Answering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Answering:
		return "answering"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Answer is the result of a successful ask.
type Answer struct {
	Text string
	// Sources are the chunks the answer was grounded on, best first.
	Sources []index.Match
	Turn    conversation.Turn
}

// Session is one conversation. Asks on the same session are serialized in
// arrival order; sessions never share history.
type Session struct {
	id      string
	chain   *Chain
	history *conversation.History
	slot    chan struct{}
	state   atomic.Int32
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State reports whether an ask is in flight.
func (s *Session) State() State { return State(s.state.Load()) }

// History exposes the session's turns for display.
func (s *Session) History() *conversation.History { return s.history }

// Ask answers question using the document and the session's prior turns.
// The turn is recorded only when generation succeeds and ctx is still live;
// any failure leaves the history untouched and the session Idle.
func (s *Session) Ask(ctx context.Context, question string) (*Answer, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		s.chain.metrics.observe(outcomeCancelled, 0)
		return nil, fmt.Errorf("waiting for previous question: %w", ctx.Err())
	}
	defer func() { <-s.slot }()

	s.state.Store(int32(Answering))
	defer s.state.Store(int32(Idle))

	askID := uuid.NewString()
	ctx = logging.WithSessionID(ctx, s.id)
	ctx = logging.WithAskID(ctx, askID)

	ctx, span := tracer.Start(ctx, "chain.Ask")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", s.id),
		attribute.String("ask.id", askID),
		attribute.Int("history.turns", s.history.Len()),
	)

	start := time.Now()
	answer, err := s.ask(ctx, question)
	elapsed := time.Since(start)

	log := s.chain.logger
	if err != nil {
		outcome := outcomeOf(ctx, err)
		s.chain.metrics.observe(outcome, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if outcome == outcomeCancelled {
			log.Info(ctx, "ask cancelled", zap.Duration("duration", elapsed))
		} else {
			log.Warn(ctx, "ask failed", zap.String("outcome", outcome), zap.Error(err), zap.Duration("duration", elapsed))
		}
		return nil, err
	}

	s.chain.metrics.observe(outcomeOK, elapsed)
	s.chain.metrics.sources.Observe(float64(len(answer.Sources)))
	span.SetAttributes(attribute.Int("answer.sources", len(answer.Sources)))
	span.SetStatus(codes.Ok, "")
	log.Info(ctx, "answered",
		zap.Int("turn", answer.Turn.Seq),
		zap.Int("sources", len(answer.Sources)),
		zap.Duration("duration", elapsed))
	return answer, nil
}

func (s *Session) ask(ctx context.Context, question string) (*Answer, error) {
	c := s.chain

	chunks, err := c.retriever.Invoke(ctx, question)
	if err != nil {
		return nil, classify(err, qaerr.KindRetrieval, "chain.retrieve")
	}
	c.logger.Debug(ctx, "retrieved context", zap.Int("chunks", len(chunks)))

	p, err := s.assemble(ctx, chunks, question)
	if err != nil {
		return nil, classify(err, qaerr.KindPromptAssembly, "chain.assemble")
	}

	text, err := c.generator.Generate(ctx, p)
	if err != nil {
		return nil, classify(err, qaerr.KindGeneration, "chain.generate")
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("answer discarded: %w", err)
	}

	turn := s.history.Append(question, text)
	return &Answer{Text: text, Sources: chunks, Turn: turn}, nil
}

func (s *Session) assemble(ctx context.Context, chunks []index.Match, question string) (*prompt.Prompt, error) {
	_, span := tracer.Start(ctx, "chain.Assemble")
	defer span.End()

	p, err := s.chain.assembler.Build(chunks, s.history.Turns(), question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("prompt.messages", len(p.Messages)))
	s.chain.logger.Trace(ctx, "prompt assembled", zap.String("prompt", p.Render()))
	return p, nil
}

// classify reports err under the kind of the step that failed. An error
// already carrying that kind is kept as is; any other kind stays reachable
// as the cause.
func classify(err error, kind qaerr.Kind, op string) error {
	if qaerr.KindOf(err) == kind {
		return err
	}
	return qaerr.New(kind, op, err)
}
