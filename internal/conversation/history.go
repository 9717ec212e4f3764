package conversation

import (
	"sync"
	"time"
)

// Turn is one answered question.
type Turn struct {
	// Seq is the 1-based position of the turn in its history.
	Seq      int
	Question string
	Answer   string
	At       time.Time
}

// History is an append-only sequence of turns.
type History struct {
	mu    sync.RWMutex
	turns []Turn
	now   func() time.Time
}

// Option configures a History.
type Option func(*History)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(h *History) { h.now = now }
}

// New returns an empty history.
func New(opts ...Option) *History {
	h := &History{now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Append adds a turn at the end and returns it.
func (h *History) Append(question, answer string) Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := Turn{
		Seq:      len(h.turns) + 1,
		Question: question,
		Answer:   answer,
		At:       h.now(),
	}
	h.turns = append(h.turns, t)
	return t
}

// Turns returns a copy of all turns in chronological order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Last returns the most recent turn, if any.
func (h *History) Last() (Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1], true
}
