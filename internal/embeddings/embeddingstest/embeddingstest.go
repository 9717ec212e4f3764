// Package embeddingstest provides deterministic embedders for tests.
package embeddingstest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// Dimension is the vector size produced by Letters.
const Dimension = 26

// Letters embeds text as its a-z letter histogram. Texts sharing letters
// score higher, which is enough to make retrieval order predictable.
type Letters struct {
	// FailOn makes any call containing this substring fail.
	FailOn string
	// FailQueries makes EmbedQuery fail.
	FailQueries bool

	calls atomic.Int64
	mu    sync.Mutex
	seen  []string
}

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected embedding failure")

// Vector returns the histogram for text.
func Vector(text string) []float32 {
	v := make([]float32, Dimension)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func (l *Letters) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	l.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if l.FailOn != "" && strings.Contains(t, l.FailOn) {
			return nil, ErrInjected
		}
		out[i] = Vector(t)
	}
	l.mu.Lock()
	l.seen = append(l.seen, texts...)
	l.mu.Unlock()
	return out, nil
}

func (l *Letters) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if l.FailQueries {
		l.calls.Add(1)
		return nil, ErrInjected
	}
	vecs, err := l.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the fixed vector size.
func (l *Letters) Dimension() int { return Dimension }

// Close is a no-op.
func (l *Letters) Close() error { return nil }

// Calls returns the number of embedding calls made.
func (l *Letters) Calls() int { return int(l.calls.Load()) }

// Seen returns every text embedded so far.
func (l *Letters) Seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.seen...)
}

// Fixed returns the same vector for every text.
type Fixed []float32

func (f Fixed) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), f...)
	}
	return out, nil
}

func (f Fixed) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return append([]float32(nil), f...), nil
}

func (f Fixed) Dimension() int { return len(f) }

func (f Fixed) Close() error { return nil }
