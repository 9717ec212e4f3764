package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// memoryIndex scores every entry on each query. Suitable for the few
// thousand chunks a single document produces.
type memoryIndex struct {
	entries []entry
	dim     int
}

func newMemoryIndex(entries []entry, dim int) *memoryIndex {
	return &memoryIndex{entries: entries, dim: dim}
}

func (m *memoryIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), m.dim)
	}
	k = clampK(k, len(m.entries))
	if k == 0 {
		return []Match{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { queryDuration.WithLabelValues(BackendMemory).Observe(time.Since(start).Seconds()) }()

	q := Normalize(vector)
	matches := make([]Match, len(m.entries))
	for i, e := range m.entries {
		matches[i] = Match{Chunk: e.chunk, Score: Dot(q, e.vector), Ordinal: i, Vector: e.vector}
	}
	sortMatches(matches)
	return matches[:k], nil
}

func (m *memoryIndex) Len() int        { return len(m.entries) }
func (m *memoryIndex) Dimension() int  { return m.dim }
func (m *memoryIndex) Backend() string { return BackendMemory }

// sortMatches orders by descending score, then ascending ordinal.
func sortMatches(matches []Match) {
	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
}
