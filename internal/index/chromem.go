package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"
)

const (
	chromemCollection = "chunks"
	ordinalKey        = "ordinal"
)

var errPrecomputed = errors.New("chromem index only accepts precomputed embeddings")

// chromemIndex stores entries in an in-memory chromem-go collection.
// Zero vectors stay outside the collection because chromem would
// normalize them to NaN; they always score 0.
type chromemIndex struct {
	collection *chromem.Collection
	entries    []entry
	zero       []int
	dim        int
}

func newChromemIndex(ctx context.Context, entries []entry, dim int) (*chromemIndex, error) {
	db := chromem.NewDB()
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errPrecomputed }

	collection, err := db.CreateCollection(chromemCollection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}

	var zero []int
	docs := make([]chromem.Document, 0, len(entries))
	for i, e := range entries {
		if isZero(e.vector) {
			zero = append(zero, i)
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        strconv.Itoa(i),
			Content:   e.chunk.Text,
			Embedding: e.vector,
			Metadata: map[string]string{
				ordinalKey: strconv.Itoa(i),
				"chunk_id": e.chunk.ID,
				"page":     strconv.Itoa(e.chunk.Page),
			},
		})
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("adding chunks to chromem: %w", err)
		}
	}

	return &chromemIndex{collection: collection, entries: entries, zero: zero, dim: dim}, nil
}

// Query asks chromem for every document and re-sorts, because chromem does
// not order equal scores by insertion.
func (c *chromemIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if len(vector) != c.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), c.dim)
	}
	k = clampK(k, len(c.entries))
	if k == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	defer func() { queryDuration.WithLabelValues(BackendChromem).Observe(time.Since(start).Seconds()) }()

	q := Normalize(vector)
	if Dot(q, q) == 0 {
		// chromem cannot normalize a zero vector; every cosine is zero.
		return zeroMatches(c.entries, k), nil
	}

	var results []chromem.Result
	if n := c.collection.Count(); n > 0 {
		var err error
		results, err = c.collection.QueryEmbedding(ctx, q, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying chromem: %w", err)
		}
	}

	matches := make([]Match, 0, len(results)+len(c.zero))
	for _, ord := range c.zero {
		e := c.entries[ord]
		matches = append(matches, Match{Chunk: e.chunk, Ordinal: ord, Vector: e.vector})
	}
	for _, r := range results {
		ord, err := strconv.Atoi(r.Metadata[ordinalKey])
		if err != nil || ord < 0 || ord >= len(c.entries) {
			return nil, fmt.Errorf("chromem result %q has invalid ordinal %q", r.ID, r.Metadata[ordinalKey])
		}
		e := c.entries[ord]
		matches = append(matches, Match{Chunk: e.chunk, Score: r.Similarity, Ordinal: ord, Vector: e.vector})
	}
	sortMatches(matches)
	return matches[:min(k, len(matches))], nil
}

func (c *chromemIndex) Len() int        { return len(c.entries) }
func (c *chromemIndex) Dimension() int  { return c.dim }
func (c *chromemIndex) Backend() string { return BackendChromem }

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func zeroMatches(entries []entry, k int) []Match {
	out := make([]Match, k)
	for i := range out {
		out[i] = Match{Chunk: entries[i].chunk, Ordinal: i, Vector: entries[i].vector}
	}
	return out
}
