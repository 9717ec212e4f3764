// Package index holds chunk embeddings and answers nearest-neighbour queries.
//
// An Index is built once from a chunk sequence and is read-only afterwards;
// Query is safe for concurrent use. Similarity is cosine similarity: vectors
// are L2-normalized at build time and scores are dot products in [-1, 1].
// Results are ordered by descending score, ties by insertion order.
package index

import (
	"context"
	"errors"
	"math"

	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
)

var (
	// ErrNoChunks is returned when Build is given nothing to index.
	ErrNoChunks = errors.New("no chunks to index")
	// ErrDimensionMismatch is returned when vector sizes disagree.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown index backend")
)

// Backend names.
const (
	BackendMemory  = "memory"
	BackendChromem = "chromem"
)

// Match is one query result.
type Match struct {
	Chunk chunker.Chunk
	// Score is the cosine similarity to the query.
	Score float32
	// Ordinal is the chunk's insertion position in the index.
	Ordinal int
	// Vector is the stored, normalized embedding. Callers must not modify it.
	Vector []float32
}

// Index is a built, read-only embedding index.
type Index interface {
	// Query returns the k best matches for vector. k is clamped to Len.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Len() int
	Dimension() int
	Backend() string
}

// entry is one indexed chunk with its normalized vector.
type entry struct {
	chunk  chunker.Chunk
	vector []float32
}

func clampK(k, n int) int {
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}

// Normalize returns v scaled to unit length. A zero vector is returned as a
// zero vector of the same size.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
