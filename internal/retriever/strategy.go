package retriever

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// Search type names accepted by NewStrategy.
const (
	SearchSimilarity               = "similarity"
	SearchMMR                      = "mmr"
	SearchSimilarityScoreThreshold = "similarityWithScoreThreshold"
)

// Defaults for strategy tuning.
const (
	DefaultFetchK         = 20
	DefaultLambda         = 0.5
	DefaultScoreThreshold = 0.5
)

// Strategy selects chunks from an index for a query vector.
type Strategy interface {
	Name() string
	Select(ctx context.Context, idx index.Index, query []float32, k int) ([]index.Match, error)
}

// StrategyConfig tunes the non-default strategies.
type StrategyConfig struct {
	// FetchK is the MMR candidate pool size.
	FetchK int
	// Lambda trades relevance (1) against diversity (0) for MMR.
	Lambda float64
	// ScoreThreshold is the minimum cosine similarity kept by the threshold strategy.
	ScoreThreshold float64
}

// NewStrategy returns the strategy registered under searchType.
func NewStrategy(searchType string, cfg StrategyConfig) (Strategy, error) {
	switch searchType {
	case SearchSimilarity, "":
		return Similarity{}, nil
	case SearchMMR:
		if cfg.Lambda < 0 || cfg.Lambda > 1 {
			return nil, qaerr.Config("retriever.new_strategy", "mmr lambda must be within [0, 1], got %v", cfg.Lambda)
		}
		return MMR{FetchK: cfg.FetchK, Lambda: cfg.Lambda}, nil
	case SearchSimilarityScoreThreshold:
		return ScoreThreshold{Threshold: float32(cfg.ScoreThreshold)}, nil
	default:
		return nil, qaerr.Config("retriever.new_strategy", "unrecognized search type %q (want %s, %s or %s)",
			searchType, SearchSimilarity, SearchMMR, SearchSimilarityScoreThreshold)
	}
}

// Similarity returns the k nearest neighbours.
type Similarity struct{}

func (Similarity) Name() string { return SearchSimilarity }

func (Similarity) Select(ctx context.Context, idx index.Index, query []float32, k int) ([]index.Match, error) {
	return idx.Query(ctx, query, k)
}

// ScoreThreshold returns up to k nearest neighbours scoring at least Threshold.
type ScoreThreshold struct {
	Threshold float32
}

func (ScoreThreshold) Name() string { return SearchSimilarityScoreThreshold }

func (s ScoreThreshold) Select(ctx context.Context, idx index.Index, query []float32, k int) ([]index.Match, error) {
	matches, err := idx.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= s.Threshold {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// MMR re-ranks a candidate pool by maximal marginal relevance: each pick
// maximizes Lambda*sim(query, c) - (1-Lambda)*max sim(c, picked).
type MMR struct {
	FetchK int
	Lambda float64
}

func (MMR) Name() string { return SearchMMR }

func (m MMR) Select(ctx context.Context, idx index.Index, query []float32, k int) ([]index.Match, error) {
	fetchK := m.FetchK
	if fetchK <= 0 {
		fetchK = DefaultFetchK
	}
	candidates, err := idx.Query(ctx, query, max(fetchK, k))
	if err != nil {
		return nil, fmt.Errorf("fetching mmr candidates: %w", err)
	}
	k = min(k, len(candidates))
	if k <= 0 {
		return []index.Match{}, nil
	}

	lambda := float32(m.Lambda)
	selected := make([]index.Match, 0, k)
	used := make([]bool, len(candidates))
	// maxSim[i] is candidate i's highest similarity to anything selected.
	maxSim := make([]float32, len(candidates))

	for len(selected) < k {
		best, bestScore := -1, float32(0)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			penalty := float32(0)
			if len(selected) > 0 {
				penalty = maxSim[i]
			}
			score := lambda*c.Score - (1-lambda)*penalty
			if best < 0 || score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		pick := candidates[best]
		selected = append(selected, pick)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			sim := index.Dot(c.Vector, pick.Vector)
			if len(selected) == 1 || sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return selected, nil
}
