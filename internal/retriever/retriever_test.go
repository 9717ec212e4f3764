package retriever_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/embeddings/embeddingstest"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
	"github.com/fyrsmithlabs/pdfchat/internal/retriever"
)

func buildIndex(t *testing.T, texts ...string) index.Index {
	t.Helper()
	chunks := make([]chunker.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunker.Chunk{ID: fmt.Sprintf("c%d", i), Index: i, Text: text}
	}
	idx, err := index.Build(context.Background(), chunks, &embeddingstest.Letters{})
	require.NoError(t, err)
	return idx
}

func texts(ms []index.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Chunk.Text
	}
	return out
}

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		searchType string
		want       string
		wantErr    bool
	}{
		{"similarity", retriever.SearchSimilarity, false},
		{"", retriever.SearchSimilarity, false},
		{"mmr", retriever.SearchMMR, false},
		{"similarityWithScoreThreshold", retriever.SearchSimilarityScoreThreshold, false},
		{"hybrid", "", true},
		{"Similarity", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.searchType, func(t *testing.T) {
			s, err := retriever.NewStrategy(tt.searchType, retriever.StrategyConfig{Lambda: 0.5})
			if tt.wantErr {
				assert.ErrorIs(t, err, qaerr.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Name())
		})
	}
}

func TestNewStrategy_RejectsBadLambda(t *testing.T) {
	_, err := retriever.NewStrategy(retriever.SearchMMR, retriever.StrategyConfig{Lambda: 1.5})
	assert.ErrorIs(t, err, qaerr.ErrConfig)
}

func TestNew_RejectsNonPositiveK(t *testing.T) {
	_, err := retriever.New(nil, &embeddingstest.Letters{}, nil, 0)
	assert.ErrorIs(t, err, qaerr.ErrConfig)
}

func TestInvoke_Similarity(t *testing.T) {
	idx := buildIndex(t, "bbbb", "aaaa", "aabb", "cccc")
	r, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.Similarity{}, 2)
	require.NoError(t, err)

	got, err := r.Invoke(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa", "aabb"}, texts(got))
	assert.Equal(t, 2, r.K())
}

func TestInvoke_ClampsToIndexSize(t *testing.T) {
	idx := buildIndex(t, "a", "b", "c", "d", "e")
	r, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.Similarity{}, 100)
	require.NoError(t, err)

	got, err := r.Invoke(context.Background(), "abc")
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestInvoke_EmptyQuery(t *testing.T) {
	idx := buildIndex(t, "a", "b")
	e := &embeddingstest.Letters{}
	r, err := retriever.New(idx, e, retriever.Similarity{}, 5)
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := r.Invoke(context.Background(), q)
		require.Error(t, err)
		assert.ErrorIs(t, err, qaerr.ErrRetrieval)
		assert.ErrorIs(t, err, retriever.ErrEmptyQuery)
	}
	assert.Zero(t, e.Calls())
}

func TestInvoke_EmbeddingFailure(t *testing.T) {
	idx := buildIndex(t, "a", "b")
	r, err := retriever.New(idx, &embeddingstest.Letters{FailQueries: true}, retriever.Similarity{}, 1)
	require.NoError(t, err)

	_, err = r.Invoke(context.Background(), "question")
	assert.ErrorIs(t, err, qaerr.ErrRetrieval)
	assert.ErrorIs(t, err, qaerr.ErrEmbeddingService)
	assert.ErrorIs(t, err, embeddingstest.ErrInjected)
}

func TestInvoke_ScoreThreshold(t *testing.T) {
	idx := buildIndex(t, "aaaa", "abbb", "bbbb", "aabb")
	r, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.ScoreThreshold{Threshold: 0.5}, 4)
	require.NoError(t, err)

	got, err := r.Invoke(context.Background(), "a")
	require.NoError(t, err)
	// aaaa scores 1.0, aabb 0.707, abbb 0.316, bbbb 0.
	assert.Equal(t, []string{"aaaa", "aabb"}, texts(got))
	for _, m := range got {
		assert.GreaterOrEqual(t, m.Score, float32(0.5))
	}
}

func TestInvoke_ScoreThresholdCanReturnNothing(t *testing.T) {
	idx := buildIndex(t, "bbbb", "cccc")
	r, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.ScoreThreshold{Threshold: 0.5}, 2)
	require.NoError(t, err)

	got, err := r.Invoke(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvoke_MMRPrefersDiversity(t *testing.T) {
	idx := buildIndex(t, "aaaa", "aaaa a", "bbbb", "cccc")

	sim, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.Similarity{}, 2)
	require.NoError(t, err)
	got, err := sim.Invoke(context.Background(), "aab")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa", "aaaa a"}, texts(got))

	mmr, err := retriever.New(idx, &embeddingstest.Letters{}, retriever.MMR{FetchK: 4, Lambda: 0.5}, 2)
	require.NoError(t, err)
	got, err = mmr.Invoke(context.Background(), "aab")
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa", "bbbb"}, texts(got))
}

func TestMMR_LambdaOneMatchesSimilarity(t *testing.T) {
	idx := buildIndex(t, "the quick brown fox", "jumps over", "the lazy dog", "quick quick", "brown")
	q := embeddingstest.Vector("quick brown")

	want, err := retriever.Similarity{}.Select(context.Background(), idx, q, 3)
	require.NoError(t, err)
	got, err := retriever.MMR{FetchK: 5, Lambda: 1}.Select(context.Background(), idx, q, 3)
	require.NoError(t, err)

	assert.Equal(t, texts(want), texts(got))
}

func TestMMR_FetchKBelowK(t *testing.T) {
	idx := buildIndex(t, "a", "b", "c", "d")
	got, err := retriever.MMR{FetchK: 1, Lambda: 0.5}.Select(context.Background(), idx, embeddingstest.Vector("a"), 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
