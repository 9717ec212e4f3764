package chain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pdfchat/internal/chain"
	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/conversation"
	"github.com/fyrsmithlabs/pdfchat/internal/embeddings/embeddingstest"
	"github.com/fyrsmithlabs/pdfchat/internal/generation"
	"github.com/fyrsmithlabs/pdfchat/internal/index"
	"github.com/fyrsmithlabs/pdfchat/internal/logging"
	"github.com/fyrsmithlabs/pdfchat/internal/prompt"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
	"github.com/fyrsmithlabs/pdfchat/internal/retriever"
)

var corpus = []string{
	"London is the capital of the United Kingdom.",
	"The population of London is about nine million people.",
	"Paris is the capital of France.",
}

type retrieverFunc func(ctx context.Context, question string) ([]index.Match, error)

func (f retrieverFunc) Invoke(ctx context.Context, question string) ([]index.Match, error) {
	return f(ctx, question)
}

// recorder is a scripted generator that keeps every prompt it was sent.
type recorder struct {
	mu      sync.Mutex
	prompts []*prompt.Prompt
	answers []string
	fail    map[int]error
	calls   int
}

func (r *recorder) Generate(ctx context.Context, p *prompt.Prompt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.prompts = append(r.prompts, p)
	if err, ok := r.fail[r.calls]; ok {
		return "", err
	}
	if len(r.answers) == 0 {
		return fmt.Sprintf("answer %d", r.calls), nil
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}

func (r *recorder) prompt(i int) *prompt.Prompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prompts[i]
}

func newChain(t *testing.T, gen generation.Client, opts ...chain.Option) *chain.Chain {
	t.Helper()
	chunks := make([]chunker.Chunk, len(corpus))
	for i, text := range corpus {
		chunks[i] = chunker.Chunk{ID: fmt.Sprintf("c%d", i), Index: i, Text: text}
	}
	embedder := &embeddingstest.Letters{}
	idx, err := index.Build(context.Background(), chunks, embedder)
	require.NoError(t, err)

	r, err := retriever.New(idx, embedder, retriever.Similarity{}, 2)
	require.NoError(t, err)

	opts = append([]chain.Option{chain.WithRegisterer(prometheus.NewRegistry())}, opts...)
	return chain.New(r, prompt.NewAssembler(prompt.Config{}), gen, opts...)
}

func TestAsk_HistoryFlowsIntoNextPrompt(t *testing.T) {
	gen := &recorder{answers: []string{"London.", "About nine million."}}
	s := newChain(t, gen).NewSession()

	first, err := s.Ask(context.Background(), "What is the capital of UK?")
	require.NoError(t, err)
	assert.Equal(t, "London.", first.Text)
	assert.Equal(t, 1, first.Turn.Seq)
	assert.Len(t, first.Sources, 2)

	second, err := s.Ask(context.Background(), "What is the population of the capital?")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Turn.Seq)
	assert.Equal(t, 2, s.History().Len())

	msgs := gen.prompt(1).Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, prompt.Message{Role: prompt.RoleHuman, Content: "What is the capital of UK?"}, msgs[1])
	assert.Equal(t, prompt.Message{Role: prompt.RoleAI, Content: "London."}, msgs[2])
	assert.Equal(t, "What is the population of the capital?", msgs[3].Content)
	assert.Contains(t, msgs[0].Content, "London")
}

func TestAsk_GenerationFailureLeavesHistoryAndAllowsRetry(t *testing.T) {
	gen := &recorder{fail: map[int]error{2: qaerr.Generation("test", errors.New("model overloaded"))}}
	s := newChain(t, gen).NewSession()

	_, err := s.Ask(context.Background(), "What is the capital of UK?")
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), "What is the population of the capital?")
	require.Error(t, err)
	assert.ErrorIs(t, err, qaerr.ErrGeneration)
	assert.Equal(t, 1, s.History().Len())
	assert.Equal(t, chain.Idle, s.State())

	retry, err := s.Ask(context.Background(), "What is the population of the capital?")
	require.NoError(t, err)
	assert.Equal(t, 2, retry.Turn.Seq)
	assert.Equal(t, 2, s.History().Len())
}

func TestAsk_ClassifiesStepErrors(t *testing.T) {
	t.Run("empty question is a retrieval error", func(t *testing.T) {
		gen := &recorder{}
		s := newChain(t, gen).NewSession()

		_, err := s.Ask(context.Background(), "   ")
		assert.ErrorIs(t, err, qaerr.ErrRetrieval)
		assert.ErrorIs(t, err, retriever.ErrEmptyQuery)
		assert.Zero(t, gen.calls, "generator must not be called")
		assert.Zero(t, s.History().Len())
	})

	t.Run("unclassified generator error", func(t *testing.T) {
		s := newChain(t, generation.ClientFunc(func(context.Context, *prompt.Prompt) (string, error) {
			return "", errors.New("boom")
		})).NewSession()

		_, err := s.Ask(context.Background(), "capital?")
		assert.ErrorIs(t, err, qaerr.ErrGeneration)
		assert.Equal(t, qaerr.KindGeneration, qaerr.KindOf(err))
	})

	t.Run("assembler error", func(t *testing.T) {
		s := newChain(t, &recorder{}).NewSession()
		_, err := s.Ask(context.Background(), "caf\xe9 capital?")
		assert.ErrorIs(t, err, qaerr.ErrPromptAssembly)
	})

	t.Run("foreign kinds are reported under the failing step", func(t *testing.T) {
		misconfigured := qaerr.Config("store.lookup", "collection %q missing", "chunks")

		r := retrieverFunc(func(context.Context, string) ([]index.Match, error) { return nil, misconfigured })
		s := chain.New(r, prompt.NewAssembler(prompt.Config{}), &recorder{}, chain.WithRegisterer(prometheus.NewRegistry())).NewSession()
		_, err := s.Ask(context.Background(), "capital?")
		assert.Equal(t, qaerr.KindRetrieval, qaerr.KindOf(err))
		assert.ErrorIs(t, err, qaerr.ErrConfig, "cause stays reachable")

		gen := generation.ClientFunc(func(context.Context, *prompt.Prompt) (string, error) { return "", misconfigured })
		s = newChain(t, gen).NewSession()
		_, err = s.Ask(context.Background(), "capital?")
		assert.Equal(t, qaerr.KindGeneration, qaerr.KindOf(err))
		assert.Zero(t, s.History().Len())
	})

	t.Run("retriever embedding failure", func(t *testing.T) {
		idx, err := index.Build(context.Background(), []chunker.Chunk{{ID: "c0", Text: "london"}}, &embeddingstest.Letters{})
		require.NoError(t, err)
		r, err := retriever.New(idx, &embeddingstest.Letters{FailQueries: true}, retriever.Similarity{}, 1)
		require.NoError(t, err)

		s := chain.New(r, prompt.NewAssembler(prompt.Config{}), &recorder{}, chain.WithRegisterer(prometheus.NewRegistry())).NewSession()
		_, err = s.Ask(context.Background(), "london?")
		assert.ErrorIs(t, err, qaerr.ErrRetrieval)
		assert.ErrorIs(t, err, qaerr.ErrEmbeddingService)
	})
}

func TestAsk_CancelledDuringGenerationDoesNotAppend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := generation.ClientFunc(func(context.Context, *prompt.Prompt) (string, error) {
		cancel()
		return "too late", nil
	})
	s := newChain(t, gen).NewSession()

	_, err := s.Ask(ctx, "capital?")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.History().Len())
	assert.Equal(t, chain.Idle, s.State())
}

func TestAsk_SerializesWithinSession(t *testing.T) {
	release := make(chan struct{})
	var inFlight, maxInFlight atomic.Int32
	gen := generation.ClientFunc(func(ctx context.Context, p *prompt.Prompt) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		return "ok: " + p.Messages[len(p.Messages)-1].Content, nil
	})
	s := newChain(t, gen).NewSession()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Ask(context.Background(), fmt.Sprintf("question %d", i))
			assert.NoError(t, err)
		}(i)
	}

	require.Eventually(t, func() bool { return s.State() == chain.Answering }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, 3, s.History().Len())
	for i, turn := range s.History().Turns() {
		assert.Equal(t, i+1, turn.Seq)
		assert.Equal(t, "ok: "+turn.Question, turn.Answer)
	}
	assert.Equal(t, chain.Idle, s.State())
}

func TestAsk_WaitingAskHonoursContext(t *testing.T) {
	release := make(chan struct{})
	gen := generation.ClientFunc(func(ctx context.Context, _ *prompt.Prompt) (string, error) {
		<-release
		return "done", nil
	})
	s := newChain(t, gen).NewSession()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Ask(context.Background(), "first")
	}()
	require.Eventually(t, func() bool { return s.State() == chain.Answering }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Ask(ctx, "second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
	assert.Equal(t, 1, s.History().Len())
}

func TestSessions_AreIsolated(t *testing.T) {
	c := newChain(t, &recorder{})
	a, b := c.NewSession(), c.NewSession()
	assert.NotEqual(t, a.ID(), b.ID())

	_, err := a.Ask(context.Background(), "capital?")
	require.NoError(t, err)

	assert.Equal(t, 1, a.History().Len())
	assert.Zero(t, b.History().Len())
	assert.EqualValues(t, 2, c.Sessions())
}

func TestSession_HistoryClock(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newChain(t, &recorder{}).NewSession(conversation.WithClock(func() time.Time { return at }))

	ans, err := s.Ask(context.Background(), "capital?")
	require.NoError(t, err)
	assert.Equal(t, at, ans.Turn.At)
}

func TestAsk_LogsAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := logging.NewRecorder()
	gen := &recorder{fail: map[int]error{2: errors.New("rejected")}}
	s := newChain(t, gen, chain.WithRegisterer(reg), chain.WithLogger(rec.Logger)).NewSession()

	_, err := s.Ask(context.Background(), "capital?")
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), "population?")
	require.Error(t, err)

	assert.True(t, rec.Has(zapcore.InfoLevel, "answered"))
	assert.Equal(t, s.ID(), rec.Fields("answered")["session.id"])
	assert.True(t, rec.Has(zapcore.WarnLevel, "ask failed"))
	assert.Equal(t, "generation", rec.Fields("ask failed")["outcome"])

	asks := rec.ByAsk()
	require.Len(t, asks, 2, "each ask logs under its own id")
	for _, msgs := range asks {
		last := msgs[len(msgs)-1]
		assert.Contains(t, []string{"answered", "ask failed"}, last)
	}

	count, err := testutil.GatherAndCount(reg, "pdfchat_chain_asks_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per outcome")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", chain.Idle.String())
	assert.Equal(t, "answering", chain.Answering.String())
	assert.Equal(t, "State(7)", chain.State(7).String())
}
