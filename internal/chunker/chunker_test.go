package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/pdfchat/internal/chunker"
	"github.com/fyrsmithlabs/pdfchat/internal/document"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

func doc(text string) *document.Document {
	return &document.Document{ID: "test.pdf#p2", Source: "test.pdf", Page: 2, Text: text}
}

// words returns n copies of w joined by single spaces.
func words(w string, n int) string {
	return strings.TrimSuffix(strings.Repeat(w+" ", n), " ")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     chunker.Config
		wantErr bool
	}{
		{"valid", chunker.Config{ChunkSize: 1000, ChunkOverlap: 0}, false},
		{"valid overlap", chunker.Config{ChunkSize: 100, ChunkOverlap: 99}, false},
		{"overlap equals size", chunker.Config{ChunkSize: 100, ChunkOverlap: 100}, true},
		{"overlap exceeds size", chunker.Config{ChunkSize: 100, ChunkOverlap: 150}, true},
		{"zero size", chunker.Config{ChunkSize: 0}, true},
		{"negative overlap", chunker.Config{ChunkSize: 10, ChunkOverlap: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, qaerr.ErrConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplit_RejectsOverlapNotLessThanSize(t *testing.T) {
	_, err := chunker.Split(doc("a b c"), 10, 10, " ")
	assert.ErrorIs(t, err, qaerr.ErrConfig)
}

func TestSplit_2500CharsNoOverlap(t *testing.T) {
	// 500 four-letter words: 2499 characters.
	text := words("abcd", 500)
	require.Len(t, text, 2499)

	chunks, err := chunker.Split(doc(text), 1000, 0, " ")
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Len(), 1000)
		total += strings.Count(c.Text, "abcd")
	}
	assert.Equal(t, 500, total, "no word may appear in two chunks")
	assert.Equal(t, text, strings.Join([]string{chunks[0].Text, chunks[1].Text, chunks[2].Text}, " "))
}

func TestSplit_ShortDocumentYieldsOneChunk(t *testing.T) {
	chunks, err := chunker.Split(doc("  a short page of text  "), 1000, 100, " ")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short page of text", chunks[0].Text)
}

func TestSplit_BlankDocumentYieldsNothing(t *testing.T) {
	chunks, err := chunker.Split(doc(" \n  "), 1000, 0, " ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_Deterministic(t *testing.T) {
	text := words("lorem ipsum dolor sit amet", 80)
	d := doc(text)

	first, err := chunker.Split(d, 120, 30, " ")
	require.NoError(t, err)
	second, err := chunker.Split(d, 120, 30, " ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSplit_OverlapRegionsMatch(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("w")
		sb.WriteString(strings.Repeat("x", i%7))
	}
	d := doc(sb.String())

	const size, overlap = 80, 25
	chunks, err := chunker.Split(d, size, overlap, " ")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 3)

	for i := 0; i+1 < len(chunks); i++ {
		cur, next := chunks[i], chunks[i+1]
		assert.LessOrEqual(t, cur.Len(), size)

		// The next chunk starts inside the current one, no more than
		// overlap bytes before its end, on a unit boundary.
		require.Less(t, next.Start, cur.End, "chunk %d has no overlap", i)
		shared := cur.End - next.Start
		assert.LessOrEqual(t, shared, overlap)
		assert.True(t, strings.HasSuffix(cur.Text, next.Text[:shared]))
		assert.True(t, next.Start == 0 || d.Text[next.Start-1] == ' ')
	}
}

func TestSplit_OffsetsAndMetadata(t *testing.T) {
	d := doc("alpha beta gamma delta epsilon zeta eta theta")

	chunks, err := chunker.Split(d, 16, 6, " ")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, d.Text[c.Start:c.End], c.Text)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 2, c.Page)
		assert.Equal(t, "test.pdf", c.Source)
		assert.Same(t, d, c.Document)
		assert.Contains(t, c.ID, "test.pdf#p2-c")
	}
}

func TestSplit_CollapsesRepeatedSeparators(t *testing.T) {
	chunks, err := chunker.Split(doc("one    two     three"), 9, 0, " ")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{chunks[0].Text, chunks[1].Text, chunks[2].Text})
}

func TestSplit_EmptySeparatorSplitsRunes(t *testing.T) {
	chunks, err := chunker.Split(doc("abcdefghij"), 4, 1, "")
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, texts)
}

func TestSplitter_WarnsOnOversizedUnit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := chunker.New(chunker.Config{ChunkSize: 5, Separator: " "}, zap.New(core))
	require.NoError(t, err)

	chunks := s.Split(doc("ab averyveryverylongword cd"))
	require.Len(t, chunks, 3)
	assert.Equal(t, "averyveryverylongword", chunks[1].Text)
	assert.Equal(t, 1, logs.FilterMessage("chunk exceeds configured size").Len())
}

func TestSplitter_SplitAllKeepsDocumentOrder(t *testing.T) {
	s, err := chunker.New(chunker.Config{ChunkSize: 50, Separator: " "}, nil)
	require.NoError(t, err)

	docs := []document.Document{
		{ID: "a#p1", Page: 1, Text: "first page"},
		{ID: "a#p2", Page: 2, Text: "second page"},
	}
	chunks := s.SplitAll(docs)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
	assert.Same(t, &docs[1], chunks[1].Document)
}
