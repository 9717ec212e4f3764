// Package chunker splits document text into overlapping, separator-aligned chunks.
//
// Chunking is a pure function of the document and the Config: the same input
// always yields the same chunk sequence.
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/document"
	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// DefaultSeparator splits on single spaces.
const DefaultSeparator = " "

// Chunk is a contiguous span of a Document's text.
type Chunk struct {
	ID string
	// Index is the chunk's position within its document.
	Index int
	Text  string
	// Start and End are byte offsets of Text within Document.Text.
	Start int
	End   int
	// Page and Source are copied from the document for convenience.
	Page     int
	Source   string
	Document *document.Document
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int { return len(c.Text) }

// Config controls chunk boundaries.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

// Validate checks chunk parameters.
func (c Config) Validate() error {
	const op = "chunker.validate"
	if c.ChunkSize <= 0 {
		return qaerr.Config(op, "chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return qaerr.Config(op, "chunk_overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return qaerr.Config(op, "chunk_overlap (%d) must be less than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Splitter applies a validated Config to documents.
type Splitter struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a Splitter, or a config error if cfg is invalid.
func New(cfg Config, logger *zap.Logger) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Splitter{cfg: cfg, logger: logger}, nil
}

// Split chunks a single document.
func Split(doc *document.Document, chunkSize, chunkOverlap int, separator string) ([]Chunk, error) {
	s, err := New(Config{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap, Separator: separator}, nil)
	if err != nil {
		return nil, err
	}
	return s.Split(doc), nil
}

// SplitAll chunks documents in order.
func (s *Splitter) SplitAll(docs []document.Document) []Chunk {
	var out []Chunk
	for i := range docs {
		out = append(out, s.Split(&docs[i])...)
	}
	return out
}

type unit struct {
	start, end int
}

// Split walks the separator-delimited units of doc, growing a window until
// the next unit would push it past ChunkSize. The window is then emitted and
// its leading units dropped until what remains fits in ChunkOverlap, so the
// next chunk starts with the tail of the previous one.
func (s *Splitter) Split(doc *document.Document) []Chunk {
	units := splitUnits(doc.Text, s.cfg.Separator)
	if len(units) == 0 {
		return nil
	}

	var chunks []Chunk
	emit := func(first, last int) {
		start, end := trimSpan(doc.Text, units[first].start, units[last].end)
		if start >= end {
			return
		}
		if end-start > s.cfg.ChunkSize {
			s.logger.Warn("chunk exceeds configured size",
				zap.String("document", doc.ID),
				zap.Int("size", end-start),
				zap.Int("chunk_size", s.cfg.ChunkSize))
		}
		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s-c%d", doc.ID, len(chunks)),
			Index:    len(chunks),
			Text:     doc.Text[start:end],
			Start:    start,
			End:      end,
			Page:     doc.Page,
			Source:   doc.Source,
			Document: doc,
		})
	}

	span := func(first, last int) int { return units[last].end - units[first].start }

	first := 0
	for j := range units {
		if first < j && span(first, j) > s.cfg.ChunkSize {
			emit(first, j-1)
			for first < j && (span(first, j-1) > s.cfg.ChunkOverlap || span(first, j) > s.cfg.ChunkSize) {
				first++
			}
		}
	}
	emit(first, len(units)-1)

	return chunks
}

// splitUnits returns the byte spans of the non-empty pieces of text between
// separators. An empty separator splits into runes.
func splitUnits(text, sep string) []unit {
	var units []unit
	if sep == "" {
		for i, r := range text {
			units = append(units, unit{start: i, end: i + utf8.RuneLen(r)})
		}
		return units
	}

	pos := 0
	for pos <= len(text) {
		idx := strings.Index(text[pos:], sep)
		end := len(text)
		if idx >= 0 {
			end = pos + idx
		}
		if end > pos {
			units = append(units, unit{start: pos, end: end})
		}
		if idx < 0 {
			break
		}
		pos = end + len(sep)
	}
	return units
}

func trimSpan(text string, start, end int) (int, int) {
	s := text[start:end]
	lead := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	trail := len(s) - len(strings.TrimRightFunc(s, unicode.IsSpace))
	if lead == len(s) {
		return start, start
	}
	return start + lead, end - trail
}
