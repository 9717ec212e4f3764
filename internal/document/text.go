package document

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// TextExtractor reads plain UTF-8 text files. Form feed characters split
// pages, matching the page breaks pdftotext emits.
type TextExtractor struct{}

// NewTextExtractor creates a plain text extractor.
func NewTextExtractor() *TextExtractor { return &TextExtractor{} }

// Extract returns one Document per non-blank page.
func (TextExtractor) Extract(ctx context.Context, path string) ([]Document, error) {
	const op = "document.extract_text"

	if err := ctx.Err(); err != nil {
		return nil, qaerr.Ingestion(op, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qaerr.Ingestion(op, fmt.Errorf("reading %s: %w", path, err))
	}
	if !utf8.Valid(data) {
		return nil, qaerr.Ingestion(op, fmt.Errorf("%w: %s is not valid utf-8", ErrUnsupportedFormat, path))
	}

	var docs []Document
	for i, page := range strings.Split(string(data), "\f") {
		if strings.TrimSpace(page) == "" {
			continue
		}
		docs = append(docs, newDocument(path, i+1, page))
	}
	if len(docs) == 0 {
		return nil, qaerr.Ingestion(op, fmt.Errorf("%s: %w", path, ErrNoText))
	}
	return docs, nil
}
