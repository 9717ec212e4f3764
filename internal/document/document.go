// Package document defines the ingested document model and the extraction
// services that produce it.
package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

// Document is one page of extracted text. Documents are created once at
// startup and never mutated.
type Document struct {
	// ID is unique within one extraction, e.g. "manual.pdf#p3".
	ID string
	// Source is the path the document was read from.
	Source string
	// Page is the 1-based page number within Source.
	Page int
	Text string
}

// Extractor turns a file into an ordered sequence of page documents.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Document, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, path string) ([]Document, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, path string) ([]Document, error) {
	return f(ctx, path)
}

// ForPath picks an extractor from the file extension. opts apply to the
// PDF extractor.
func ForPath(path string, opts ...PDFOption) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return NewPDFExtractor(opts...), nil
	case ".txt", ".md", ".text":
		return NewTextExtractor(), nil
	default:
		return nil, qaerr.Ingestion("document.for_path", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path)))
	}
}

func newDocument(path string, page int, text string) Document {
	return Document{
		ID:     fmt.Sprintf("%s#p%d", filepath.Base(path), page),
		Source: path,
		Page:   page,
		Text:   text,
	}
}
