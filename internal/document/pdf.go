package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pdfchat/internal/qaerr"
)

var (
	// ErrUnsupportedFormat is returned for files that are not a supported document type.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrNoText is returned when a document yields no extractable text.
	ErrNoText = errors.New("document contains no extractable text")
)

var pdfMagic = []byte("%PDF-")

// PDFExtractor reads PDF files page by page.
type PDFExtractor struct {
	logger *zap.Logger
}

// PDFOption configures a PDFExtractor.
type PDFOption func(*PDFExtractor)

// WithPDFLogger sets the logger used for per-page warnings.
func WithPDFLogger(l *zap.Logger) PDFOption {
	return func(e *PDFExtractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(opts ...PDFOption) *PDFExtractor {
	e := &PDFExtractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one Document per page that has text, in page order.
// Pages that fail to decode are skipped with a warning; a file with no
// decodable text at all is an ingestion error.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (docs []Document, err error) {
	const op = "document.extract_pdf"

	if err := checkPDFHeader(path); err != nil {
		return nil, qaerr.Ingestion(op, err)
	}

	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = qaerr.Ingestion(op, fmt.Errorf("malformed pdf %s: %v", path, r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, qaerr.Ingestion(op, fmt.Errorf("opening %s: %w", path, err))
	}
	defer f.Close()

	numPages := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, qaerr.Ingestion(op, err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page",
				zap.String("path", path),
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, newDocument(path, i, text))
	}

	if len(docs) == 0 {
		return nil, qaerr.Ingestion(op, fmt.Errorf("%s: %w", path, ErrNoText))
	}

	e.logger.Debug("pdf extracted",
		zap.String("path", path),
		zap.Int("pages", numPages),
		zap.Int("documents", len(docs)))
	return docs, nil
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if !bytes.Contains(head[:n], pdfMagic) {
		return fmt.Errorf("%w: %s is not a pdf", ErrUnsupportedFormat, path)
	}
	return nil
}
