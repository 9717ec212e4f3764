package app_test

import (
	"context"

	"github.com/fyrsmithlabs/pdfchat/internal/document"
)

func extractorFunc(err error) document.Extractor {
	return document.ExtractorFunc(func(context.Context, string) ([]document.Document, error) {
		return nil, err
	})
}
